package domain

type State struct {
	Base
	Name string `gorm:"size:128;not null" json:"name"`
}

func (*State) Kind() Kind { return KindState }

type City struct {
	Base
	Name    string `gorm:"size:128;not null" json:"name"`
	StateID string `gorm:"size:60;not null;index" json:"state_id"`
}

func (*City) Kind() Kind { return KindCity }
