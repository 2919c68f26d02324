package domain

type Review struct {
	Base
	PlaceID string `gorm:"size:60;not null;index" json:"place_id"`
	UserID  string `gorm:"size:60;not null;index" json:"user_id"`
	Text    string `gorm:"size:1024;not null" json:"text"`
}

func (*Review) Kind() Kind { return KindReview }
