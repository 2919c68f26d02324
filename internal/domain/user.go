package domain

type User struct {
	Base
	Email     string `gorm:"size:128;not null" json:"email"`
	Password  string `gorm:"size:128;not null" json:"password"`
	FirstName string `gorm:"size:128" json:"first_name"`
	LastName  string `gorm:"size:128" json:"last_name"`
}

func (*User) Kind() Kind { return KindUser }
