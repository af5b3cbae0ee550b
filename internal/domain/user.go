package domain

import "time"

// AppUser is a marketplace account, buyers and sellers alike
type AppUser struct {
	ID               int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Email            string     `gorm:"size:255;uniqueIndex" json:"email"`
	Password         string     `json:"-"`
	Status           string     `gorm:"size:16" json:"status"`
	StripeCustomerId string     `gorm:"size:64" json:"-"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (AppUser) TableName() string {
	return "app_users"
}

// UserProfile public profile, shares its id with AppUser
type UserProfile struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	FullName  string    `gorm:"size:200" json:"full_name"`
	AvatarUrl string    `gorm:"size:1024" json:"avatar_url,omitempty"`
	Phone     string    `gorm:"size:32" json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
