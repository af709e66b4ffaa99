package domain

import "time"

// Identity is the verified result of resolving a connection credential.
type Identity struct {
	UserID      string
	DisplayName string
	Role        string
	Department  string
}

// User is a platform user as known to the messaging core. The user store is
// owned by the surrounding platform; this core only reads it.
type User struct {
	ID          string
	DisplayName string
	Role        string
	Department  string
	IsActive    bool
	CreatedAt   time.Time
}

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	DisplayName string    `gorm:"type:varchar(100);not null"`
	Role        string    `gorm:"type:varchar(50);index;not null"`
	Department  string    `gorm:"type:varchar(100)"`
	IsActive    bool      `gorm:"default:true"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Role:        m.Role,
		Department:  m.Department,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
	}
}

// UserToModel converts domain User to UserModel.
func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Department:  u.Department,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}
