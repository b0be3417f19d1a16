// Package models содержит структуры документов предметной области.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User документ пользователя платформы.
//
// Roles хранит ссылки на документы ролей; сами роли разделяются между
// пользователями и загружаются отдельным запросом при проверке прав.
type User struct {
	ID             bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username       string          `bson:"username" json:"username"`
	Email          string          `bson:"email" json:"email"`
	HashedPassword string          `bson:"hashed_password" json:"-"`
	Active         bool            `bson:"active" json:"active"`
	Roles          []bson.ObjectID `bson:"roles" json:"roles"`
	ProfilePicture string          `bson:"profile_picture,omitempty" json:"profile_picture,omitempty"`
	Bio            string          `bson:"bio,omitempty" json:"bio,omitempty"`
	Location       string          `bson:"location,omitempty" json:"location,omitempty"`
	Website        string          `bson:"website,omitempty" json:"website,omitempty"`
	PhoneNumber    string          `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	IsTeacher      bool            `bson:"is_teacher" json:"is_teacher"`
	IsStudent      bool            `bson:"is_student" json:"is_student"`
	LastLogin      *time.Time      `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
}
