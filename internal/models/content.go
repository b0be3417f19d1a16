package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Course документ курса. Все связи — ссылки по идентификатору,
// разрешаемые при чтении.
type Course struct {
	ID          bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string          `bson:"name" json:"name"`
	Description string          `bson:"description" json:"description"`
	Price       int64           `bson:"price" json:"price"` // минорные единицы валюты
	Status      string          `bson:"status" json:"status"`
	Teacher     bson.ObjectID   `bson:"teacher,omitempty" json:"teacher,omitempty"`
	Students    []bson.ObjectID `bson:"students" json:"students"`
	Lessons     []bson.ObjectID `bson:"lessons" json:"lessons"`
	Files       []bson.ObjectID `bson:"files" json:"files"`
	Duration    int             `bson:"duration" json:"duration"`
	Topics      []string        `bson:"topics" json:"topics"`
	Level       string          `bson:"level" json:"level"`
	Rating      float64         `bson:"rating" json:"rating"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at" json:"updated_at"`
}

// Lesson документ урока.
type Lesson struct {
	ID          bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string          `bson:"name" json:"name"`
	Description string          `bson:"description" json:"description"`
	VideoURL    string          `bson:"video_url" json:"video_url"`
	Duration    int             `bson:"duration" json:"duration"`
	Files       []bson.ObjectID `bson:"files" json:"files"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at" json:"updated_at"`
}

// File документ файла, привязанного к курсу или уроку.
type File struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string        `bson:"name" json:"name"`
	Path      string        `bson:"path" json:"path"`
	Type      string        `bson:"type" json:"type"`
	Owner     bson.ObjectID `bson:"owner,omitempty" json:"owner,omitempty"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}
