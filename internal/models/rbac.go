package models

import "go.mongodb.org/mongo-driver/v2/bson"

// Permission именованная атомарная способность. Имя глобально уникально.
type Permission struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string        `bson:"name" json:"name"`
	Description string        `bson:"description" json:"description"`
}

// Role именованный набор разрешений, назначаемый пользователям.
// Permissions хранит ссылки на документы разрешений.
type Role struct {
	ID          bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string          `bson:"name" json:"name"`
	Description string          `bson:"description" json:"description"`
	Permissions []bson.ObjectID `bson:"permissions" json:"permissions"`
}

// ResolvedRole роль с загруженными документами разрешений (двухфазное чтение).
type ResolvedRole struct {
	Role
	ResolvedPermissions []Permission `bson:"-" json:"resolved_permissions,omitempty"`
}
