package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// BlacklistedToken токен, отозванный до истечения собственного срока.
//
// Документ удаляется базой по TTL-индексу на expires_at; до этого момента
// присутствие токена в коллекции делает его невалидным независимо от
// срока, зашитого в сам токен.
type BlacklistedToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Token     string        `bson:"token"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
}
