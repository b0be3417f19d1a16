// Package repository реализует хранилище данных на основе MongoDB
// для пользователей, ролей, разрешений, контента и биллинга.
// Уникальность имен и адресов обеспечивается уникальными индексами,
// отзыв токенов — TTL-индексом на expires_at.
package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Имена коллекций.
const (
	collUsers        = "users"
	collPermissions  = "permissions"
	collRoles        = "roles"
	collBlacklist    = "blacklisted_tokens"
	collCourses      = "courses"
	collLessons      = "lessons"
	collFiles        = "files"
	collCustomers    = "customers"
	collPaymentPlans = "payment_plans"
	collInstallments = "installments"
	collPayments     = "payments"
	collVouchers     = "payment_vouchers"
)

// Storage инкапсулирует подключение к MongoDB и реализует методы
// работы с документами предметной области.
type Storage struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// New подключается к MongoDB и создает необходимые индексы.
func New(ctx context.Context, connectionString, databaseName string) (*Storage, error) {
	const op = "repository.New"

	client, err := mongo.Connect(options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Storage{
		Client: client,
		DB:     client.Database(databaseName),
	}
	if err = s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// Close разрывает подключение к базе.
func (s *Storage) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
	}

	_, err := s.DB.Collection(collUsers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("username"),
		unique("email"),
	})
	if err != nil {
		return err
	}

	for _, coll := range []string{collPermissions, collRoles} {
		if _, err = s.DB.Collection(coll).Indexes().CreateMany(ctx, []mongo.IndexModel{unique("name")}); err != nil {
			return err
		}
	}

	// просроченные записи черного списка удаляет сама база
	_, err = s.DB.Collection(collBlacklist).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return err
	}

	_, err = s.DB.Collection(collCustomers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("stripe_customer_id"),
	})
	return err
}
