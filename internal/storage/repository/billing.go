package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/magabrotheeeer/education-platform/internal/models"
)

// GetCustomerByStripeID возвращает плательщика по идентификатору клиента Stripe.
func (s *Storage) GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*models.Customer, error) {
	const op = "repository.GetCustomerByStripeID"
	var c models.Customer
	err := s.DB.Collection(collCustomers).FindOne(ctx, bson.M{"stripe_customer_id": stripeCustomerID}).Decode(&c)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return &c, nil
}

// GetCustomerByEmail возвращает плательщика по адресу почты.
func (s *Storage) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	const op = "repository.GetCustomerByEmail"
	var c models.Customer
	if err := s.DB.Collection(collCustomers).FindOne(ctx, bson.M{"email": email}).Decode(&c); err != nil {
		return nil, wrapErr(op, err)
	}
	return &c, nil
}

// UpsertCustomerSubscription создает или обновляет плательщика и локальное
// отражение его подписки. Операция идемпотентна: повторная и внеочередная
// доставка события приводит к тому же состоянию.
func (s *Storage) UpsertCustomerSubscription(ctx context.Context, stripeCustomerID, email string, sub *models.CustomerSubscription) error {
	const op = "repository.UpsertCustomerSubscription"
	now := time.Now().UTC()
	set := bson.M{
		"subscription": sub,
		"updated_at":   now,
	}
	if email != "" {
		set["email"] = email
	}
	_, err := s.DB.Collection(collCustomers).UpdateOne(ctx,
		bson.M{"stripe_customer_id": stripeCustomerID},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"stripe_customer_id": stripeCustomerID, "created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// CreatePaymentPlan сохраняет план платежей с рассрочками.
func (s *Storage) CreatePaymentPlan(ctx context.Context, plan *models.PaymentPlan, installments []models.Installment) (bson.ObjectID, error) {
	const op = "repository.CreatePaymentPlan"
	plan.CreatedAt = time.Now().UTC()
	res, err := s.DB.Collection(collPaymentPlans).InsertOne(ctx, plan)
	if err != nil {
		return bson.NilObjectID, wrapErr(op, err)
	}
	planID := res.InsertedID.(bson.ObjectID)

	docs := make([]any, 0, len(installments))
	for i := range installments {
		installments[i].Plan = planID
		installments[i].Status = models.InstallmentPending
		docs = append(docs, installments[i])
	}
	if len(docs) > 0 {
		if _, err = s.DB.Collection(collInstallments).InsertMany(ctx, docs); err != nil {
			return bson.NilObjectID, wrapErr(op, err)
		}
	}
	return planID, nil
}

// FindNextPendingInstallment находит ближайшую неоплаченную рассрочку
// по планам плательщика.
func (s *Storage) FindNextPendingInstallment(ctx context.Context, customerID bson.ObjectID) (*models.Installment, error) {
	const op = "repository.FindNextPendingInstallment"
	cursor, err := s.DB.Collection(collPaymentPlans).Find(ctx, bson.M{"customer": customerID})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var plans []models.PaymentPlan
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, wrapErr(op, err)
	}
	if len(plans) == 0 {
		return nil, wrapErr(op, ErrNotFound)
	}
	planIDs := make([]bson.ObjectID, 0, len(plans))
	for _, p := range plans {
		planIDs = append(planIDs, p.ID)
	}

	var inst models.Installment
	err = s.DB.Collection(collInstallments).FindOne(ctx,
		bson.M{"plan": bson.M{"$in": planIDs}, "status": models.InstallmentPending},
		options.FindOne().SetSort(bson.D{{Key: "due_date", Value: 1}}),
	).Decode(&inst)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return &inst, nil
}

// MarkInstallmentPaid переводит рассрочку из pending в paid и привязывает платеж.
// Фильтр по статусу гарантирует только прямой переход: paid терминален.
func (s *Storage) MarkInstallmentPaid(ctx context.Context, installmentID, paymentID bson.ObjectID) error {
	const op = "repository.MarkInstallmentPaid"
	res, err := s.DB.Collection(collInstallments).UpdateOne(ctx,
		bson.M{"_id": installmentID, "status": models.InstallmentPending},
		bson.M{"$set": bson.M{"status": models.InstallmentPaid, "payment": paymentID}},
	)
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// MarkInstallmentFailed переводит рассрочку из pending в failed.
func (s *Storage) MarkInstallmentFailed(ctx context.Context, installmentID bson.ObjectID) error {
	const op = "repository.MarkInstallmentFailed"
	res, err := s.DB.Collection(collInstallments).UpdateOne(ctx,
		bson.M{"_id": installmentID, "status": models.InstallmentPending},
		bson.M{"$set": bson.M{"status": models.InstallmentFailed}},
	)
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// CreatePayment фиксирует платеж. Повторная вставка платежа по тому же
// инвойсу Stripe не создает дубликат: возвращается существующий документ,
// а признак created сообщает вызывающему, был ли платеж записан впервые.
func (s *Storage) CreatePayment(ctx context.Context, p *models.Payment) (bson.ObjectID, bool, error) {
	const op = "repository.CreatePayment"
	var existing models.Payment
	err := s.DB.Collection(collPayments).FindOne(ctx, bson.M{"stripe_invoice_id": p.StripeInvoiceID}).Decode(&existing)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return bson.NilObjectID, false, wrapErr(op, err)
	}
	p.CreatedAt = time.Now().UTC()
	res, err := s.DB.Collection(collPayments).InsertOne(ctx, p)
	if err != nil {
		return bson.NilObjectID, false, wrapErr(op, err)
	}
	return res.InsertedID.(bson.ObjectID), true, nil
}

// CreatePaymentVoucher выпускает квитанцию по платежу.
func (s *Storage) CreatePaymentVoucher(ctx context.Context, v *models.PaymentVoucher) (bson.ObjectID, error) {
	const op = "repository.CreatePaymentVoucher"
	v.IssuedAt = time.Now().UTC()
	res, err := s.DB.Collection(collVouchers).InsertOne(ctx, v)
	if err != nil {
		return bson.NilObjectID, wrapErr(op, err)
	}
	return res.InsertedID.(bson.ObjectID), nil
}
