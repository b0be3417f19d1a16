package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// ErrBadPlan план платежей задан некорректно.
var ErrBadPlan = errors.New("invalid payment plan")

// PlanRequest данные нового плана платежей. Amount в минорных единицах
// делится на Installments равных рассрочек с ежемесячными сроками;
// остаток от деления прибавляется к последней.
type PlanRequest struct {
	CustomerEmail string
	Name          string
	Amount        int64
	Currency      string
	Installments  int
	FirstDueDate  time.Time
}

// CreatePaymentPlan создает план платежей клиента с расписанием рассрочек.
func (s *Service) CreatePaymentPlan(ctx context.Context, req PlanRequest) (*models.PaymentPlan, error) {
	if req.Amount <= 0 || req.Installments <= 0 {
		return nil, ErrBadPlan
	}

	customer, err := s.repo.GetCustomerByEmail(ctx, req.CustomerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCustomer, req.CustomerEmail)
		}
		return nil, err
	}

	plan := &models.PaymentPlan{
		Customer:  customer.ID,
		Name:      req.Name,
		Amount:    req.Amount,
		Currency:  req.Currency,
		CreatedAt: time.Now().UTC(),
	}

	per := req.Amount / int64(req.Installments)
	remainder := req.Amount - per*int64(req.Installments)
	installments := make([]models.Installment, req.Installments)
	for i := range installments {
		amount := per
		if i == req.Installments-1 {
			amount += remainder
		}
		installments[i] = models.Installment{
			Sequence: i + 1,
			Amount:   amount,
			Currency: req.Currency,
			DueDate:  req.FirstDueDate.AddDate(0, i, 0),
			Status:   models.InstallmentPending,
		}
	}

	planID, err := s.repo.CreatePaymentPlan(ctx, plan, installments)
	if err != nil {
		return nil, err
	}
	plan.ID = planID
	return plan, nil
}

// NextPendingInstallment возвращает ближайшую ожидающую рассрочку клиента.
func (s *Service) NextPendingInstallment(ctx context.Context, customerEmail string) (*models.Installment, error) {
	customer, err := s.repo.GetCustomerByEmail(ctx, customerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCustomer, customerEmail)
		}
		return nil, err
	}
	installment, err := s.repo.FindNextPendingInstallment(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	return installment, nil
}
