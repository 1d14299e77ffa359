package repository

import (
	"context"

	"societyledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdvancePaymentRepository interface {
	Create(ctx context.Context, payment *model.AdvancePayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AdvancePayment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.AdvancePayment, error)
	// List returns payments of the given societies, newest first. An empty slice matches nothing.
	List(ctx context.Context, societyIDs []uuid.UUID) ([]model.AdvancePayment, error)
	Update(ctx context.Context, payment *model.AdvancePayment) error
}

type advancePaymentRepository struct {
	db *gorm.DB
}

func NewAdvancePaymentRepository(db *gorm.DB) AdvancePaymentRepository {
	return &advancePaymentRepository{db: db}
}

func (r *advancePaymentRepository) Create(ctx context.Context, payment *model.AdvancePayment) error {
	return translate(GetDB(ctx, r.db).Create(payment).Error, "advance payment")
}

func (r *advancePaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AdvancePayment, error) {
	var payment model.AdvancePayment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, translate(err, "advance payment")
	}
	return &payment, nil
}

func (r *advancePaymentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.AdvancePayment, error) {
	var payment model.AdvancePayment
	if err := forUpdate(GetDB(ctx, r.db)).First(&payment, "id = ?", id).Error; err != nil {
		return nil, translate(err, "advance payment")
	}
	return &payment, nil
}

func (r *advancePaymentRepository) List(ctx context.Context, societyIDs []uuid.UUID) ([]model.AdvancePayment, error) {
	payments := []model.AdvancePayment{}
	if len(societyIDs) == 0 {
		return payments, nil
	}
	err := GetDB(ctx, r.db).
		Where("society_id IN ?", societyIDs).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *advancePaymentRepository) Update(ctx context.Context, payment *model.AdvancePayment) error {
	return GetDB(ctx, r.db).Save(payment).Error
}
