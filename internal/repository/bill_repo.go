package repository

import (
	"context"
	"time"

	"societyledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillFilter narrows bill queries. SocietyIDs is mandatory scope: an empty slice matches nothing.
type BillFilter struct {
	SocietyIDs         []uuid.UUID
	Status             model.BillStatus
	VendorNameContains string
	CreatedFrom        *time.Time
	CreatedTo          *time.Time
	WithRemarks        bool
}

type BillRepository interface {
	Create(ctx context.Context, bill *model.Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Bill, error)
	GetByIDWithRemarks(ctx context.Context, id uuid.UUID) (*model.Bill, error)
	// GetForUpdate row-locks the bill for the rest of the surrounding transaction
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Bill, error)
	List(ctx context.Context, filter BillFilter) ([]model.Bill, error)
	CountByStatus(ctx context.Context, societyIDs []uuid.UUID) (map[model.BillStatus]int64, error)
	// SaveTransition persists status and version and appends the remark
	SaveTransition(ctx context.Context, bill *model.Bill, remark *model.BillRemark) error
	ListRemarks(ctx context.Context, billID uuid.UUID) ([]model.BillRemark, error)
}

type billRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) BillRepository {
	return &billRepository{db: db}
}

func (r *billRepository) Create(ctx context.Context, bill *model.Bill) error {
	return translate(GetDB(ctx, r.db).Omit("Society", "Remarks").Create(bill).Error, "bill")
}

func (r *billRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	var bill model.Bill
	if err := GetDB(ctx, r.db).First(&bill, "id = ?", id).Error; err != nil {
		return nil, translate(err, "bill")
	}
	return &bill, nil
}

func (r *billRepository) GetByIDWithRemarks(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	var bill model.Bill
	err := GetDB(ctx, r.db).
		Preload("Remarks", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&bill, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "bill")
	}
	return &bill, nil
}

func (r *billRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	var bill model.Bill
	if err := forUpdate(GetDB(ctx, r.db)).First(&bill, "id = ?", id).Error; err != nil {
		return nil, translate(err, "bill")
	}
	return &bill, nil
}

func (r *billRepository) List(ctx context.Context, filter BillFilter) ([]model.Bill, error) {
	bills := []model.Bill{}
	if len(filter.SocietyIDs) == 0 {
		return bills, nil
	}

	q := GetDB(ctx, r.db).Where("society_id IN ?", filter.SocietyIDs)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.VendorNameContains != "" {
		q = q.Where(`vendor_search LIKE ? ESCAPE '\'`, likePattern(filter.VendorNameContains))
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}
	if filter.WithRemarks {
		q = q.Preload("Remarks", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") })
	}

	if err := q.Order("created_at DESC").Order("id DESC").Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *billRepository) CountByStatus(ctx context.Context, societyIDs []uuid.UUID) (map[model.BillStatus]int64, error) {
	counts := make(map[model.BillStatus]int64)
	if len(societyIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		Status model.BillStatus
		Count  int64
	}
	err := GetDB(ctx, r.db).Model(&model.Bill{}).
		Select("status, COUNT(*) AS count").
		Where("society_id IN ?", societyIDs).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *billRepository) SaveTransition(ctx context.Context, bill *model.Bill, remark *model.BillRemark) error {
	db := GetDB(ctx, r.db)
	err := db.Model(&model.Bill{}).Where("id = ?", bill.ID).Updates(map[string]interface{}{
		"status":     bill.Status,
		"version":    bill.Version,
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		return err
	}
	return translate(db.Create(remark).Error, "remark")
}

func (r *billRepository) ListRemarks(ctx context.Context, billID uuid.UUID) ([]model.BillRemark, error) {
	remarks := []model.BillRemark{}
	if err := GetDB(ctx, r.db).Where("bill_id = ?", billID).Order("seq ASC").Find(&remarks).Error; err != nil {
		return nil, err
	}
	return remarks, nil
}
