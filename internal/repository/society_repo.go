package repository

import (
	"context"

	"societyledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SocietyRepository interface {
	Create(ctx context.Context, society *model.Society) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Society, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Society, error)
	// List returns societies whose id is in ids, ordered by name. A nil slice means no restriction.
	List(ctx context.Context, ids []uuid.UUID) ([]model.Society, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	Update(ctx context.Context, society *model.Society) error
	SetAssignedAgent(ctx context.Context, id uuid.UUID, agentID *uuid.UUID) error
	// ClearAgent drops agentID from every society pointing at it, except those in keep
	ClearAgent(ctx context.Context, agentID uuid.UUID, keep ...uuid.UUID) error
}

type societyRepository struct {
	db *gorm.DB
}

func NewSocietyRepository(db *gorm.DB) SocietyRepository {
	return &societyRepository{db: db}
}

func (r *societyRepository) Create(ctx context.Context, society *model.Society) error {
	return translate(GetDB(ctx, r.db).Create(society).Error, "society")
}

func (r *societyRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Society, error) {
	var society model.Society
	if err := GetDB(ctx, r.db).First(&society, "id = ?", id).Error; err != nil {
		return nil, translate(err, "society")
	}
	return &society, nil
}

func (r *societyRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Society, error) {
	var society model.Society
	if err := forUpdate(GetDB(ctx, r.db)).First(&society, "id = ?", id).Error; err != nil {
		return nil, translate(err, "society")
	}
	return &society, nil
}

func (r *societyRepository) List(ctx context.Context, ids []uuid.UUID) ([]model.Society, error) {
	societies := []model.Society{}
	if ids != nil && len(ids) == 0 {
		return societies, nil
	}

	q := GetDB(ctx, r.db).Order("name ASC")
	if ids != nil {
		q = q.Where("id IN ?", ids)
	}
	if err := q.Find(&societies).Error; err != nil {
		return nil, err
	}
	return societies, nil
}

func (r *societyRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := GetDB(ctx, r.db).Model(&model.Society{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *societyRepository) NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var rows []struct {
		ID   uuid.UUID
		Name string
	}
	if err := GetDB(ctx, r.db).Model(&model.Society{}).Select("id", "name").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

func (r *societyRepository) Update(ctx context.Context, society *model.Society) error {
	return translate(GetDB(ctx, r.db).Save(society).Error, "society")
}

func (r *societyRepository) SetAssignedAgent(ctx context.Context, id uuid.UUID, agentID *uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Society{}).Where("id = ?", id).Update("assigned_agent_id", agentID).Error
}

func (r *societyRepository) ClearAgent(ctx context.Context, agentID uuid.UUID, keep ...uuid.UUID) error {
	query := GetDB(ctx, r.db).Model(&model.Society{}).Where("assigned_agent_id = ?", agentID)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	return query.Update("assigned_agent_id", nil).Error
}
