package repository

import (
	"context"
	"strings"
	"time"

	"societyledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvitationRepository stores member invitations. "Pending" means not accepted and not expired at now.
type InvitationRepository interface {
	Create(ctx context.Context, inv *model.Invitation) error
	HasPending(ctx context.Context, societyID uuid.UUID, email string, now time.Time) (bool, error)
	// GetByTokenHashForUpdate locks the row inside the caller's transaction
	GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*model.Invitation, error)
	MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	ListPending(ctx context.Context, societyID uuid.UUID, now time.Time) ([]model.Invitation, error)
}

type invitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *invitationRepository) Create(ctx context.Context, inv *model.Invitation) error {
	inv.Email = normalizeEmail(inv.Email)
	return translate(GetDB(ctx, r.db).Create(inv).Error, "invitation")
}

func (r *invitationRepository) HasPending(ctx context.Context, societyID uuid.UUID, email string, now time.Time) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Invitation{}).
		Where("society_id = ? AND email = ?", societyID, normalizeEmail(email)).
		Where("accepted_at IS NULL AND expires_at > ?", now).
		Count(&count).Error
	return count > 0, err
}

func (r *invitationRepository) GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*model.Invitation, error) {
	var inv model.Invitation
	if err := forUpdate(GetDB(ctx, r.db)).First(&inv, "token_hash = ?", tokenHash).Error; err != nil {
		return nil, translate(err, "invitation")
	}
	return &inv, nil
}

func (r *invitationRepository) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Invitation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"accepted_at": at, "accepted_by": userID}).Error
}

func (r *invitationRepository) ListPending(ctx context.Context, societyID uuid.UUID, now time.Time) ([]model.Invitation, error) {
	invitations := []model.Invitation{}
	err := GetDB(ctx, r.db).
		Where("society_id = ? AND accepted_at IS NULL AND expires_at > ?", societyID, now).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}
