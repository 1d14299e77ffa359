package repository

import (
	"context"

	"societyledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines data access for users and agent assignments
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListByRole(ctx context.Context, role model.UserRole, page, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error

	// ListSocietyMembers returns the active officers of a society and the agents assigned to it
	ListSocietyMembers(ctx context.Context, societyID uuid.UUID) ([]model.User, error)

	AssignedSocietyIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AddAssignment(ctx context.Context, userID, societyID uuid.UUID) error
	RemoveAssignment(ctx context.Context, userID, societyID uuid.UUID) error
	ReplaceAssignments(ctx context.Context, userID uuid.UUID, societyIDs []uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = normalizeEmail(user.Email)
	return translate(GetDB(ctx, r.db).Create(user).Error, "user")
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "email = ?", normalizeEmail(email)).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role model.UserRole, page, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Where("role = ?", role).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Where("role = ?", role).Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return translate(GetDB(ctx, r.db).Save(user).Error, "user")
}

func (r *userRepository) ListSocietyMembers(ctx context.Context, societyID uuid.UUID) ([]model.User, error) {
	users := []model.User{}
	db := GetDB(ctx, r.db)
	assigned := db.Model(&model.AgentAssignment{}).Select("user_id").Where("society_id = ?", societyID)

	err := db.Where("is_active = ?", true).
		Where(db.Where("associated_society_id = ?", societyID).Or("id IN (?)", assigned)).
		Order("name ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) AssignedSocietyIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := GetDB(ctx, r.db).Model(&model.AgentAssignment{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("society_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AddAssignment is idempotent
func (r *userRepository) AddAssignment(ctx context.Context, userID, societyID uuid.UUID) error {
	assignment := model.AgentAssignment{UserID: userID, SocietyID: societyID}
	return GetDB(ctx, r.db).Where(assignment).FirstOrCreate(&assignment).Error
}

func (r *userRepository) RemoveAssignment(ctx context.Context, userID, societyID uuid.UUID) error {
	return GetDB(ctx, r.db).
		Where("user_id = ? AND society_id = ?", userID, societyID).
		Delete(&model.AgentAssignment{}).Error
}

func (r *userRepository) ReplaceAssignments(ctx context.Context, userID uuid.UUID, societyIDs []uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("user_id = ?", userID).Delete(&model.AgentAssignment{}).Error; err != nil {
		return err
	}
	if len(societyIDs) == 0 {
		return nil
	}

	rows := make([]model.AgentAssignment, 0, len(societyIDs))
	for _, id := range societyIDs {
		rows = append(rows, model.AgentAssignment{UserID: userID, SocietyID: id})
	}
	return db.Create(&rows).Error
}
