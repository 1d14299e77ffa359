package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/config"
	"societyledger/internal/model"
	"societyledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateAgentRequest struct {
	Name              string      `json:"name" binding:"required,max=255"`
	Email             string      `json:"email" binding:"required,email,max=255"`
	Phone             string      `json:"phone" binding:"max=20"`
	Password          string      `json:"password" binding:"required,min=8,max=72"`
	AssignedSocieties []uuid.UUID `json:"assignedSocieties"`
}

type UpdateAgentSocietiesRequest struct {
	AssignedSocieties []uuid.UUID `json:"assignedSocieties" binding:"required"`
}

// UserResponse never exposes the password hash
type UserResponse struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Email               string   `json:"email"`
	Phone               string   `json:"phone"`
	Role                string   `json:"role"`
	AssociatedSocietyID *string  `json:"associatedSocietyId,omitempty"`
	AssignedSocieties   []string `json:"assignedSocieties,omitempty"`
	IsActive            bool     `json:"isActive"`
	CreatedAt           string   `json:"createdAt"`
	UpdatedAt           string   `json:"updatedAt"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

type MeResponse struct {
	User                UserResponse `json:"user"`
	AccessibleSocieties []string     `json:"accessibleSocieties"`
	CanSubmitBills      bool         `json:"canSubmitBills"`
	CanReviewBills      bool         `json:"canReviewBills"`
	CanApproveBills     bool         `json:"canApproveBills"`
}

// UserService covers identity and agent management
type UserService interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Me(ctx context.Context, p auth.Principal) (MeResponse, error)
	// SeedAdmin creates the bootstrap Admin once. It is a no-op when the email is empty or taken.
	SeedAdmin(ctx context.Context, seed config.SeedConfig) error

	CreateAgent(ctx context.Context, p auth.Principal, req CreateAgentRequest) (UserResponse, error)
	ListAgents(ctx context.Context, p auth.Principal, page, limit int) ([]UserResponse, int64, error)
	UpdateAgentSocieties(ctx context.Context, p auth.Principal, agentID uuid.UUID, req UpdateAgentSocietiesRequest) (UserResponse, error)
	TerminateAgent(ctx context.Context, p auth.Principal, agentID uuid.UUID) error
}

type userService struct {
	userRepo    repository.UserRepository
	societyRepo repository.SocietyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	scopes      AccessScopeService
	tokens      *auth.TokenManager
	log         *zap.Logger
}

// NewUserService returns a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	societyRepo repository.SocietyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	scopes AccessScopeService,
	tokens *auth.TokenManager,
	log *zap.Logger,
) UserService {
	return &userService{
		userRepo:    userRepo,
		societyRepo: societyRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		scopes:      scopes,
		tokens:      tokens,
		log:         log.Named("users"),
	}
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return LoginResponse{}, apperror.Unauthorized("invalid email or password")
		}
		return LoginResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return LoginResponse{}, apperror.Unauthorized("invalid email or password")
	}
	if !user.IsActive {
		return LoginResponse{}, apperror.Unauthorized("account is deactivated")
	}

	token, expiresAt, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("failed to generate token: %w", err)
	}

	return LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		User:      mapToResponse(user, nil),
	}, nil
}

func (s *userService) Me(ctx context.Context, p auth.Principal) (MeResponse, error) {
	user, err := s.userRepo.GetByID(ctx, p.ID)
	if err != nil {
		return MeResponse{}, err
	}
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return MeResponse{}, err
	}
	return MeResponse{
		User:                mapToResponse(user, p.AssignedSocietyIDs),
		AccessibleSocieties: idStrings(scope.IDs()),
		CanSubmitBills:      p.CanSubmit(),
		CanReviewBills:      p.CanReview(),
		CanApproveBills:     p.CanReview() && p.Role != model.RoleManager,
	}, nil
}

func (s *userService) SeedAdmin(ctx context.Context, seed config.SeedConfig) error {
	email := strings.TrimSpace(seed.AdminEmail)
	if email == "" {
		return nil
	}
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(seed.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &model.User{
		Name:     seed.AdminName,
		Email:    email,
		Password: string(hashed),
		Role:     model.RoleAdmin,
		IsActive: true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Create(txCtx, admin); err != nil {
			return err
		}
		return s.auditRepo.Record(txCtx, nil, model.ActionCreateUser, admin.ID.String(), admin.Email, map[string]interface{}{
			"role":   admin.Role,
			"source": "seed",
		})
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	s.log.Info("seeded admin user", zap.String("email", admin.Email))
	return nil
}

func (s *userService) CreateAgent(ctx context.Context, p auth.Principal, req CreateAgentRequest) (UserResponse, error) {
	if err := requireAdmin(p); err != nil {
		return UserResponse{}, err
	}
	societies := dedupeIDs(req.AssignedSocieties)

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}
	agent := &model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Phone:    strings.TrimSpace(req.Phone),
		Password: string(hashed),
		Role:     model.RoleAgent,
		IsActive: true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkSocietiesExist(txCtx, societies); err != nil {
			return err
		}
		if err := s.userRepo.Create(txCtx, agent); err != nil {
			return err
		}
		if err := s.userRepo.ReplaceAssignments(txCtx, agent.ID, societies); err != nil {
			return fmt.Errorf("failed to assign societies: %w", err)
		}
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionCreateUser, agent.ID.String(), agent.Email, map[string]interface{}{
			"role":               agent.Role,
			"assigned_societies": societies,
		})
	})
	if err != nil {
		return UserResponse{}, err
	}
	return mapToResponse(agent, societies), nil
}

func (s *userService) ListAgents(ctx context.Context, p auth.Principal, page, limit int) ([]UserResponse, int64, error) {
	if err := requireAdmin(p); err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	agents, total, err := s.userRepo.ListByRole(ctx, model.RoleAgent, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list agents: %w", err)
	}

	responses := make([]UserResponse, 0, len(agents))
	for i := range agents {
		ids, err := s.userRepo.AssignedSocietyIDs(ctx, agents[i].ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load agent assignments: %w", err)
		}
		responses = append(responses, mapToResponse(&agents[i], ids))
	}
	return responses, total, nil
}

func (s *userService) UpdateAgentSocieties(ctx context.Context, p auth.Principal, agentID uuid.UUID, req UpdateAgentSocietiesRequest) (UserResponse, error) {
	if err := requireAdmin(p); err != nil {
		return UserResponse{}, err
	}
	societies := dedupeIDs(req.AssignedSocieties)

	var agent *model.User
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		agent, err = s.getAgent(txCtx, agentID)
		if err != nil {
			return err
		}
		if err := s.checkSocietiesExist(txCtx, societies); err != nil {
			return err
		}
		if err := s.userRepo.ReplaceAssignments(txCtx, agent.ID, societies); err != nil {
			return fmt.Errorf("failed to update agent societies: %w", err)
		}
		if err := s.societyRepo.ClearAgent(txCtx, agent.ID, societies...); err != nil {
			return fmt.Errorf("failed to clear society agent pointers: %w", err)
		}
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionUpdateAgentSocieties, agent.ID.String(), agent.Email, map[string]interface{}{
			"assigned_societies": societies,
		})
	})
	if err != nil {
		return UserResponse{}, err
	}
	return mapToResponse(agent, societies), nil
}

func (s *userService) TerminateAgent(ctx context.Context, p auth.Principal, agentID uuid.UUID) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		agent, err := s.getAgent(txCtx, agentID)
		if err != nil {
			return err
		}
		agent.IsActive = false
		if err := s.userRepo.Update(txCtx, agent); err != nil {
			return fmt.Errorf("failed to deactivate agent: %w", err)
		}
		if err := s.userRepo.ReplaceAssignments(txCtx, agent.ID, nil); err != nil {
			return fmt.Errorf("failed to clear agent assignments: %w", err)
		}
		if err := s.societyRepo.ClearAgent(txCtx, agent.ID); err != nil {
			return fmt.Errorf("failed to clear society agent pointers: %w", err)
		}
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionTerminateAgent, agent.ID.String(), agent.Email, nil)
	})
}

func (s *userService) getAgent(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("agent")
		}
		return nil, err
	}
	if user.Role != model.RoleAgent {
		return nil, apperror.NotFound("agent")
	}
	return user, nil
}

func (s *userService) checkSocietiesExist(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	names, err := s.societyRepo.NamesByID(ctx, ids)
	if err != nil {
		return err
	}
	var details []apperror.FieldError
	for i, id := range ids {
		if _, ok := names[id]; !ok {
			details = append(details, apperror.FieldError{Field: fmt.Sprintf("assignedSocieties[%d]", i), Message: "unknown society " + id.String()})
		}
	}
	if len(details) > 0 {
		return apperror.Validation("unknown societies", details...)
	}
	return nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	return NewScope(ids...).IDs()
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User, assigned []uuid.UUID) UserResponse {
	resp := UserResponse{
		ID:                  user.ID.String(),
		Name:                user.Name,
		Email:               user.Email,
		Phone:               user.Phone,
		Role:                string(user.Role),
		AssociatedSocietyID: uuidString(user.AssociatedSocietyID),
		IsActive:            user.IsActive,
		CreatedAt:           user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           user.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if user.Role == model.RoleAgent {
		resp.AssignedSocieties = idStrings(assigned)
	}
	return resp
}
