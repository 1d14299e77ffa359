package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/model"
	"societyledger/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// --- DTOs ---

type AddressPayload struct {
	Street string `json:"street" binding:"max=255"`
	City   string `json:"city" binding:"max=100"`
	State  string `json:"state" binding:"max=100"`
	Zip    string `json:"zip" binding:"max=20"`
}

type ContactPayload struct {
	Phone string `json:"phone" binding:"max=20"`
	Email string `json:"email" binding:"omitempty,email,max=255"`
}

type CreateSocietyRequest struct {
	Name        string         `json:"name" binding:"required,max=255"`
	Address     AddressPayload `json:"address"`
	ContactInfo ContactPayload `json:"contactInfo"`
}

// UpdateSocietyRequest changes only the fields that are present
type UpdateSocietyRequest struct {
	Name        *string         `json:"name" binding:"omitempty,min=1,max=255"`
	Address     *AddressPayload `json:"address"`
	ContactInfo *ContactPayload `json:"contactInfo"`
	IsActive    *bool           `json:"isActive"`
}

type AssignAgentRequest struct {
	AgentID uuid.UUID `json:"agentId" binding:"required"`
}

type AddMemberRequest struct {
	Email    string         `json:"email" binding:"required,email,max=255"`
	Name     string         `json:"name" binding:"max=255"`
	Phone    string         `json:"phone" binding:"max=20"`
	Role     model.UserRole `json:"role" binding:"required,userrole"`
	Password string         `json:"password" binding:"omitempty,min=8,max=72"`
}

type SocietyResponse struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Address         AddressPayload `json:"address"`
	ContactInfo     ContactPayload `json:"contactInfo"`
	IsActive        bool           `json:"isActive"`
	ApprovalStatus  string         `json:"approvalStatus"`
	AssignedAgentID *string        `json:"assignedAgentId"`
	CreatedAt       string         `json:"createdAt"`
	UpdatedAt       string         `json:"updatedAt"`
}

type MemberResponse struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
	JoinedAt string `json:"joinedAt"`
}

// --- Interface ---

type SocietyService interface {
	Create(ctx context.Context, p auth.Principal, req CreateSocietyRequest) (SocietyResponse, error)
	List(ctx context.Context, p auth.Principal) ([]SocietyResponse, error)
	Get(ctx context.Context, p auth.Principal, id uuid.UUID) (SocietyResponse, error)
	Update(ctx context.Context, p auth.Principal, id uuid.UUID, req UpdateSocietyRequest) (SocietyResponse, error)
	AssignAgent(ctx context.Context, p auth.Principal, id uuid.UUID, req AssignAgentRequest) (SocietyResponse, error)
	UnassignAgent(ctx context.Context, p auth.Principal, id uuid.UUID) (SocietyResponse, error)
	ListMembers(ctx context.Context, p auth.Principal, id uuid.UUID) ([]MemberResponse, error)
	AddMember(ctx context.Context, p auth.Principal, id uuid.UUID, req AddMemberRequest) (MemberResponse, error)
	RemoveMember(ctx context.Context, p auth.Principal, id, userID uuid.UUID) error
}

type societyService struct {
	societyRepo repository.SocietyRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	scopes      AccessScopeService
}

func NewSocietyService(
	societyRepo repository.SocietyRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	scopes AccessScopeService,
) SocietyService {
	return &societyService{
		societyRepo: societyRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		scopes:      scopes,
	}
}

// --- Implementation ---

func (s *societyService) Create(ctx context.Context, p auth.Principal, req CreateSocietyRequest) (SocietyResponse, error) {
	if err := requireAdmin(p); err != nil {
		return SocietyResponse{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return SocietyResponse{}, apperror.Validation("society name is required", apperror.FieldError{Field: "name", Message: "is required"})
	}

	society := model.Society{
		Name:           name,
		IsActive:       true,
		ApprovalStatus: model.SocietyApproved,
		CreatedBy:      &p.ID,
	}
	applyAddress(&society, req.Address)
	applyContact(&society, req.ContactInfo)

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.societyRepo.Create(txCtx, &society); err != nil {
			return fmt.Errorf("failed to create society: %w", err)
		}
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionCreateSociety, society.ID.String(), society.Name, map[string]interface{}{
			"city": society.City,
		})
	})
	if err != nil {
		return SocietyResponse{}, err
	}
	return toSocietyResponse(society), nil
}

func (s *societyService) List(ctx context.Context, p auth.Principal) ([]SocietyResponse, error) {
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	societies, err := s.societyRepo.List(ctx, scope.IDs())
	if err != nil {
		return nil, fmt.Errorf("failed to list societies: %w", err)
	}
	result := make([]SocietyResponse, 0, len(societies))
	for _, society := range societies {
		result = append(result, toSocietyResponse(society))
	}
	return result, nil
}

func (s *societyService) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (SocietyResponse, error) {
	if _, err := s.scopes.EnsureAccess(ctx, p, id); err != nil {
		return SocietyResponse{}, err
	}
	society, err := s.societyRepo.GetByID(ctx, id)
	if err != nil {
		return SocietyResponse{}, err
	}
	return toSocietyResponse(*society), nil
}

func (s *societyService) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req UpdateSocietyRequest) (SocietyResponse, error) {
	if err := requireAdmin(p); err != nil {
		return SocietyResponse{}, err
	}

	var society *model.Society
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.societyRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		changed := make(map[string]interface{})
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperror.Validation("society name cannot be empty", apperror.FieldError{Field: "name", Message: "must not be empty"})
			}
			locked.Name = name
			changed["name"] = name
		}
		if req.Address != nil {
			applyAddress(locked, *req.Address)
			changed["address"] = req.Address
		}
		if req.ContactInfo != nil {
			applyContact(locked, *req.ContactInfo)
			changed["contact_info"] = req.ContactInfo
		}
		if req.IsActive != nil {
			locked.IsActive = *req.IsActive
			changed["is_active"] = *req.IsActive
		}

		if err := s.societyRepo.Update(txCtx, locked); err != nil {
			return fmt.Errorf("failed to update society: %w", err)
		}
		society = locked
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionUpdateSociety, locked.ID.String(), locked.Name, changed)
	})
	if err != nil {
		return SocietyResponse{}, err
	}
	return toSocietyResponse(*society), nil
}

func (s *societyService) AssignAgent(ctx context.Context, p auth.Principal, id uuid.UUID, req AssignAgentRequest) (SocietyResponse, error) {
	if err := requireAdmin(p); err != nil {
		return SocietyResponse{}, err
	}

	var society *model.Society
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.societyRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		agent, err := s.userRepo.GetByID(txCtx, req.AgentID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.Validation("agent does not exist", apperror.FieldError{Field: "agentId", Message: "unknown user"})
			}
			return err
		}
		if agent.Role != model.RoleAgent || !agent.IsActive {
			return apperror.Validation("user is not an active agent", apperror.FieldError{Field: "agentId", Message: "must reference an active agent"})
		}

		previous := locked.AssignedAgentID
		if previous != nil && *previous != agent.ID {
			if err := s.userRepo.RemoveAssignment(txCtx, *previous, locked.ID); err != nil {
				return fmt.Errorf("failed to detach previous agent: %w", err)
			}
		}
		if err := s.societyRepo.SetAssignedAgent(txCtx, locked.ID, &agent.ID); err != nil {
			return fmt.Errorf("failed to assign agent: %w", err)
		}
		if err := s.userRepo.AddAssignment(txCtx, agent.ID, locked.ID); err != nil {
			return fmt.Errorf("failed to record agent assignment: %w", err)
		}
		locked.AssignedAgentID = &agent.ID
		society = locked

		return s.auditRepo.Record(txCtx, &p.ID, model.ActionAssignAgent, locked.ID.String(), locked.Name, map[string]interface{}{
			"agent_id":          agent.ID,
			"previous_agent_id": previous,
		})
	})
	if err != nil {
		return SocietyResponse{}, err
	}
	return toSocietyResponse(*society), nil
}

func (s *societyService) UnassignAgent(ctx context.Context, p auth.Principal, id uuid.UUID) (SocietyResponse, error) {
	if err := requireAdmin(p); err != nil {
		return SocietyResponse{}, err
	}

	var society *model.Society
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.societyRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		society = locked
		previous := locked.AssignedAgentID
		if previous == nil {
			return nil
		}

		if err := s.userRepo.RemoveAssignment(txCtx, *previous, locked.ID); err != nil {
			return fmt.Errorf("failed to remove agent assignment: %w", err)
		}
		if err := s.societyRepo.SetAssignedAgent(txCtx, locked.ID, nil); err != nil {
			return fmt.Errorf("failed to unassign agent: %w", err)
		}
		locked.AssignedAgentID = nil

		return s.auditRepo.Record(txCtx, &p.ID, model.ActionUnassignAgent, locked.ID.String(), locked.Name, map[string]interface{}{
			"agent_id": previous,
		})
	})
	if err != nil {
		return SocietyResponse{}, err
	}
	return toSocietyResponse(*society), nil
}

func (s *societyService) ListMembers(ctx context.Context, p auth.Principal, id uuid.UUID) ([]MemberResponse, error) {
	if _, err := s.scopes.EnsureAccess(ctx, p, id); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListSocietyMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	result := make([]MemberResponse, 0, len(users))
	for _, u := range users {
		result = append(result, toMemberResponse(u))
	}
	return result, nil
}

func (s *societyService) AddMember(ctx context.Context, p auth.Principal, id uuid.UUID, req AddMemberRequest) (MemberResponse, error) {
	if err := requireAdmin(p); err != nil {
		return MemberResponse{}, err
	}
	if !req.Role.IsOfficer() {
		return MemberResponse{}, apperror.Validation("members must hold an officer role",
			apperror.FieldError{Field: "role", Message: "must be one of Manager, Treasurer, Secretary, President"})
	}

	var member *model.User
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		society, err := s.societyRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		existing, err := s.userRepo.GetByEmail(txCtx, req.Email)
		switch {
		case err == nil:
			if existing.AssociatedSocietyID != nil {
				return apperror.Conflict("user is already associated with a society")
			}
			if existing.Role == model.RoleAdmin || existing.Role == model.RoleAgent {
				return apperror.Conflict("user already holds a platform role")
			}
			existing.Role = req.Role
			existing.AssociatedSocietyID = &society.ID
			existing.IsActive = true
			if name := strings.TrimSpace(req.Name); name != "" {
				existing.Name = name
			}
			if err := s.userRepo.Update(txCtx, existing); err != nil {
				return fmt.Errorf("failed to bind member: %w", err)
			}
			member = existing
		case errors.Is(err, apperror.ErrNotFound):
			if req.Password == "" {
				return apperror.Validation("password is required for a new member", apperror.FieldError{Field: "password", Message: "is required"})
			}
			hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			name := strings.TrimSpace(req.Name)
			if name == "" {
				name = strings.Split(req.Email, "@")[0]
			}
			member = &model.User{
				Name:                name,
				Email:               req.Email,
				Phone:               strings.TrimSpace(req.Phone),
				Password:            string(hashed),
				Role:                req.Role,
				AssociatedSocietyID: &society.ID,
				IsActive:            true,
			}
			if err := s.userRepo.Create(txCtx, member); err != nil {
				return err
			}
		default:
			return err
		}

		return s.auditRepo.Record(txCtx, &p.ID, model.ActionCreateUser, member.ID.String(), member.Email, map[string]interface{}{
			"society_id": society.ID,
			"role":       member.Role,
		})
	})
	if err != nil {
		return MemberResponse{}, err
	}
	return toMemberResponse(*member), nil
}

func (s *societyService) RemoveMember(ctx context.Context, p auth.Principal, id, userID uuid.UUID) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.userRepo.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user.AssociatedSocietyID == nil || *user.AssociatedSocietyID != id {
			return apperror.NotFound("member")
		}
		user.AssociatedSocietyID = nil
		if err := s.userRepo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionDeactivateUser, user.ID.String(), user.Email, map[string]interface{}{
			"society_id": id,
		})
	})
}

func requireAdmin(p auth.Principal) error {
	if !p.IsAdmin() {
		return apperror.AccessDenied("only an Admin can perform this action")
	}
	return nil
}

func applyAddress(s *model.Society, a AddressPayload) {
	s.Street = strings.TrimSpace(a.Street)
	s.City = strings.TrimSpace(a.City)
	s.State = strings.TrimSpace(a.State)
	s.ZipCode = strings.TrimSpace(a.Zip)
}

func applyContact(s *model.Society, c ContactPayload) {
	s.ContactPhone = strings.TrimSpace(c.Phone)
	s.ContactEmail = strings.ToLower(strings.TrimSpace(c.Email))
}

func toSocietyResponse(s model.Society) SocietyResponse {
	return SocietyResponse{
		ID:   s.ID.String(),
		Name: s.Name,
		Address: AddressPayload{
			Street: s.Street,
			City:   s.City,
			State:  s.State,
			Zip:    s.ZipCode,
		},
		ContactInfo: ContactPayload{
			Phone: s.ContactPhone,
			Email: s.ContactEmail,
		},
		IsActive:        s.IsActive,
		ApprovalStatus:  string(s.ApprovalStatus),
		AssignedAgentID: uuidString(s.AssignedAgentID),
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toMemberResponse(u model.User) MemberResponse {
	return MemberResponse{
		UserID:   u.ID.String(),
		Name:     u.Name,
		Email:    u.Email,
		Role:     string(u.Role),
		IsActive: u.IsActive,
		JoinedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
