package service

import (
	"context"
	"errors"
	"fmt"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/model"
	"societyledger/internal/repository"

	"github.com/google/uuid"
)

// Scope is the set of societies a principal may read or act upon
type Scope struct {
	ids map[uuid.UUID]struct{}
	// order preserved for stable query arguments
	list []uuid.UUID
}

func NewScope(ids ...uuid.UUID) Scope {
	s := Scope{ids: make(map[uuid.UUID]struct{}, len(ids)), list: make([]uuid.UUID, 0, len(ids))}
	for _, id := range ids {
		if _, ok := s.ids[id]; ok {
			continue
		}
		s.ids[id] = struct{}{}
		s.list = append(s.list, id)
	}
	return s
}

func (s Scope) Contains(id uuid.UUID) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs never returns nil so repositories treat an empty scope as "match nothing"
func (s Scope) IDs() []uuid.UUID {
	if s.list == nil {
		return []uuid.UUID{}
	}
	return s.list
}

func (s Scope) Len() int {
	return len(s.list)
}

// Narrow intersects the scope with a single requested society. A nil id keeps the scope as is.
func (s Scope) Narrow(societyID *uuid.UUID) Scope {
	if societyID == nil {
		return s
	}
	if s.Contains(*societyID) {
		return NewScope(*societyID)
	}
	return NewScope()
}

// ResolveScope computes a principal's scope. allSocieties is consulted only for Admins.
func ResolveScope(p auth.Principal, allSocieties []uuid.UUID) Scope {
	switch {
	case p.Role == model.RoleAdmin:
		return NewScope(allSocieties...)
	case p.Role == model.RoleAgent:
		return NewScope(p.AssignedSocietyIDs...)
	case p.Role.IsOfficer():
		if p.HomeSocietyID != nil {
			return NewScope(*p.HomeSocietyID)
		}
		return NewScope()
	default:
		return NewScope()
	}
}

// --- Interface ---

type AccessScopeService interface {
	// LoadPrincipal builds the request principal from the stored user. Missing or inactive users are Unauthorized.
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (auth.Principal, error)
	Resolve(ctx context.Context, p auth.Principal) (Scope, error)
	// EnsureAccess resolves the scope and fails with AccessDenied when societyID is outside it
	EnsureAccess(ctx context.Context, p auth.Principal, societyID uuid.UUID) (Scope, error)
}

type accessScopeService struct {
	userRepo    repository.UserRepository
	societyRepo repository.SocietyRepository
}

func NewAccessScopeService(userRepo repository.UserRepository, societyRepo repository.SocietyRepository) AccessScopeService {
	return &accessScopeService{userRepo: userRepo, societyRepo: societyRepo}
}

// --- Implementation ---

func (s *accessScopeService) LoadPrincipal(ctx context.Context, userID uuid.UUID) (auth.Principal, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return auth.Principal{}, apperror.Unauthorized("user no longer exists")
		}
		return auth.Principal{}, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return auth.Principal{}, apperror.Unauthorized("account is deactivated")
	}

	p := auth.Principal{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
	switch {
	case user.Role == model.RoleAgent:
		ids, err := s.userRepo.AssignedSocietyIDs(ctx, user.ID)
		if err != nil {
			return auth.Principal{}, fmt.Errorf("failed to load agent assignments: %w", err)
		}
		p.AssignedSocietyIDs = ids
	case user.Role.IsOfficer():
		p.HomeSocietyID = user.AssociatedSocietyID
	}
	return p, nil
}

func (s *accessScopeService) Resolve(ctx context.Context, p auth.Principal) (Scope, error) {
	if !p.IsAdmin() {
		return ResolveScope(p, nil), nil
	}
	ids, err := s.societyRepo.ListIDs(ctx)
	if err != nil {
		return Scope{}, fmt.Errorf("failed to list societies: %w", err)
	}
	return ResolveScope(p, ids), nil
}

func (s *accessScopeService) EnsureAccess(ctx context.Context, p auth.Principal, societyID uuid.UUID) (Scope, error) {
	scope, err := s.Resolve(ctx, p)
	if err != nil {
		return Scope{}, err
	}
	if !scope.Contains(societyID) {
		// Admins see every society, so a miss can only mean it does not exist
		if p.IsAdmin() {
			return Scope{}, apperror.NotFound("society")
		}
		return Scope{}, apperror.AccessDenied("you do not have access to this society")
	}
	return scope, nil
}
