package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/config"
	"societyledger/internal/model"
	"societyledger/internal/notification"
	"societyledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- DTOs ---

type InviteMemberRequest struct {
	Email string         `json:"email" binding:"required,email,max=255"`
	Role  model.UserRole `json:"role" binding:"required,userrole"`
}

type AcceptInvitationRequest struct {
	Token    string `json:"token" binding:"required"`
	Name     string `json:"name" binding:"required,max=255"`
	Phone    string `json:"phone" binding:"max=20"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type InvitationResponse struct {
	ID        string `json:"id"`
	SocietyID string `json:"societyId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	InvitedBy string `json:"invitedBy"`
	ExpiresAt string `json:"expiresAt"`
	CreatedAt string `json:"createdAt"`
}

// InvitationService lets officers bring colleagues into their own society.
// The secret token only ever travels in the invitation email.
type InvitationService interface {
	Invite(ctx context.Context, p auth.Principal, societyID uuid.UUID, req InviteMemberRequest) (InvitationResponse, error)
	// Accept creates the invited officer and signs them in
	Accept(ctx context.Context, req AcceptInvitationRequest) (LoginResponse, error)
	ListPending(ctx context.Context, p auth.Principal) ([]InvitationResponse, error)
}

type invitationService struct {
	invitationRepo repository.InvitationRepository
	userRepo       repository.UserRepository
	societyRepo    repository.SocietyRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	tokens         *auth.TokenManager
	hook           notification.Hook
	cfg            config.InvitationConfig
	log            *zap.Logger
	now            func() time.Time
}

func NewInvitationService(
	invitationRepo repository.InvitationRepository,
	userRepo repository.UserRepository,
	societyRepo repository.SocietyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	tokens *auth.TokenManager,
	hook notification.Hook,
	cfg config.InvitationConfig,
	log *zap.Logger,
) InvitationService {
	if hook == nil {
		hook = notification.NopHook{}
	}
	return &invitationService{
		invitationRepo: invitationRepo,
		userRepo:       userRepo,
		societyRepo:    societyRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		tokens:         tokens,
		hook:           hook,
		cfg:            cfg,
		log:            log.Named("invitations"),
		now:            time.Now,
	}
}

var errInvalidInvitation = apperror.Validation("invalid or expired invitation",
	apperror.FieldError{Field: "token", Message: "is invalid or expired"})

func (s *invitationService) Invite(ctx context.Context, p auth.Principal, societyID uuid.UUID, req InviteMemberRequest) (InvitationResponse, error) {
	if !p.Role.IsOfficer() {
		return InvitationResponse{}, apperror.AccessDenied("only society officers can invite members")
	}
	if p.HomeSocietyID == nil || *p.HomeSocietyID != societyID {
		return InvitationResponse{}, apperror.AccessDenied("you can only invite members to your own society")
	}
	if !req.Role.IsOfficer() {
		return InvitationResponse{}, apperror.Validation("invited members must hold an officer role",
			apperror.FieldError{Field: "role", Message: "must be one of Manager, Treasurer, Secretary, President"})
	}

	token, tokenHash, err := newInvitationToken()
	if err != nil {
		return InvitationResponse{}, err
	}
	link, err := s.acceptLink(token)
	if err != nil {
		return InvitationResponse{}, err
	}

	now := s.now().UTC()
	inv := &model.Invitation{
		SocietyID: societyID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Role:      req.Role,
		TokenHash: tokenHash,
		InvitedBy: p.ID,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// the society row lock serializes concurrent invites for the same address
		if _, err := s.societyRepo.GetByIDForUpdate(txCtx, societyID); err != nil {
			return err
		}
		if _, err := s.userRepo.GetByEmail(txCtx, inv.Email); err == nil {
			return apperror.Conflict("email already registered")
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		pending, err := s.invitationRepo.HasPending(txCtx, societyID, inv.Email, now)
		if err != nil {
			return fmt.Errorf("failed to check pending invitations: %w", err)
		}
		if pending {
			return apperror.Conflict("invitation already sent to this email")
		}

		if err := s.invitationRepo.Create(txCtx, inv); err != nil {
			return err
		}
		if err := s.auditRepo.Record(txCtx, &p.ID, model.ActionInviteMember, inv.ID.String(), inv.Email, map[string]interface{}{
			"society_id": societyID,
			"role":       inv.Role,
			"expires_at": inv.ExpiresAt,
		}); err != nil {
			return err
		}

		repository.AfterCommit(txCtx, func() {
			expires := inv.ExpiresAt
			s.hook.Notify(ctx, notification.Event{
				Type:            notification.MemberInvited,
				SocietyID:       societyID,
				ActorID:         p.ID,
				ActorRole:       string(p.Role),
				OccurredAt:      now,
				InviteEmail:     inv.Email,
				InviteRole:      string(inv.Role),
				InviteExpiresAt: &expires,
				AcceptURL:       link,
			})
		})
		return nil
	})
	if err != nil {
		return InvitationResponse{}, err
	}

	s.log.Info("member invited",
		zap.String("society_id", societyID.String()),
		zap.String("role", string(inv.Role)),
		zap.String("invited_by", p.ID.String()))
	return toInvitationResponse(*inv), nil
}

func (s *invitationService) Accept(ctx context.Context, req AcceptInvitationRequest) (LoginResponse, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return LoginResponse{}, errInvalidInvitation
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return LoginResponse{}, apperror.Validation("invalid account details", apperror.FieldError{Field: "name", Message: "is required"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	var user *model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invitationRepo.GetByTokenHashForUpdate(txCtx, hashInvitationToken(token))
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return errInvalidInvitation
			}
			return err
		}
		if !inv.IsPending(now) {
			return errInvalidInvitation
		}
		if _, err := s.userRepo.GetByEmail(txCtx, inv.Email); err == nil {
			return apperror.Conflict("email already registered")
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}

		societyID := inv.SocietyID
		user = &model.User{
			Name:                name,
			Email:               inv.Email,
			Phone:               strings.TrimSpace(req.Phone),
			Password:            string(hashed),
			Role:                inv.Role,
			AssociatedSocietyID: &societyID,
			IsActive:            true,
		}
		if err := s.userRepo.Create(txCtx, user); err != nil {
			return err
		}
		if err := s.invitationRepo.MarkAccepted(txCtx, inv.ID, user.ID, now); err != nil {
			return fmt.Errorf("failed to close invitation: %w", err)
		}
		return s.auditRepo.Record(txCtx, &user.ID, model.ActionAcceptInvitation, inv.ID.String(), inv.Email, map[string]interface{}{
			"society_id": societyID,
			"role":       inv.Role,
			"invited_by": inv.InvitedBy,
		})
	})
	if err != nil {
		return LoginResponse{}, err
	}

	signed, expiresAt, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return LoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		User:      mapToResponse(user, nil),
	}, nil
}

func (s *invitationService) ListPending(ctx context.Context, p auth.Principal) ([]InvitationResponse, error) {
	if !p.Role.IsOfficer() || p.HomeSocietyID == nil {
		return nil, apperror.AccessDenied("you must be associated with a society")
	}
	invitations, err := s.invitationRepo.ListPending(ctx, *p.HomeSocietyID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	out := make([]InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationResponse(inv))
	}
	return out, nil
}

func (s *invitationService) acceptLink(token string) (string, error) {
	u, err := url.Parse(s.cfg.AcceptURL)
	if err != nil {
		return "", fmt.Errorf("invalid invitation accept url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newInvitationToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate invitation token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, hashInvitationToken(token), nil
}

func hashInvitationToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func toInvitationResponse(inv model.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:        inv.ID.String(),
		SocietyID: inv.SocietyID.String(),
		Email:     inv.Email,
		Role:      string(inv.Role),
		InvitedBy: inv.InvitedBy.String(),
		ExpiresAt: inv.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt: inv.CreatedAt.UTC().Format(time.RFC3339),
	}
}
