package service

import (
	"context"
	"fmt"

	"societyledger/internal/notification"
	"societyledger/internal/repository"

	"github.com/google/uuid"
)

type recipientResolver struct {
	societyRepo repository.SocietyRepository
	userRepo    repository.UserRepository
}

// NewRecipientResolver resolves the active officers of a society together with
// every agent responsible for it
func NewRecipientResolver(societyRepo repository.SocietyRepository, userRepo repository.UserRepository) notification.RecipientResolver {
	return &recipientResolver{societyRepo: societyRepo, userRepo: userRepo}
}

func (r *recipientResolver) Resolve(ctx context.Context, societyID uuid.UUID) (notification.Recipients, error) {
	society, err := r.societyRepo.GetByID(ctx, societyID)
	if err != nil {
		return notification.Recipients{}, fmt.Errorf("load society: %w", err)
	}

	members, err := r.userRepo.ListSocietyMembers(ctx, societyID)
	if err != nil {
		return notification.Recipients{}, fmt.Errorf("load members: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(members)+1)
	emails := make([]string, 0, len(members)+1)
	for _, m := range members {
		seen[m.ID] = true
		if m.Email != "" {
			emails = append(emails, m.Email)
		}
	}

	if society.AssignedAgentID != nil && !seen[*society.AssignedAgentID] {
		agent, err := r.userRepo.GetByID(ctx, *society.AssignedAgentID)
		if err == nil && agent.IsActive && agent.Email != "" {
			emails = append(emails, agent.Email)
		}
	}

	return notification.Recipients{SocietyName: society.Name, Emails: emails}, nil
}
