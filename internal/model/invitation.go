package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitation lets an officer bring a new colleague into their society.
// Only the SHA-256 of the emailed token is stored.
type Invitation struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SocietyID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_invitation_lookup" json:"societyId"`
	Email      string     `gorm:"type:varchar(255);not null;index:idx_invitation_lookup" json:"email"`
	Role       UserRole   `gorm:"type:varchar(20);not null" json:"role"`
	TokenHash  string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	InvitedBy  uuid.UUID  `gorm:"type:uuid;not null" json:"invitedBy"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expiresAt"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
	AcceptedBy *uuid.UUID `gorm:"type:uuid" json:"acceptedBy,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// IsPending reports whether the invitation can still be accepted at now
func (i *Invitation) IsPending(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}
