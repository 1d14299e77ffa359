package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SocietyApprovalStatus string

const (
	SocietyPending  SocietyApprovalStatus = "Pending"
	SocietyApproved SocietyApprovalStatus = "Approved"
	SocietyRejected SocietyApprovalStatus = "Rejected"
)

// Society is a tenant. At most one agent is assigned through AssignedAgentID.
type Society struct {
	ID              uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string                `gorm:"type:varchar(255);not null;index" json:"name"`
	Street          string                `gorm:"type:varchar(255)" json:"street"`
	City            string                `gorm:"type:varchar(100)" json:"city"`
	State           string                `gorm:"type:varchar(100)" json:"state"`
	ZipCode         string                `gorm:"type:varchar(20)" json:"zipCode"`
	ContactPhone    string                `gorm:"type:varchar(20)" json:"contactPhone"`
	ContactEmail    string                `gorm:"type:varchar(255)" json:"contactEmail"`
	IsActive        bool                  `gorm:"not null;default:true" json:"isActive"`
	ApprovalStatus  SocietyApprovalStatus `gorm:"type:varchar(20);not null;default:'Pending'" json:"approvalStatus"`
	AssignedAgentID *uuid.UUID            `gorm:"type:uuid;index" json:"assignedAgentId"`
	CreatedBy       *uuid.UUID            `gorm:"type:uuid" json:"createdBy"`
	CreatedAt       time.Time             `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time             `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *Society) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
