package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateBill           = "CREATE_BILL"
	ActionUpdateBillStatus     = "UPDATE_BILL_STATUS"
	ActionAddBillRemark        = "ADD_BILL_REMARK"
	ActionRequestAdvance       = "REQUEST_ADVANCE_PAYMENT"
	ActionReviewAdvance        = "REVIEW_ADVANCE_PAYMENT"
	ActionCreateSociety        = "CREATE_SOCIETY"
	ActionUpdateSociety        = "UPDATE_SOCIETY"
	ActionAssignAgent          = "ASSIGN_AGENT"
	ActionUnassignAgent        = "UNASSIGN_AGENT"
	ActionCreateUser           = "CREATE_USER"
	ActionDeactivateUser       = "DEACTIVATE_USER"
	ActionUpdateAgentSocieties = "UPDATE_AGENT_SOCIETIES"
	ActionTerminateAgent       = "TERMINATE_AGENT"
	ActionInviteMember         = "INVITE_MEMBER"
	ActionAcceptInvitation     = "ACCEPT_INVITATION"
)

// AuditLog tracks who changed what and when. Written in the same transaction as the change.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"userId"` // nil for system actions such as seeding
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entityId"`
	EntityName string         `gorm:"type:varchar(255)" json:"entityName,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
