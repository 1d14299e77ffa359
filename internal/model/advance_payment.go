package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AdvancePaymentStatus string

const (
	AdvancePending           AdvancePaymentStatus = "Pending"
	AdvanceApproved          AdvancePaymentStatus = "Approved"
	AdvanceRejected          AdvancePaymentStatus = "Rejected"
	AdvancePartiallyApproved AdvancePaymentStatus = "Partially Approved"
)

var AdvancePaymentStatuses = []AdvancePaymentStatus{AdvancePending, AdvanceApproved, AdvanceRejected, AdvancePartiallyApproved}

func (s AdvancePaymentStatus) IsValid() bool {
	for _, status := range AdvancePaymentStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// GrantsFunds reports the statuses that release money, which Managers cannot set
func (s AdvancePaymentStatus) GrantsFunds() bool {
	return s == AdvanceApproved || s == AdvancePartiallyApproved
}

// AdvancePayment is a request for funds ahead of or against a bill
type AdvancePayment struct {
	ID                uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	SocietyID         uuid.UUID            `gorm:"type:uuid;not null;index" json:"societyId"`
	BillID            *uuid.UUID           `gorm:"type:uuid;index" json:"billId"`
	TotalAmountNeeded decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"totalAmountNeeded"`
	RequestedAmount   decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"requestedAmount"`
	ApprovedAmount    *decimal.Decimal     `gorm:"type:decimal(18,2)" json:"approvedAmount"`
	ReceivedAmount    *decimal.Decimal     `gorm:"type:decimal(18,2)" json:"receivedAmount"`
	Status            AdvancePaymentStatus `gorm:"type:varchar(30);not null;default:'Pending';index" json:"status"`
	RequestedBy       uuid.UUID            `gorm:"type:uuid;not null" json:"requestedBy"`
	ApprovedBy        *uuid.UUID           `gorm:"type:uuid" json:"approvedBy"`
	Remarks           string               `gorm:"type:text" json:"remarks"`
	CreatedAt         time.Time            `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt         time.Time            `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (p *AdvancePayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Remaining is totalAmountNeeded minus the larger of approved and received amounts.
// Missing amounts count as zero.
func (p AdvancePayment) Remaining() decimal.Decimal {
	covered := decimal.Zero
	if p.ApprovedAmount != nil {
		covered = *p.ApprovedAmount
	}
	if p.ReceivedAmount != nil && p.ReceivedAmount.GreaterThan(covered) {
		covered = *p.ReceivedAmount
	}
	return p.TotalAmountNeeded.Sub(covered)
}
