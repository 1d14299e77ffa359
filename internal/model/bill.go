package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BillStatus is the bill state machine. Any status may move to any other.
type BillStatus string

const (
	BillPending               BillStatus = "Pending"
	BillUnderReview           BillStatus = "Under Review"
	BillClarificationRequired BillStatus = "Clarification Required"
	BillApproved              BillStatus = "Approved"
	BillRejected              BillStatus = "Rejected"
)

var BillStatuses = []BillStatus{BillPending, BillUnderReview, BillClarificationRequired, BillApproved, BillRejected}

func (s BillStatus) IsValid() bool {
	for _, status := range BillStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports the statuses that close a bill in practice
func (s BillStatus) IsTerminal() bool {
	return s == BillApproved || s == BillRejected
}

// BillAttachment references a file held by the blob store
type BillAttachment struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileSize int64  `json:"fileSize,omitempty"`
}

// Bill is a vendor bill submitted on behalf of a society.
// Version increases by one on every status change or remark.
// VendorSearch holds VendorName folded with strings.ToLower, so vendor matching
// does not depend on how the database folds non-ASCII case.
type Bill struct {
	ID                uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	SocietyID         uuid.UUID                           `gorm:"type:uuid;not null;index" json:"societyId"`
	Society           *Society                            `gorm:"foreignKey:SocietyID" json:"-"`
	VendorName        string                              `gorm:"type:varchar(255);not null" json:"vendorName"`
	VendorSearch      string                              `gorm:"type:varchar(255);not null;default:'';index" json:"-"`
	VendorContact     string                              `gorm:"type:varchar(255)" json:"vendorContact"`
	TransactionNature string                              `gorm:"type:varchar(255);not null" json:"transactionNature"`
	Amount            decimal.Decimal                     `gorm:"type:decimal(18,2);not null" json:"amount"`
	DueDate           time.Time                           `gorm:"not null" json:"dueDate"`
	Status            BillStatus                          `gorm:"type:varchar(30);not null;default:'Pending';index" json:"status"`
	Attachments       datatypes.JSONSlice[BillAttachment] `json:"attachments"`
	SubmittedBy       uuid.UUID                           `gorm:"type:uuid;not null" json:"submittedBy"`
	Version           int                                 `gorm:"not null;default:0" json:"version"`
	Remarks           []BillRemark                        `gorm:"foreignKey:BillID" json:"remarks"`
	CreatedAt         time.Time                           `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt         time.Time                           `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (b *Bill) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.VendorSearch = strings.ToLower(b.VendorName)
	return nil
}

// BillRemark is one append-only entry of a bill's trail. NewStatus is nil for plain remarks.
type BillRemark struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	BillID         uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_bill_remark_seq" json:"billId"`
	Seq            int         `gorm:"not null;uniqueIndex:idx_bill_remark_seq" json:"seq"`
	Text           string      `gorm:"type:text" json:"text"`
	AuthorID       uuid.UUID   `gorm:"type:uuid;not null" json:"authorId"`
	AuthorRole     UserRole    `gorm:"type:varchar(20);not null" json:"authorRole"`
	PreviousStatus BillStatus  `gorm:"type:varchar(30);not null" json:"previousStatus"`
	NewStatus      *BillStatus `gorm:"type:varchar(30)" json:"newStatus,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"timestamp"`
}

func (r *BillRemark) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
