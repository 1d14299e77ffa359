// Package notification fans workflow events out to email, websocket and redis subscribers.
// Delivery is best effort: failures are logged and never reach the caller.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	BillCreated   EventType = "bill.created"
	RemarkAdded   EventType = "bill.remark_added"
	MemberInvited EventType = "society.member_invited"
)

// Event describes one workflow change on a bill, or a member invitation
// (Invite* fields set, BillID zero).
type Event struct {
	Type              EventType `json:"type"`
	SocietyID         uuid.UUID `json:"societyId"`
	BillID            uuid.UUID `json:"billId"`
	VendorName        string    `json:"vendorName"`
	TransactionNature string    `json:"transactionNature"`
	Amount            string    `json:"amount"`
	DueDate           time.Time `json:"dueDate"`
	Status            string    `json:"status"`
	Remark            string    `json:"remark,omitempty"`
	PreviousStatus    string    `json:"previousStatus,omitempty"`
	ActorID           uuid.UUID `json:"actorId"`
	ActorRole         string    `json:"actorRole"`
	OccurredAt        time.Time `json:"occurredAt"`
	AttachmentCount   int       `json:"attachmentCount"`

	InviteEmail     string     `json:"inviteEmail,omitempty"`
	InviteRole      string     `json:"inviteRole,omitempty"`
	InviteExpiresAt *time.Time `json:"inviteExpiresAt,omitempty"`
	// AcceptURL carries the invitation secret; only the email channel may see it
	AcceptURL string `json:"-"`
}

// directRecipients overrides the society audience for events addressed to one person
func (e Event) directRecipients() []string {
	if e.Type == MemberInvited && e.InviteEmail != "" {
		return []string{e.InviteEmail}
	}
	return nil
}

// Recipients are the people to tell about an event in a society
type Recipients struct {
	SocietyName string
	Emails      []string
}

// Message is an event with its recipients resolved
type Message struct {
	Event
	SocietyName string   `json:"societyName"`
	Recipients  []string `json:"-"`
}

// Hook receives workflow events. Implementations must not block or fail the caller.
type Hook interface {
	Notify(ctx context.Context, event Event)
}

// RecipientResolver looks up who should hear about a society's events
type RecipientResolver interface {
	Resolve(ctx context.Context, societyID uuid.UUID) (Recipients, error)
}

// Sender delivers a resolved message over one channel
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// NopHook drops every event
type NopHook struct{}

func (NopHook) Notify(context.Context, Event) {}
