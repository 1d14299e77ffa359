package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"societyledger/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	name string
	err  error
	mu   sync.Mutex
	got  []Message
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, msg)
	return s.err
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.got...)
}

type panickingSender struct{}

func (panickingSender) Name() string                        { return "panics" }
func (panickingSender) Send(context.Context, Message) error { panic("boom") }

type staticResolver struct {
	recipients Recipients
	err        error
}

func (r staticResolver) Resolve(context.Context, uuid.UUID) (Recipients, error) {
	return r.recipients, r.err
}

func testEvent(t EventType) Event {
	return Event{
		Type:              t,
		SocietyID:         uuid.New(),
		BillID:            uuid.New(),
		VendorName:        "Acme Plumbing",
		TransactionNature: "Maintenance",
		Amount:            "150.75",
		DueDate:           time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		Status:            "Pending",
		OccurredAt:        time.Now(),
	}
}

func TestDispatcher_DeliversToEverySender(t *testing.T) {
	failing := &recordingSender{name: "failing", err: errors.New("relay down")}
	ok := &recordingSender{name: "ok"}
	resolver := staticResolver{recipients: Recipients{SocietyName: "Green Meadows", Emails: []string{"a@x.io", "b@x.io"}}}

	d := NewDispatcher(resolver, 8, 2, zap.NewNop(), failing, panickingSender{}, ok)
	d.Start()

	event := testEvent(BillCreated)
	d.Notify(context.Background(), event)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	require.Len(t, failing.messages(), 1)
	got := ok.messages()
	require.Len(t, got, 1)
	assert.Equal(t, event.BillID, got[0].BillID)
	assert.Equal(t, "Green Meadows", got[0].SocietyName)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, got[0].Recipients)
}

func TestDispatcher_ResolverFailureStillDelivers(t *testing.T) {
	s := &recordingSender{name: "ok"}
	d := NewDispatcher(staticResolver{err: errors.New("db gone")}, 4, 1, zap.NewNop(), s)
	d.Start()
	d.Notify(context.Background(), testEvent(RemarkAdded))
	require.NoError(t, d.Close(context.Background()))

	got := s.messages()
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Recipients)
}

func TestDispatcher_DropsWhenFullOrClosed(t *testing.T) {
	s := &recordingSender{name: "ok"}
	// not started: nothing drains the queue
	d := NewDispatcher(nil, 1, 1, zap.NewNop(), s)

	d.Notify(context.Background(), testEvent(BillCreated))
	d.Notify(context.Background(), testEvent(BillCreated))
	assert.Len(t, d.queue, 1)

	d.Start()
	require.NoError(t, d.Close(context.Background()))
	d.Notify(context.Background(), testEvent(BillCreated))

	assert.Len(t, s.messages(), 1)
}

func TestEmailSender_Send(t *testing.T) {
	type captured struct {
		path string
		auth string
		body emailPayload
	}
	seen := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{path: r.URL.Path, auth: r.Header.Get("Authorization")}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &c.body)
		seen <- c
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewEmailSender(config.EmailConfig{ServiceURL: srv.URL + "/", APIKey: "secret", From: "noreply@ledger.io", Timeout: time.Second})
	msg := Message{Event: testEvent(BillCreated), SocietyName: "Green Meadows", Recipients: []string{"a@x.io"}}

	require.NoError(t, sender.Send(context.Background(), msg))
	got := <-seen
	gotAuth, gotBody := got.auth, got.body
	assert.Equal(t, "/send", got.path)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "noreply@ledger.io", gotBody.From)
	assert.Equal(t, []string{"a@x.io"}, gotBody.To)
	assert.Equal(t, "New Expense Added - Green Meadows", gotBody.Subject)
	assert.Contains(t, gotBody.Text, "Vendor: Acme Plumbing")
	assert.Contains(t, gotBody.Text, "Amount: 150.75")
	assert.Contains(t, gotBody.Text, "Due Date: 15 Apr 2024")
	assert.Contains(t, gotBody.HTML, "<strong>Nature:</strong> Maintenance")
}

func TestEmailSender_Failures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewEmailSender(config.EmailConfig{ServiceURL: srv.URL, Timeout: time.Second})

	t.Run("no recipients skips the relay", func(t *testing.T) {
		require.NoError(t, sender.Send(context.Background(), Message{Event: testEvent(BillCreated)}))
		assert.Zero(t, calls.Load())
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		err := sender.Send(context.Background(), Message{Event: testEvent(BillCreated), Recipients: []string{"a@x.io"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}

func TestComposeEmail_Remark(t *testing.T) {
	ev := testEvent(RemarkAdded)
	ev.Status = "Approved"
	ev.PreviousStatus = "Reviewed"
	ev.Remark = "Looks fine"
	ev.ActorRole = "Treasurer"

	p, err := composeEmail(Message{Event: ev})
	require.NoError(t, err)
	assert.Equal(t, "New Remark on Bill - your society", p.Subject)
	assert.Contains(t, p.Text, "Status: Approved")
	assert.Contains(t, p.Text, "Previous Status: Reviewed")
	assert.Contains(t, p.Text, "Remark: Looks fine")

	_, err = composeEmail(Message{Event: Event{Type: "bill.deleted"}})
	assert.Error(t, err)
}

type capturePublisher struct {
	societyID uuid.UUID
	payload   []byte
}

func (p *capturePublisher) Publish(_ context.Context, societyID uuid.UUID, payload []byte) error {
	p.societyID = societyID
	p.payload = payload
	return nil
}

func TestHubSender_Send(t *testing.T) {
	pub := &capturePublisher{}
	ev := testEvent(BillCreated)

	require.NoError(t, NewHubSender(pub).Send(context.Background(), Message{Event: ev, SocietyName: "Green Meadows", Recipients: []string{"hidden@x.io"}}))
	assert.Equal(t, ev.SocietyID, pub.societyID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "bill.created", decoded["event"])
	data := decoded["data"].(map[string]any)
	assert.Equal(t, "Green Meadows", data["societyName"])
	assert.Equal(t, "150.75", data["amount"])
	assert.NotContains(t, string(pub.payload), "hidden@x.io")
}

func inviteEvent() Event {
	expires := time.Date(2024, 5, 8, 9, 30, 0, 0, time.UTC)
	return Event{
		Type:            MemberInvited,
		SocietyID:       uuid.New(),
		InviteEmail:     "new.treasurer@x.io",
		InviteRole:      "Treasurer",
		InviteExpiresAt: &expires,
		AcceptURL:       "https://ledger.example/accept-invitation?token=s3cret",
		OccurredAt:      time.Now(),
	}
}

func TestDispatcher_InvitationGoesToInviteeOnly(t *testing.T) {
	s := &recordingSender{name: "ok"}
	resolver := staticResolver{recipients: Recipients{SocietyName: "Green Meadows", Emails: []string{"officer@x.io"}}}
	d := NewDispatcher(resolver, 4, 1, zap.NewNop(), s)
	d.Start()
	d.Notify(context.Background(), inviteEvent())
	require.NoError(t, d.Close(context.Background()))

	got := s.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "Green Meadows", got[0].SocietyName)
	assert.Equal(t, []string{"new.treasurer@x.io"}, got[0].Recipients)
}

func TestComposeEmail_Invitation(t *testing.T) {
	p, err := composeEmail(Message{Event: inviteEvent(), SocietyName: "Green Meadows"})
	require.NoError(t, err)
	assert.Equal(t, "You're invited to join Green Meadows", p.Subject)
	assert.Contains(t, p.Text, "Role: Treasurer")
	assert.Contains(t, p.Text, "Expires: 08 May 2024 09:30 UTC")
	assert.Contains(t, p.Text, "https://ledger.example/accept-invitation?token=s3cret")
	assert.NotContains(t, p.Text, "Vendor:")
	assert.Contains(t, p.HTML, `href="https://ledger.example/accept-invitation?token=s3cret"`)

	ev := inviteEvent()
	ev.AcceptURL = ""
	_, err = composeEmail(Message{Event: ev})
	assert.Error(t, err)
}

func TestHubSender_InvitationHidesLink(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, NewHubSender(pub).Send(context.Background(), Message{Event: inviteEvent()}))
	assert.Contains(t, string(pub.payload), "society.member_invited")
	assert.NotContains(t, string(pub.payload), "s3cret")
}
