package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Publisher pushes a payload to live connections watching a society
type Publisher interface {
	Publish(ctx context.Context, societyID uuid.UUID, payload []byte) error
}

// HubSender forwards events to connected websocket clients
type HubSender struct {
	pub Publisher
}

func NewHubSender(pub Publisher) *HubSender {
	return &HubSender{pub: pub}
}

func (s *HubSender) Name() string { return "websocket" }

type liveMessage struct {
	Event string  `json:"event"`
	Data  Message `json:"data"`
}

func (s *HubSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(liveMessage{Event: string(msg.Type), Data: msg})
	if err != nil {
		return fmt.Errorf("encode live message: %w", err)
	}
	return s.pub.Publish(ctx, msg.SocietyID, payload)
}
