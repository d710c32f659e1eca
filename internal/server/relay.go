package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/store"
)

// ErrMalformedFrame is returned when an inbound frame cannot be parsed or is
// missing a required field. The connection that sent it is aborted; there is
// no framing recovery.
var ErrMalformedFrame = errors.New("malformed message frame")

// inboundFrame is the client wire format. Content is a pointer so an absent
// field can be told apart from an empty string; any server-assigned fields
// the client happens to include are ignored.
type inboundFrame struct {
	To      string  `json:"to"`
	Content *string `json:"content"`
}

// Relay persists each inbound message and forwards it to the recipient's
// live session when there is one. Persistence is the hard guarantee;
// delivery is best-effort.
type Relay struct {
	registry *Registry
	messages store.Log
	logger   *slog.Logger
	now      func() time.Time
}

// NewRelay builds a relay over the given registry and message log.
func NewRelay(registry *Registry, messageLog store.Log, logger *slog.Logger) *Relay {
	return &Relay{
		registry: registry,
		messages: messageLog,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleInbound processes one frame received from the connection owned by
// from. It parses, stamps, appends, and then attempts delivery. Any returned
// error is fatal to the sender's connection: ErrMalformedFrame for a bad
// frame, or the wrapped store error when the append failed. A recipient that
// is offline or cannot accept the payload is not an error.
func (r *Relay) HandleInbound(from string, raw []byte) (store.Message, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return store.Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if frame.To == "" || frame.Content == nil {
		return store.Message{}, fmt.Errorf("%w: missing to or content", ErrMalformedFrame)
	}

	message := store.Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        frame.To,
		Content:   *frame.Content,
		Timestamp: r.now().UTC(),
		Status:    store.StatusSent,
	}

	if err := r.messages.Append(message); err != nil {
		return store.Message{}, fmt.Errorf("persist message from %s: %w", from, err)
	}

	r.forward(message)
	return message, nil
}

// forward offers the stored message to the recipient's session. Failure here
// never propagates: a full queue or a connection racing with its own
// disconnect both count as "recipient offline".
func (r *Relay) forward(message store.Message) {
	session, ok := r.registry.Lookup(message.To)
	if !ok {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Error("encode outbound message", "id", message.ID, "error", err)
		return
	}
	if !session.TrySend(payload) {
		r.logger.Warn("recipient unreachable, message stored only",
			"id", message.ID, "to", message.To)
	}
}
