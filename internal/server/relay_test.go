package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatrelay/internal/store"
)

// memLog is an in-memory store.Log for relay tests.
type memLog struct {
	mu       sync.Mutex
	entries  []store.Message
	failWith error
}

func (m *memLog) Append(message store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.entries = append(m.entries, message)
	return nil
}

func (m *memLog) Messages() ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Message(nil), m.entries...), nil
}

func (m *memLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestRelay(t *testing.T) (*Relay, *Registry, *memLog) {
	t.Helper()
	registry := NewRegistry()
	log := &memLog{}
	return NewRelay(registry, log, slog.Default()), registry, log
}

func TestRelayPersistsAndForwardsWhenRecipientOnline(t *testing.T) {
	req := require.New(t)
	relay, registry, log := newTestRelay(t)

	recipient := newFakeSession()
	registry.Register("2", recipient)

	before := time.Now().UTC()
	message, err := relay.HandleInbound("1", []byte(`{"to":"2","content":"hey"}`))
	req.NoError(err)

	req.Equal(1, log.count())
	req.Equal("1", message.From)
	req.Equal("2", message.To)
	req.Equal("hey", message.Content)
	req.Equal(store.StatusSent, message.Status)
	req.NotEmpty(message.ID)
	req.False(message.Timestamp.Before(before))

	received := recipient.received()
	req.Len(received, 1)
	var delivered store.Message
	req.NoError(json.Unmarshal(received[0], &delivered))
	req.Equal(message.ID, delivered.ID)
	req.Equal(message.Content, delivered.Content)
}

func TestRelayServerAssignsTrustedFields(t *testing.T) {
	req := require.New(t)
	relay, registry, _ := newTestRelay(t)

	recipient := newFakeSession()
	registry.Register("2", recipient)

	// The client tries to spoof from, timestamp, and status.
	frame := []byte(`{"to":"2","content":"hi","from":"999","timestamp":"1999-01-01T00:00:00Z","status":"read"}`)
	message, err := relay.HandleInbound("1", frame)
	req.NoError(err)

	req.Equal("1", message.From)
	req.Equal(store.StatusSent, message.Status)
	req.True(message.Timestamp.After(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRelayPersistsWhenRecipientOffline(t *testing.T) {
	req := require.New(t)
	relay, _, log := newTestRelay(t)

	_, err := relay.HandleInbound("1", []byte(`{"to":"2","content":"hi"}`))
	req.NoError(err)
	req.Equal(1, log.count())
}

func TestRelayForwardRejectionIsNonFatal(t *testing.T) {
	req := require.New(t)
	relay, registry, log := newTestRelay(t)

	recipient := newFakeSession()
	recipient.accept = false
	registry.Register("2", recipient)

	_, err := relay.HandleInbound("1", []byte(`{"to":"2","content":"hi"}`))
	req.NoError(err)
	req.Equal(1, log.count())
	req.Empty(recipient.received())
}

func TestRelayMalformedFrames(t *testing.T) {
	req := require.New(t)
	relay, _, log := newTestRelay(t)

	frames := [][]byte{
		[]byte(`not json`),
		[]byte(`{"content":"hi"}`),
		[]byte(`{"to":"2"}`),
		[]byte(`{"to":"","content":"hi"}`),
		[]byte(`{"to":2,"content":"hi"}`),
	}
	for _, frame := range frames {
		_, err := relay.HandleInbound("1", frame)
		req.ErrorIs(err, ErrMalformedFrame, "frame %s", frame)
	}
	req.Equal(0, log.count())
}

func TestRelayEmptyContentIsValid(t *testing.T) {
	req := require.New(t)
	relay, _, log := newTestRelay(t)

	// An empty string is still a present content field.
	_, err := relay.HandleInbound("1", []byte(`{"to":"2","content":""}`))
	req.NoError(err)
	req.Equal(1, log.count())
}

func TestRelayPersistenceFailureIsFatalAndSkipsForward(t *testing.T) {
	req := require.New(t)
	relay, registry, log := newTestRelay(t)
	log.failWith = errors.New("disk on fire")

	recipient := newFakeSession()
	registry.Register("2", recipient)

	_, err := relay.HandleInbound("1", []byte(`{"to":"2","content":"hi"}`))
	req.Error(err)
	req.NotErrorIs(err, ErrMalformedFrame)
	req.Empty(recipient.received())
}

func TestRelayPreservesPerSenderOrder(t *testing.T) {
	req := require.New(t)
	relay, registry, _ := newTestRelay(t)

	recipient := newFakeSession()
	registry.Register("2", recipient)

	for _, content := range []string{"one", "two", "three"} {
		frame, _ := json.Marshal(map[string]string{"to": "2", "content": content})
		_, err := relay.HandleInbound("1", frame)
		req.NoError(err)
	}

	received := recipient.received()
	req.Len(received, 3)
	for i, want := range []string{"one", "two", "three"} {
		var m store.Message
		req.NoError(json.Unmarshal(received[i], &m))
		req.Equal(want, m.Content)
	}
}
