// Package store persists the append-only message log that backs the relay.
//
// The log is the single source of truth for message history: every inbound
// frame that parses successfully is appended here before any delivery
// attempt, and nothing in the relay ever mutates or deletes an entry.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// StatusSent is the only delivery status the relay assigns. Delivery to an
// online recipient is best-effort and never reflected back into the log.
const StatusSent = "sent"

// Message is a single immutable log entry. Timestamp is assigned by the
// server at receipt time; From is the sender's verified identity. Both are
// never taken from the client frame.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Log is the append-only message log consumed by the relay engine and read
// by history viewers.
type Log interface {
	Append(message Message) error
	Messages() ([]Message, error)
}

// BadgerLog stores messages in BadgerDB, one entry per message.
type BadgerLog struct {
	db  *badger.DB
	log *slog.Logger
}

// NewBadgerLog wraps an open Badger database as a message log.
func NewBadgerLog(db *badger.DB, log *slog.Logger) *BadgerLog {
	return &BadgerLog{db: db, log: log}
}

// messageKey builds the Badger key for a message. The timestamp is padded to
// 19 digits so lexicographic key order matches chronological order, and the
// message ID disambiguates two messages landing on the same nanosecond.
func messageKey(message Message) []byte {
	return fmt.Appendf(nil, "msg:%019d:%s", message.Timestamp.UnixNano(), message.ID)
}

// Append durably records a message. Once Append returns nil the entry is
// visible to subsequent Messages calls, including after a process restart.
func (b *BadgerLog) Append(message Message) error {
	value, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), value)
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	b.log.Debug("message appended", "id", message.ID, "from", message.From, "to", message.To)
	return nil
}

// Messages returns the full log in chronological order.
func (b *BadgerLog) Messages() ([]Message, error) {
	var messages []Message
	prefix := []byte("msg:")

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var message Message
				if err := json.Unmarshal(value, &message); err != nil {
					return fmt.Errorf("decode message %s: %w", it.Item().Key(), err)
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
