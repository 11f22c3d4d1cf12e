// Package pending correlates outstanding requests with their eventual
// responses. The transport gives no delivery or ordering guarantee, so every
// settle path is idempotent and keyed strictly by request identifier.
package pending

import (
	"errors"
	"sync"
	"time"

	"github.com/blendizzard/walletbridge/internal/protocol"
)

// Fixed correlation keys for the two flows whose responses carry no
// requestId. Sharing the key forbids two in-flight attempts by construction.
const (
	ConnectKey    = "connect"
	DisconnectKey = "disconnect"
)

var (
	// ErrRequestTimeout settles an entry whose response never arrived.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrAlreadyPending is returned when registering an identifier that is
	// still live, e.g. a second concurrent connect.
	ErrAlreadyPending = errors.New("request already pending")
)

// Outcome is the single settled result of a pending entry: exactly one of
// Msg or Err is meaningful.
type Outcome struct {
	Msg protocol.Message
	Err error
}

type entry struct {
	ch    chan Outcome
	timer *time.Timer
}

// Table maps live request identifiers to their unsettled outcome. Each entry
// settles exactly once through the first of: matching response, timeout,
// reject (popup closed / teardown). Later attempts for the same identifier
// find no entry and are no-ops.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewTable() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Register inserts a live entry for id and returns the channel its outcome
// will arrive on. The timer settles the entry with ErrRequestTimeout if
// nothing else does first.
func (t *Table) Register(id string, timeout time.Duration) (<-chan Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; ok {
		return nil, ErrAlreadyPending
	}

	e := &entry{ch: make(chan Outcome, 1)}
	e.timer = time.AfterFunc(timeout, func() {
		t.settle(id, Outcome{Err: ErrRequestTimeout})
	})
	t.entries[id] = e
	return e.ch, nil
}

// Resolve settles id with a matching response. Reports false when no entry
// is live under id (late, duplicate or unexpected message).
func (t *Table) Resolve(id string, msg protocol.Message) bool {
	return t.settle(id, Outcome{Msg: msg})
}

// Reject settles id with err. Reports false when no entry is live under id.
func (t *Table) Reject(id string, err error) bool {
	return t.settle(id, Outcome{Err: err})
}

// RejectAll settles every live entry with err and empties the table. Used by
// popup-closed teardown and bridge destruction.
func (t *Table) RejectAll(err error) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.entries)
	for id, e := range t.entries {
		e.timer.Stop()
		e.ch <- Outcome{Err: err}
		delete(t.entries, id)
	}
	return n
}

// Len reports the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) settle(id string, out Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.entries, id)
	e.ch <- out
	return true
}
