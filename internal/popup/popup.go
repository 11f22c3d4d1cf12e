// Package popup owns the wallet popup window lifecycle: at most one live
// window per manager, open-or-focus semantics, poll-based close detection
// and the teardown that settles everything still waiting on the window.
package popup

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/blendizzard/walletbridge/internal/pending"
	"github.com/blendizzard/walletbridge/internal/protocol"
	"github.com/blendizzard/walletbridge/internal/ready"
)

var (
	// ErrPopupBlocked is returned when the window could not be opened.
	// Surfaced as a result, never a panic: the caller turns it into a
	// user-actionable message.
	ErrPopupBlocked = errors.New("popup blocked")
	// ErrPopupClosed settles every request still pending when the user
	// closes the wallet window.
	ErrPopupClosed = errors.New("popup closed")
)

// Window is one live popup window. Implementations: the browser-backed
// window in internal/browser, fakes in tests.
type Window interface {
	// Post delivers an outbound message to the wallet page.
	Post(msg protocol.Message) error
	// Focus raises the window. Best effort.
	Focus()
	// Closed reports whether the window has gone away.
	Closed() bool
	// Close asks the window to close itself.
	Close()
}

// Opener creates popup windows. It must not be called while a live window
// exists; the Manager enforces that.
type Opener interface {
	Open(url string, f Features) (Window, error)
}

// Features describes the popup geometry passed to the Opener.
type Features struct {
	Width  int
	Height int
	Left   int
	Top    int
}

// Config carries the lifecycle knobs from the bridge configuration.
type Config struct {
	BaseURL      string
	Width        int
	Height       int
	ScreenWidth  int
	ScreenHeight int
	PollInterval time.Duration
}

// Manager tracks the single popup window of one bridge instance. A new
// operation reuses a live window (focusing it) instead of opening a second
// one; detecting an external close rejects every pending request.
type Manager struct {
	opener Opener
	cfg    Config
	gate   *ready.Gate
	table  *pending.Table

	mu       sync.Mutex
	win      Window
	stopPoll chan struct{}
}

func NewManager(opener Opener, cfg Config, gate *ready.Gate, table *pending.Table) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Manager{opener: opener, cfg: cfg, gate: gate, table: table}
}

// Preopen opens or focuses the popup ahead of an operation. Kept separate
// from Ensure so callers can invoke it directly inside a user-initiated
// event, before any suspension point, where window opening is least likely
// to be refused.
func (m *Manager) Preopen(path string) error {
	_, err := m.Ensure(path)
	return err
}

// Ensure returns a live window, opening one if none exists. An existing
// non-closed window is focused and reused.
func (m *Manager) Ensure(path string) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.win != nil && !m.win.Closed() {
		m.win.Focus()
		return m.win, nil
	}
	if m.win != nil {
		// Closed underneath us before the poll noticed.
		m.teardownLocked(m.win)
	}

	// New popup episode: readiness state from the previous window must not
	// leak into this one.
	m.gate.Reset()

	url := m.cfg.BaseURL + path
	win, err := m.opener.Open(url, m.features())
	if err != nil {
		log.Printf("open popup failed: url=%s err=%v", url, err)
		return nil, ErrPopupBlocked
	}

	m.win = win
	m.stopPoll = make(chan struct{})
	go m.pollForClose(win, m.stopPoll)
	log.Printf("popup opened: url=%s w=%d h=%d", url, m.cfg.Width, m.cfg.Height)
	return win, nil
}

// Window returns the current live window, or nil.
func (m *Manager) Window() Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.win != nil && !m.win.Closed() {
		return m.win
	}
	return nil
}

// IsOpen reports whether a non-closed popup exists.
func (m *Manager) IsOpen() bool {
	return m.Window() != nil
}

// Close closes the popup explicitly and runs teardown.
func (m *Manager) Close() {
	m.mu.Lock()
	win := m.win
	m.mu.Unlock()
	if win == nil {
		return
	}
	win.Close()
	m.NotifyClosed(win)
}

// NotifyClosed runs teardown for win if it is still the current window.
// Called by the poll loop; a stale notification for a previous episode is a
// no-op.
func (m *Manager) NotifyClosed(win Window) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked(win)
}

// CloseDetected runs teardown if the current window reports closed. Wired to
// the transport's session-lost callback so teardown does not have to wait
// for the next poll tick.
func (m *Manager) CloseDetected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.win != nil && m.win.Closed() {
		m.teardownLocked(m.win)
	}
}

func (m *Manager) teardownLocked(win Window) {
	if m.win == nil || m.win != win {
		return
	}
	m.win = nil
	if m.stopPoll != nil {
		close(m.stopPoll)
		m.stopPoll = nil
	}
	m.gate.Reset()
	if n := m.table.RejectAll(ErrPopupClosed); n > 0 {
		log.Printf("popup closed: rejected_pending=%d", n)
	} else {
		log.Printf("popup closed")
	}
}

// pollForClose watches one popup episode. There is no close event to
// subscribe to, so the window handle is checked on an interval; the stop
// channel cancels the watch on teardown so no ticker outlives its episode.
func (m *Manager) pollForClose(win Window, stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if win.Closed() {
			m.NotifyClosed(win)
			return
		}
	}
}

// features centers the popup on the configured screen.
func (m *Manager) features() Features {
	f := Features{Width: m.cfg.Width, Height: m.cfg.Height}
	if m.cfg.ScreenWidth > f.Width {
		f.Left = (m.cfg.ScreenWidth - f.Width) / 2
	}
	if m.cfg.ScreenHeight > f.Height {
		f.Top = (m.cfg.ScreenHeight - f.Height) / 2
	}
	return f
}
