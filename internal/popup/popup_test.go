package popup

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blendizzard/walletbridge/internal/pending"
	"github.com/blendizzard/walletbridge/internal/protocol"
	"github.com/blendizzard/walletbridge/internal/ready"
)

type fakeWindow struct {
	mu     sync.Mutex
	closed bool
	focus  int
	posted []protocol.Message
}

func (w *fakeWindow) Post(msg protocol.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posted = append(w.posted, msg)
	return nil
}

func (w *fakeWindow) Focus() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focus++
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *fakeWindow) focusCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focus
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	wins   []*fakeWindow
	fail   bool
}

func (o *fakeOpener) Open(url string, f Features) (Window, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return nil, errors.New("refused")
	}
	o.opened = append(o.opened, url)
	w := &fakeWindow{}
	o.wins = append(o.wins, w)
	return w, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

func newTestManager(opener Opener) (*Manager, *ready.Gate, *pending.Table) {
	gate := ready.NewGate()
	table := pending.NewTable()
	cfg := Config{
		BaseURL:      "https://wallet.test",
		Width:        420,
		Height:       640,
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		PollInterval: 10 * time.Millisecond,
	}
	return NewManager(opener, cfg, gate, table), gate, table
}

func TestEnsureReusesLiveWindow(t *testing.T) {
	opener := &fakeOpener{}
	m, _, _ := newTestManager(opener)

	w1, err := m.Ensure("/signer")
	if err != nil {
		t.Fatal(err)
	}
	w2, err := m.Ensure("/signer")
	if err != nil {
		t.Fatal(err)
	}
	if w1 != w2 {
		t.Error("second Ensure opened a new window")
	}
	if opener.openCount() != 1 {
		t.Errorf("open count = %d, want 1", opener.openCount())
	}
	if w2.(*fakeWindow).focusCount() != 1 {
		t.Errorf("existing window not focused")
	}
	if opener.opened[0] != "https://wallet.test/signer" {
		t.Errorf("opened url = %s", opener.opened[0])
	}
}

func TestPreopenBlocked(t *testing.T) {
	m, _, _ := newTestManager(&fakeOpener{fail: true})
	if err := m.Preopen("/signer"); !errors.Is(err, ErrPopupBlocked) {
		t.Errorf("err = %v, want ErrPopupBlocked", err)
	}
	if m.IsOpen() {
		t.Error("manager reports open after blocked open")
	}
}

func TestPollDetectsCloseAndRejectsPending(t *testing.T) {
	opener := &fakeOpener{}
	m, _, table := newTestManager(opener)

	win, err := m.Ensure("/signer")
	if err != nil {
		t.Fatal(err)
	}

	var chans []<-chan pending.Outcome
	for _, id := range []string{"req_1", "req_2", "req_3"} {
		ch, err := table.Register(id, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		chans = append(chans, ch)
	}

	win.(*fakeWindow).Close() // user closes the window externally

	for _, ch := range chans {
		select {
		case out := <-ch:
			if !errors.Is(out.Err, ErrPopupClosed) {
				t.Errorf("err = %v, want ErrPopupClosed", out.Err)
			}
		case <-time.After(time.Second):
			t.Fatal("pending entry not rejected after close")
		}
	}
	if table.Len() != 0 {
		t.Errorf("pending table not empty: %d", table.Len())
	}
	if m.IsOpen() {
		t.Error("manager still reports open")
	}
}

func TestEnsureAfterCloseOpensNewEpisode(t *testing.T) {
	opener := &fakeOpener{}
	m, gate, _ := newTestManager(opener)

	if _, err := m.Ensure("/signer"); err != nil {
		t.Fatal(err)
	}
	gate.MarkReady()
	m.Close()

	if gate.Ready() {
		t.Error("readiness leaked past teardown")
	}

	w2, err := m.Ensure("/signer")
	if err != nil {
		t.Fatal(err)
	}
	if opener.openCount() != 2 {
		t.Errorf("open count = %d, want 2", opener.openCount())
	}
	if w2.(*fakeWindow).Closed() {
		t.Error("new episode window already closed")
	}
	if gate.Ready() {
		t.Error("new episode born ready")
	}
}

func TestStaleCloseNotificationIgnored(t *testing.T) {
	opener := &fakeOpener{}
	m, _, table := newTestManager(opener)

	w1, err := m.Ensure("/signer")
	if err != nil {
		t.Fatal(err)
	}
	m.Close()

	if _, err := m.Ensure("/signer"); err != nil {
		t.Fatal(err)
	}
	ch, err := table.Register("req_1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	// A late close notification for the first episode must not touch the
	// second one.
	m.NotifyClosed(w1)

	if !m.IsOpen() {
		t.Error("current window torn down by stale notification")
	}
	select {
	case out := <-ch:
		t.Errorf("pending entry settled by stale notification: %+v", out)
	default:
	}
}

func TestCenteredFeatures(t *testing.T) {
	m, _, _ := newTestManager(&fakeOpener{})
	f := m.features()
	if f.Left != (1920-420)/2 || f.Top != (1080-640)/2 {
		t.Errorf("features = %+v", f)
	}
}
