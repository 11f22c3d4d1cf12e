package pending

import (
	"errors"
	"testing"
	"time"

	"github.com/blendizzard/walletbridge/internal/protocol"
)

func TestResolveSettlesOnce(t *testing.T) {
	tab := NewTable()
	ch, err := tab.Register("req_1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	msg := protocol.Message{Type: protocol.TypeSignTransactionResponse, RequestID: "req_1", Success: true}
	if !tab.Resolve("req_1", msg) {
		t.Fatal("first resolve reported no entry")
	}
	if tab.Resolve("req_1", msg) {
		t.Error("second resolve settled again")
	}
	if tab.Reject("req_1", errors.New("late")) {
		t.Error("reject after resolve settled again")
	}

	out := <-ch
	if out.Err != nil || !out.Msg.Success {
		t.Errorf("outcome = %+v", out)
	}
	if tab.Len() != 0 {
		t.Errorf("table not empty: %d", tab.Len())
	}
}

func TestResolveUnknownIsNoop(t *testing.T) {
	tab := NewTable()
	if tab.Resolve("req_missing", protocol.Message{}) {
		t.Error("resolve of unknown id reported an entry")
	}
}

func TestTimeout(t *testing.T) {
	tab := NewTable()
	ch, err := tab.Register("req_1", 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case out := <-ch:
		if !errors.Is(out.Err, ErrRequestTimeout) {
			t.Errorf("err = %v", out.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}

	// The late response finds nothing.
	if tab.Resolve("req_1", protocol.Message{}) {
		t.Error("resolve after timeout settled again")
	}
}

func TestResolveBeatsTimeout(t *testing.T) {
	tab := NewTable()
	ch, err := tab.Register("req_1", 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if !tab.Resolve("req_1", protocol.Message{Success: true}) {
		t.Fatal("resolve failed")
	}
	out := <-ch
	if out.Err != nil {
		t.Errorf("err = %v", out.Err)
	}
	// Give the stopped timer a chance to misfire.
	time.Sleep(50 * time.Millisecond)
	select {
	case out := <-ch:
		t.Errorf("second outcome delivered: %+v", out)
	default:
	}
}

func TestRejectAll(t *testing.T) {
	tab := NewTable()
	var chans []<-chan Outcome
	for _, id := range []string{"req_1", "req_2", ConnectKey} {
		ch, err := tab.Register(id, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		chans = append(chans, ch)
	}

	closed := errors.New("popup closed")
	if n := tab.RejectAll(closed); n != 3 {
		t.Errorf("rejected %d entries, want 3", n)
	}
	if tab.Len() != 0 {
		t.Errorf("table not empty: %d", tab.Len())
	}
	for _, ch := range chans {
		out := <-ch
		if !errors.Is(out.Err, closed) {
			t.Errorf("err = %v", out.Err)
		}
	}
}

func TestConnectKeySingleFlight(t *testing.T) {
	tab := NewTable()
	if _, err := tab.Register(ConnectKey, time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := tab.Register(ConnectKey, time.Minute); !errors.Is(err, ErrAlreadyPending) {
		t.Errorf("second register err = %v", err)
	}

	// Settling frees the key for the next attempt.
	tab.Reject(ConnectKey, errors.New("gone"))
	if _, err := tab.Register(ConnectKey, time.Minute); err != nil {
		t.Errorf("register after settle err = %v", err)
	}
}
