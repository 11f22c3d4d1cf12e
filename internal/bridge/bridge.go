// Package bridge ties the popup lifecycle, readiness gate, correlator and
// transport into the operations the game drives: connect, sign, submit.
// One Bridge per process; inject it, destroy it when done.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/blendizzard/walletbridge/internal/config"
	"github.com/blendizzard/walletbridge/internal/idutil"
	"github.com/blendizzard/walletbridge/internal/pending"
	"github.com/blendizzard/walletbridge/internal/popup"
	"github.com/blendizzard/walletbridge/internal/protocol"
	"github.com/blendizzard/walletbridge/internal/ready"
	"github.com/blendizzard/walletbridge/internal/store"
)

// ErrBridgeClosed is returned by every operation after Destroy.
var ErrBridgeClosed = errors.New("bridge destroyed")

// WalletError carries a failure the wallet reported explicitly
// (success=false). The message is the wallet's error string verbatim.
type WalletError struct {
	Reason string
}

func (e *WalletError) Error() string { return e.Reason }

// SignResult is the outcome of SignTransaction. TxHash is set only when the
// wallet also submitted the transaction.
type SignResult struct {
	SignedXDR string
	TxHash    string
}

// Transport is the inbound listener surface the bridge shuts down on
// Destroy.
type Transport interface {
	Shutdown()
}

// Bridge is the game-side end of the wallet protocol.
type Bridge struct {
	cfg          config.Config
	walletOrigin string

	popups    *popup.Manager
	table     *pending.Table
	gate      *ready.Gate
	journal   store.Journal
	transport Transport

	// OnStatus, when set, observes every wallet status update
	// (ready/signing/submitting/closed).
	OnStatus func(status string)

	mu        sync.Mutex
	destroyed bool
}

// New wires a bridge. transport may be nil (tests drive HandleInbound
// directly).
func New(cfg config.Config, popups *popup.Manager, table *pending.Table, gate *ready.Gate, journal store.Journal, transport Transport) (*Bridge, error) {
	walletOrigin, err := cfg.WalletOrigin()
	if err != nil {
		return nil, err
	}
	if journal == nil {
		journal = store.NewMemoryJournal()
	}
	return &Bridge{
		cfg:          cfg,
		walletOrigin: walletOrigin,
		popups:       popups,
		table:        table,
		gate:         gate,
		journal:      journal,
		transport:    transport,
	}, nil
}

// Preopen opens or focuses the popup without issuing a request. Call it
// straight from the user gesture so the window opening is not refused.
func (b *Bridge) Preopen(path string) error {
	if b.isDestroyed() {
		return ErrBridgeClosed
	}
	if path == "" {
		path = b.cfg.SignerPath
	}
	return b.popups.Preopen(path)
}

// Connect asks the wallet for the user's address. Correlated by the fixed
// connect key: a second connect while one is in flight fails with
// pending.ErrAlreadyPending.
func (b *Bridge) Connect(ctx context.Context) (string, error) {
	msg := protocol.NewConnectRequest(b.cfg.LocalOrigin, b.cfg.AppName, b.cfg.AppIcon)
	resp, err := b.request(ctx, pending.ConnectKey, msg)
	if err != nil {
		return "", err
	}
	return resp.Address, nil
}

// Disconnect tells the wallet to drop the session. Same single-flight rule
// as Connect, keyed by the fixed disconnect key.
func (b *Bridge) Disconnect(ctx context.Context) error {
	msg := protocol.NewDisconnectRequest(b.cfg.LocalOrigin)
	_, err := b.request(ctx, pending.DisconnectKey, msg)
	return err
}

// SignTransaction sends a transaction XDR for signing; submit asks the
// wallet to also submit it to the network.
func (b *Bridge) SignTransaction(ctx context.Context, txXDR, description string, submit bool) (SignResult, error) {
	id := idutil.RequestID()
	msg := protocol.NewSignTransactionRequest(b.cfg.LocalOrigin, id, txXDR, description, submit)
	resp, err := b.request(ctx, id, msg)
	if err != nil {
		return SignResult{}, err
	}
	return SignResult{SignedXDR: resp.SignedXDR, TxHash: resp.TxHash}, nil
}

// SignAuthEntry sends a Soroban authorization entry for signing.
func (b *Bridge) SignAuthEntry(ctx context.Context, authEntryXDR, description string) (string, error) {
	id := idutil.RequestID()
	msg := protocol.NewSignAuthEntryRequest(b.cfg.LocalOrigin, id, authEntryXDR, description)
	resp, err := b.request(ctx, id, msg)
	if err != nil {
		return "", err
	}
	return resp.SignedAuthEntryXDR, nil
}

// SubmitTransaction sends an already-signed transaction for submission and
// returns the transaction hash.
func (b *Bridge) SubmitTransaction(ctx context.Context, txXDR string) (string, error) {
	id := idutil.RequestID()
	msg := protocol.NewSubmitTransactionRequest(b.cfg.LocalOrigin, id, txXDR)
	resp, err := b.request(ctx, id, msg)
	if err != nil {
		return "", err
	}
	return resp.TxHash, nil
}

// NotifyUIError forwards a game-side UI failure to the wallet. Best effort:
// every failure is swallowed.
func (b *Bridge) NotifyUIError(errMsg string) {
	if b.isDestroyed() {
		return
	}
	win := b.popups.Window()
	if win == nil {
		return
	}
	if err := win.Post(protocol.NewWalletUIError(b.cfg.LocalOrigin, errMsg)); err != nil {
		log.Printf("notify ui error dropped: %v", err)
	}
}

// ClosePopup closes the wallet popup, rejecting whatever is still pending.
func (b *Bridge) ClosePopup() {
	b.popups.Close()
}

// IsPopupOpen reports whether a live popup exists.
func (b *Bridge) IsPopupOpen() bool {
	return b.popups.IsOpen()
}

// Destroy closes the popup, rejects all pending entries and removes the
// inbound listener. The bridge is unusable afterwards.
func (b *Bridge) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mu.Unlock()

	b.popups.Close()
	b.table.RejectAll(ErrBridgeClosed)
	if b.transport != nil {
		b.transport.Shutdown()
	}
	log.Printf("bridge destroyed")
}

func (b *Bridge) isDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// request runs one correlated exchange: ensure popup, wait for readiness,
// register the pending entry, post, await the single settle.
func (b *Bridge) request(ctx context.Context, id string, msg protocol.Message) (protocol.Message, error) {
	if b.isDestroyed() {
		return protocol.Message{}, ErrBridgeClosed
	}

	win, err := b.popups.Ensure(b.cfg.SignerPath)
	if err != nil {
		return protocol.Message{}, err
	}

	b.gate.WaitUntilReady(ctx, b.cfg.ReadyFallback())
	if err := ctx.Err(); err != nil {
		return protocol.Message{}, err
	}

	ch, err := b.table.Register(id, b.cfg.RequestTimeout())
	if err != nil {
		return protocol.Message{}, err
	}

	log.Printf("send game->wallet: type=%s request_id=%s", msg.Type, id)
	if err := win.Post(msg); err != nil {
		// Routes the failure through the entry so the settle stays single.
		b.table.Reject(id, fmt.Errorf("post to wallet: %w", err))
	}

	return b.await(ctx, id, ch)
}

func (b *Bridge) await(ctx context.Context, id string, ch <-chan pending.Outcome) (protocol.Message, error) {
	var out pending.Outcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		b.table.Reject(id, ctx.Err())
		out = pending.Outcome{Err: ctx.Err()}
	}
	b.markSettled(id)

	if out.Err != nil {
		return protocol.Message{}, out.Err
	}
	if !out.Msg.Success {
		reason := out.Msg.Error
		if reason == "" {
			reason = "wallet rejected the request"
		}
		return protocol.Message{}, &WalletError{Reason: reason}
	}
	return out.Msg, nil
}

func (b *Bridge) markSettled(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.journal.MarkSettled(ctx, id, b.cfg.JournalTTL()); err != nil {
		log.Printf("journal mark failed: request_id=%s err=%v", id, err)
	}
}
