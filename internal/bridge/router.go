package bridge

import (
	"context"
	"log"
	"time"

	"github.com/blendizzard/walletbridge/internal/pending"
	"github.com/blendizzard/walletbridge/internal/protocol"
)

// HandleInbound routes one inbound transport frame. origin is the
// transport-level sender origin; frames from anywhere but the configured
// wallet origin are discarded before the payload is even parsed. The router
// never opens windows and never panics — its only side effects are gate,
// lifecycle and correlator updates.
func (b *Bridge) HandleInbound(origin string, data []byte) {
	if b.isDestroyed() {
		return
	}
	if origin != b.walletOrigin {
		log.Printf("drop inbound: origin=%s want=%s", origin, b.walletOrigin)
		return
	}

	msg, ok := protocol.DecodeInbound(data)
	if !ok {
		log.Printf("drop inbound: malformed or foreign frame")
		return
	}
	log.Printf("recv wallet->game: type=%s request_id=%s", msg.Type, msg.RequestID)

	switch msg.Type {
	case protocol.TypeWalletStatusUpdate:
		b.handleStatus(msg.Status)
	case protocol.TypeConnectResponse:
		b.resolveFixed(pending.ConnectKey, msg)
	case protocol.TypeDisconnectResponse:
		b.resolveFixed(pending.DisconnectKey, msg)
	default:
		b.resolveByRequestID(msg)
	}
}

func (b *Bridge) handleStatus(status string) {
	switch status {
	case protocol.StatusReady:
		b.gate.MarkReady()
	case protocol.StatusClosed:
		// The wallet announces its own close before the window goes away;
		// tear down now instead of waiting for the poll.
		b.popups.Close()
	}
	if b.OnStatus != nil {
		b.OnStatus(status)
	}
}

func (b *Bridge) resolveFixed(key string, msg protocol.Message) {
	if !b.table.Resolve(key, msg) {
		log.Printf("no pending %s entry for response", key)
	}
}

func (b *Bridge) resolveByRequestID(msg protocol.Message) {
	if msg.RequestID == "" {
		log.Printf("drop inbound: type=%s has no request id", msg.Type)
		return
	}
	if b.table.Resolve(msg.RequestID, msg) {
		return
	}

	// Nothing pending under that id. Either the entry already settled
	// (timeout, popup closed, duplicate response) or the id was never ours.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if settled, err := b.journal.WasSettled(ctx, msg.RequestID); err == nil && settled {
		log.Printf("ignore late response: request_id=%s", msg.RequestID)
	} else {
		log.Printf("ignore unmatched response: request_id=%s", msg.RequestID)
	}
}
