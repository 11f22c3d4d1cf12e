package protocol

import (
	"encoding/json"
	"time"
)

var outboundTypes = map[Type]struct{}{
	TypeConnectRequest:         {},
	TypeDisconnectRequest:      {},
	TypeSignTransactionRequest: {},
	TypeSignAuthEntryRequest:   {},
	TypeSubmitTransactionReq:   {},
	TypeWalletUIError:          {},
}

var inboundTypes = map[Type]struct{}{
	TypeConnectResponse:         {},
	TypeDisconnectResponse:      {},
	TypeSignTransactionResponse: {},
	TypeSignAuthEntryResponse:   {},
	TypeSubmitTransactionResp:   {},
	TypeWalletStatusUpdate:      {},
}

// IsOutbound reports whether m is a valid game->wallet message.
func IsOutbound(m Message) bool {
	_, ok := outboundTypes[m.Type]
	return ok
}

// IsInbound reports whether m is a valid wallet->game message.
func IsInbound(m Message) bool {
	_, ok := inboundTypes[m.Type]
	return ok
}

// DecodeInbound parses raw transport bytes into a wallet->game message.
// Malformed payloads and foreign shapes report ok=false, never an error;
// the message channel is shared with unrelated senders and their traffic
// is simply not ours.
func DecodeInbound(data []byte) (Message, bool) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, false
	}
	if !IsInbound(m) {
		return Message{}, false
	}
	return m, true
}

// newMessage stamps the envelope fields every outbound message carries.
func newMessage(t Type, origin string) Message {
	return Message{
		Type:      t,
		Origin:    origin,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewConnectRequest builds a CONNECT_REQUEST announcing the app to the wallet.
func NewConnectRequest(origin, appName, appIcon string) Message {
	m := newMessage(TypeConnectRequest, origin)
	m.AppName = appName
	m.AppIcon = appIcon
	return m
}

// NewDisconnectRequest builds a DISCONNECT_REQUEST.
func NewDisconnectRequest(origin string) Message {
	return newMessage(TypeDisconnectRequest, origin)
}

// NewSignTransactionRequest builds a SIGN_TRANSACTION_REQUEST. When submit is
// true the wallet submits the signed transaction itself and reports the hash.
func NewSignTransactionRequest(origin, requestID, txXDR, description string, submit bool) Message {
	m := newMessage(TypeSignTransactionRequest, origin)
	m.RequestID = requestID
	m.TransactionXDR = txXDR
	m.Description = description
	m.Submit = submit
	return m
}

// NewSignAuthEntryRequest builds a SIGN_AUTH_ENTRY_REQUEST.
func NewSignAuthEntryRequest(origin, requestID, authEntryXDR, description string) Message {
	m := newMessage(TypeSignAuthEntryRequest, origin)
	m.RequestID = requestID
	m.AuthEntryXDR = authEntryXDR
	m.Description = description
	return m
}

// NewSubmitTransactionRequest builds a SUBMIT_TRANSACTION_REQUEST.
func NewSubmitTransactionRequest(origin, requestID, txXDR string) Message {
	m := newMessage(TypeSubmitTransactionReq, origin)
	m.RequestID = requestID
	m.TransactionXDR = txXDR
	return m
}

// NewWalletUIError builds a WALLET_UI_ERROR notifying the wallet of a
// game-side UI failure.
func NewWalletUIError(origin, errMsg string) Message {
	m := newMessage(TypeWalletUIError, origin)
	m.Error = errMsg
	return m
}
