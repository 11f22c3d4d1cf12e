package protocol

// Type discriminates every message exchanged between the game side and the
// wallet popup. The string values are the wire contract and must match the
// wallet page byte-for-byte.
type Type string

// Outbound: game -> wallet.
const (
	TypeConnectRequest         Type = "CONNECT_REQUEST"
	TypeDisconnectRequest      Type = "DISCONNECT_REQUEST"
	TypeSignTransactionRequest Type = "SIGN_TRANSACTION_REQUEST"
	TypeSignAuthEntryRequest   Type = "SIGN_AUTH_ENTRY_REQUEST"
	TypeSubmitTransactionReq   Type = "SUBMIT_TRANSACTION_REQUEST"
	TypeWalletUIError          Type = "WALLET_UI_ERROR"
)

// Inbound: wallet -> game.
const (
	TypeConnectResponse         Type = "CONNECT_RESPONSE"
	TypeDisconnectResponse      Type = "DISCONNECT_RESPONSE"
	TypeSignTransactionResponse Type = "SIGN_TRANSACTION_RESPONSE"
	TypeSignAuthEntryResponse   Type = "SIGN_AUTH_ENTRY_RESPONSE"
	TypeSubmitTransactionResp   Type = "SUBMIT_TRANSACTION_RESPONSE"
	TypeWalletStatusUpdate      Type = "WALLET_STATUS_UPDATE"
)

// Wallet status values carried by WALLET_STATUS_UPDATE.
const (
	StatusReady      = "ready"
	StatusSigning    = "signing"
	StatusSubmitting = "submitting"
	StatusClosed     = "closed"
)

// Message is the envelope for every wire message. Fields beyond type, origin
// and timestamp are populated per discriminator; the json names are the wire
// format shared with the wallet page.
//
// The origin field is informational. Authentication uses the transport-level
// sender origin, never this field.
type Message struct {
	Type      Type   `json:"type"`
	Origin    string `json:"origin"`
	Timestamp int64  `json:"timestamp"`

	RequestID string `json:"requestId,omitempty"`

	// Requests.
	AppName        string `json:"appName,omitempty"`
	AppIcon        string `json:"appIcon,omitempty"`
	TransactionXDR string `json:"transactionXdr,omitempty"`
	AuthEntryXDR   string `json:"authEntryXdr,omitempty"`
	Description    string `json:"description,omitempty"`
	Submit         bool   `json:"submit,omitempty"`

	// Responses.
	Success            bool   `json:"success,omitempty"`
	Address            string `json:"address,omitempty"`
	SignedXDR          string `json:"signedXdr,omitempty"`
	SignedAuthEntryXDR string `json:"signedAuthEntryXdr,omitempty"`
	TxHash             string `json:"txHash,omitempty"`
	Error              string `json:"error,omitempty"`

	// Status updates.
	Status string `json:"status,omitempty"`
}
