// Package httpapi exposes the bridge operations to the local game UI over a
// loopback HTTP API. Every failure comes back as a JSON error value, never a
// bare 500 with a stack.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/blendizzard/walletbridge/internal/bridge"
	"github.com/blendizzard/walletbridge/internal/pending"
	"github.com/blendizzard/walletbridge/internal/popup"
)

// Service is the bridge surface the handlers need; *bridge.Bridge satisfies
// it, tests use stubs.
type Service interface {
	Preopen(path string) error
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
	SignTransaction(ctx context.Context, txXDR, description string, submit bool) (bridge.SignResult, error)
	SignAuthEntry(ctx context.Context, authEntryXDR, description string) (string, error)
	SubmitTransaction(ctx context.Context, txXDR string) (string, error)
	NotifyUIError(errMsg string)
	ClosePopup()
	IsPopupOpen() bool
}

type Server struct {
	svc       Service
	authToken string
}

func NewServer(svc Service, authToken string) *Server {
	return &Server{svc: svc, authToken: authToken}
}

// RegisterHandlers mounts the API on mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/popup/preopen", s.guard(http.MethodPost, s.handlePreopen))
	mux.HandleFunc("/api/popup/close", s.guard(http.MethodPost, s.handleClosePopup))
	mux.HandleFunc("/api/popup/status", s.guard(http.MethodGet, s.handlePopupStatus))
	mux.HandleFunc("/api/connect", s.guard(http.MethodPost, s.handleConnect))
	mux.HandleFunc("/api/disconnect", s.guard(http.MethodPost, s.handleDisconnect))
	mux.HandleFunc("/api/sign-transaction", s.guard(http.MethodPost, s.handleSignTransaction))
	mux.HandleFunc("/api/sign-auth-entry", s.guard(http.MethodPost, s.handleSignAuthEntry))
	mux.HandleFunc("/api/submit-transaction", s.guard(http.MethodPost, s.handleSubmitTransaction))
	mux.HandleFunc("/api/ui-error", s.guard(http.MethodPost, s.handleUIError))
}

// guard restricts handlers to loopback callers with the configured bearer
// token and the expected method.
func (s *Server) guard(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !isLoopback(r) {
			writeError(w, http.StatusForbidden, "loopback only")
			return
		}
		if s.authToken != "" && r.Header.Get("Authorization") != "Bearer "+s.authToken {
			log.Printf("api unauthorized: remote=%s path=%s", r.RemoteAddr, r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handlePreopen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	// Body is optional; an empty path means the configured signer path.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.svc.Preopen(req.Path); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleClosePopup(w http.ResponseWriter, _ *http.Request) {
	s.svc.ClosePopup()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePopupStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"open": s.svc.IsPopupOpen()})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	address, err := s.svc.Connect(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Disconnect(r.Context()); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSignTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionXDR string `json:"transactionXdr"`
		Description    string `json:"description"`
		Submit         bool   `json:"submit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionXDR == "" {
		writeError(w, http.StatusBadRequest, "transactionXdr is required")
		return
	}

	res, err := s.svc.SignTransaction(r.Context(), req.TransactionXDR, req.Description, req.Submit)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	out := map[string]string{"signedXdr": res.SignedXDR}
	if res.TxHash != "" {
		out["txHash"] = res.TxHash
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSignAuthEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthEntryXDR string `json:"authEntryXdr"`
		Description  string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AuthEntryXDR == "" {
		writeError(w, http.StatusBadRequest, "authEntryXdr is required")
		return
	}

	signed, err := s.svc.SignAuthEntry(r.Context(), req.AuthEntryXDR, req.Description)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signedAuthEntryXdr": signed})
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionXDR string `json:"transactionXdr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionXDR == "" {
		writeError(w, http.StatusBadRequest, "transactionXdr is required")
		return
	}

	txHash, err := s.svc.SubmitTransaction(r.Context(), req.TransactionXDR)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"txHash": txHash})
}

func (s *Server) handleUIError(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.svc.NotifyUIError(req.Error)
	w.WriteHeader(http.StatusNoContent)
}

// errStatus maps bridge failures onto status codes. The body always carries
// the error string; the code is a hint for the game UI.
func errStatus(err error) int {
	switch {
	case errors.Is(err, popup.ErrPopupBlocked):
		return http.StatusConflict
	case errors.Is(err, pending.ErrAlreadyPending):
		return http.StatusConflict
	case errors.Is(err, pending.ErrRequestTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, popup.ErrPopupClosed):
		return http.StatusBadGateway
	case errors.Is(err, bridge.ErrBridgeClosed):
		return http.StatusGone
	default:
		var werr *bridge.WalletError
		if errors.As(err, &werr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
