package manager

import (
	"context"
	"net/http"
	"strings"

	"pokerarena/holdem"
	"pokerarena/internal/apikey"
)

// AgentHandler is the authenticated surface for remote agents. Identity
// comes from the bearer API key: the caller never supplies an agentId, and
// table views are always masked to the key's agent.
type AgentHandler struct {
	mgr  *Manager
	keys apikey.Service
}

type registerRequest struct {
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress"`
}

type registerResponse struct {
	AgentID       string `json:"agentId"`
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress,omitempty"`
	APIKey        string `json:"apiKey"`
	KeyID         string `json:"keyId"`
}

type agentSitRequest struct {
	SeatNumber  *int  `json:"seatNumber"`
	BuyInAmount int64 `json:"buyInAmount"`
}

type agentActionRequest struct {
	Action string `json:"action"`
	Amount int64  `json:"amount"`
}

type agentRebuyRequest struct {
	Amount int64 `json:"amount"`
}

func NewAgentHandler(mgr *Manager, keys apikey.Service) *AgentHandler {
	return &AgentHandler{mgr: mgr, keys: keys}
}

func (h *AgentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/agent/register", h.handleRegister)
	mux.HandleFunc("/agent/me", h.handleMe)
	mux.HandleFunc("/agent/tables", h.handleListTables)
	mux.HandleFunc("/agent/tables/", h.handleTable)
}

// handleRegister mints a fresh agent identity and its API key. The raw key
// appears in this response and nowhere else afterwards.
func (h *AgentHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name")
		return
	}

	ident := apikey.Identity{
		AgentID:       newAgentID(),
		Name:          name,
		WalletAddress: strings.TrimSpace(req.WalletAddress),
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	info, rawKey, err := h.keys.IssueKey(ctx, ident, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue api key failed")
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{
		AgentID:       ident.AgentID,
		Name:          ident.Name,
		WalletAddress: ident.WalletAddress,
		APIKey:        rawKey,
		KeyID:         info.ID,
	})
}

func (h *AgentHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ident, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (h *AgentHandler) handleListTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := h.requireIdentity(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": h.mgr.ListTables(),
	})
}

func (h *AgentHandler) handleTable(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/agent/tables/")
	path = strings.TrimSpace(path)
	if path == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	parts := strings.Split(path, "/")
	tableID := strings.TrimSpace(parts[0])
	if tableID == "" {
		writeError(w, http.StatusBadRequest, "missing table id")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		view, err := h.mgr.GetTable(tableID, ident.AgentID)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch parts[1] {
	case "sit":
		h.handleSit(w, r, tableID, ident)
	case "leave":
		h.handleLeave(w, r, tableID, ident)
	case "action":
		h.handleAction(w, r, tableID, ident)
	case "rebuy":
		h.handleRebuy(w, r, tableID, ident)
	case "stand":
		h.handleFlip(w, r, tableID, ident, true)
	case "resume":
		h.handleFlip(w, r, tableID, ident, false)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *AgentHandler) handleSit(w http.ResponseWriter, r *http.Request, tableID string, ident *apikey.Identity) {
	var req agentSitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	seatNo := holdem.NoSeat
	if req.SeatNumber != nil {
		seatNo = *req.SeatNumber
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	seated, err := h.mgr.SitAgent(ctx, tableID, SitRequest{
		SeatNumber:    seatNo,
		BuyIn:         req.BuyInAmount,
		AgentID:       ident.AgentID,
		AgentName:     ident.Name,
		WalletAddress: ident.WalletAddress,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seated)
}

func (h *AgentHandler) handleLeave(w http.ResponseWriter, r *http.Request, tableID string, ident *apikey.Identity) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := h.mgr.LeaveAgent(ctx, tableID, ident.AgentID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AgentHandler) handleAction(w http.ResponseWriter, r *http.Request, tableID string, ident *apikey.Identity) {
	var req agentActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "missing action")
		return
	}
	if err := h.mgr.SubmitAction(tableID, ident.AgentID, req.Action, req.Amount); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeViewFor(w, tableID, ident.AgentID)
}

func (h *AgentHandler) handleRebuy(w http.ResponseWriter, r *http.Request, tableID string, ident *apikey.Identity) {
	var req agentRebuyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.mgr.RebuyAgent(tableID, ident.AgentID, req.Amount); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeViewFor(w, tableID, ident.AgentID)
}

func (h *AgentHandler) handleFlip(w http.ResponseWriter, r *http.Request, tableID string, ident *apikey.Identity, out bool) {
	var err error
	if out {
		err = h.mgr.StandAgent(tableID, ident.AgentID)
	} else {
		err = h.mgr.ResumeAgent(tableID, ident.AgentID)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeViewFor(w, tableID, ident.AgentID)
}

func (h *AgentHandler) writeViewFor(w http.ResponseWriter, tableID, agentID string) {
	view, err := h.mgr.GetTable(tableID, agentID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AgentHandler) requireIdentity(w http.ResponseWriter, r *http.Request) (*apikey.Identity, bool) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing api key")
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ident, err := h.keys.VerifyKey(ctx, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return nil, false
	}
	return ident, true
}
