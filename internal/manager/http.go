package manager

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pokerarena/holdem"
)

const requestTimeout = 5 * time.Second

// WSHandler upgrades a request into a live table feed. The gateway package
// provides the real one; a nil handler turns the /ws route into a 404.
type WSHandler interface {
	ServeTable(w http.ResponseWriter, r *http.Request, tableID string)
}

// HTTPHandler exposes the public, unauthenticated surface: lobby, table
// views, seat management, actions, leaderboard.
type HTTPHandler struct {
	mgr *Manager
	ws  WSHandler
}

type errorResponse struct {
	Error string `json:"error"`
}

type sitRequest struct {
	SeatNumber    *int   `json:"seatNumber"`
	BuyInAmount   int64  `json:"buyInAmount"`
	AgentID       string `json:"agentId"`
	AgentName     string `json:"agentName"`
	WalletAddress string `json:"walletAddress"`
	DepositTxHash string `json:"depositTxHash"`
}

type leaveRequest struct {
	AgentID string `json:"agentId"`
}

type actionRequest struct {
	AgentID string `json:"agentId"`
	Action  string `json:"action"`
	Amount  int64  `json:"amount"`
}

type rebuyRequest struct {
	AgentID string `json:"agentId"`
	Amount  int64  `json:"amount"`
}

type addBotRequest struct {
	Strategy string `json:"strategy"`
}

type refundRequest struct {
	WalletAddress string `json:"walletAddress"`
}

func NewHTTPHandler(mgr *Manager, ws WSHandler) *HTTPHandler {
	return &HTTPHandler{mgr: mgr, ws: ws}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/tables", h.handleListTables)
	mux.HandleFunc("/tables/", h.handleTable)
	mux.HandleFunc("/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/healthz", h.handleHealthz)
}

func (h *HTTPHandler) handleListTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": h.mgr.ListTables(),
	})
}

func (h *HTTPHandler) handleTable(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tables/")
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
		h.handleGetTable(w, r, tableID)
		return
	}

	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if parts[1] == "ws" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if h.ws == nil {
			writeError(w, http.StatusNotFound, "live feed not enabled")
			return
		}
		h.ws.ServeTable(w, r, tableID)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch parts[1] {
	case "sit":
		h.handleSit(w, r, tableID)
	case "leave":
		h.handleLeave(w, r, tableID)
	case "action":
		h.handleAction(w, r, tableID)
	case "rebuy":
		h.handleRebuy(w, r, tableID)
	case "add-bot":
		h.handleAddBot(w, r, tableID)
	case "stand":
		h.handleStand(w, r, tableID, true)
	case "resume":
		h.handleStand(w, r, tableID, false)
	case "emergency-refund":
		h.handleEmergencyRefund(w, r, tableID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *HTTPHandler) handleGetTable(w http.ResponseWriter, r *http.Request, tableID string) {
	viewer := strings.TrimSpace(r.URL.Query().Get("agentId"))
	view, err := h.mgr.GetTable(tableID, viewer)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleSit(w http.ResponseWriter, r *http.Request, tableID string) {
	var req sitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.AgentName) == "" {
		writeError(w, http.StatusBadRequest, "missing agentName")
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
		AgentID:       strings.TrimSpace(req.AgentID),
		AgentName:     strings.TrimSpace(req.AgentName),
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		DepositTxHash: strings.TrimSpace(req.DepositTxHash),
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seated)
}

func (h *HTTPHandler) handleLeave(w http.ResponseWriter, r *http.Request, tableID string) {
	var req leaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "missing agentId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := h.mgr.LeaveAgent(ctx, tableID, req.AgentID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleAction(w http.ResponseWriter, r *http.Request, tableID string) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "missing agentId or action")
		return
	}
	if err := h.mgr.SubmitAction(tableID, req.AgentID, req.Action, req.Amount); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeViewFor(w, tableID, req.AgentID)
}

func (h *HTTPHandler) handleRebuy(w http.ResponseWriter, r *http.Request, tableID string) {
	var req rebuyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "missing agentId")
		return
	}
	if _, err := h.mgr.RebuyAgent(tableID, req.AgentID, req.Amount); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeViewFor(w, tableID, req.AgentID)
}

func (h *HTTPHandler) handleAddBot(w http.ResponseWriter, r *http.Request, tableID string) {
	var req addBotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	seated, err := h.mgr.AddBot(tableID, strings.TrimSpace(req.Strategy))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seated)
}

func (h *HTTPHandler) handleStand(w http.ResponseWriter, r *http.Request, tableID string, out bool) {
	var req leaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "missing agentId")
		return
	}
	var err error
	if out {
		err = h.mgr.StandAgent(tableID, req.AgentID)
	} else {
		err = h.mgr.ResumeAgent(tableID, req.AgentID)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeViewFor(w, tableID, req.AgentID)
}

func (h *HTTPHandler) handleEmergencyRefund(w http.ResponseWriter, r *http.Request, tableID string) {
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "missing walletAddress")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	refunded, err := h.mgr.EmergencyRefund(ctx, tableID, req.WalletAddress)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"walletAddress": req.WalletAddress,
		"refunded":      refunded,
	})
}

func (h *HTTPHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"))
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	rows, err := h.mgr.Leaderboard(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query leaderboard failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows,
	})
}

func (h *HTTPHandler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

// writeViewFor responds with the table as the acting agent sees it.
func (h *HTTPHandler) writeViewFor(w http.ResponseWriter, tableID, agentID string) {
	view, err := h.mgr.GetTable(tableID, agentID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrTableNotFound), errors.Is(err, ErrAgentNotSeated):
		return http.StatusNotFound
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 20
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

func bearerToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
