package manager

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pokerarena/internal/apikey"
	"pokerarena/internal/codec"
	"pokerarena/internal/escrow"
	"pokerarena/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T, deps Deps) (*http.ServeMux, *Manager, *fakeClock) {
	t.Helper()
	m, clk := newTestManager(t, deps)
	mux := http.NewServeMux()
	NewHTTPHandler(m, nil).RegisterRoutes(mux)
	NewAgentHandler(m, apikey.NewMemoryService()).RegisterRoutes(mux)
	return mux, m, clk
}

// doJSON runs one request through the mux and decodes the response when out
// is non-nil.
func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any, out any, headers map[string]string) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if out != nil {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(out),
			"%s %s: undecodable body %q", method, path, rr.Body.String())
	}
	return rr.Code
}

func TestListTablesAndHealth(t *testing.T) {
	mux, _, _ := newTestMux(t, Deps{})

	var resp struct {
		Items []codec.TableSummary `json:"items"`
	}
	code := doJSON(t, mux, http.MethodGet, "/tables", nil, &resp, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "t-test", resp.Items[0].ID)
	assert.Equal(t, "waiting", resp.Items[0].Status)

	code = doJSON(t, mux, http.MethodPost, "/tables", nil, nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	var health map[string]string
	code = doJSON(t, mux, http.MethodGet, "/healthz", nil, &health, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", health["status"])
}

func TestSitActionLeaveFlow(t *testing.T) {
	mux, m, clk := newTestMux(t, Deps{})

	var alice SeatedAgent
	code := doJSON(t, mux, http.MethodPost, "/tables/t-test/sit", map[string]any{
		"seatNumber": 0, "buyInAmount": 500, "agentName": "Alice",
	}, &alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, alice.AgentID)
	assert.Equal(t, 0, alice.SeatNumber)
	assert.Equal(t, int64(500), alice.Stack)

	// No seat number requested: first empty seat.
	var bob SeatedAgent
	code = doJSON(t, mux, http.MethodPost, "/tables/t-test/sit", map[string]any{
		"buyInAmount": 500, "agentName": "Bob",
	}, &bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, bob.SeatNumber)

	runTicks(m, clk, 1)

	var view codec.TableView
	code = doJSON(t, mux, http.MethodGet, "/tables/t-test?agentId="+alice.AgentID, nil, &view, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, view.YourSeat)
	require.NotNil(t, view.Hand)
	assert.Len(t, view.Seats[0].HoleCards, 2, "caller sees own cards")
	assert.Empty(t, view.Seats[1].HoleCards, "opponent cards stay hidden")
	assert.True(t, view.Seats[1].HasCards)

	// Out of turn first, then the dealer completes the small blind.
	code = doJSON(t, mux, http.MethodPost, "/tables/t-test/action", map[string]any{
		"agentId": bob.AgentID, "action": "raise", "amount": 30,
	}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = doJSON(t, mux, http.MethodPost, "/tables/t-test/action", map[string]any{
		"agentId": alice.AgentID, "action": "call",
	}, &view, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, view.Hand)
	assert.Equal(t, 1, view.Hand.TurnSeat)

	// Leaving mid-hand force-folds; the blind is gone.
	var left LeaveResult
	code = doJSON(t, mux, http.MethodPost, "/tables/t-test/leave", map[string]any{
		"agentId": bob.AgentID,
	}, &left, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(490), left.CashOut)
	assert.Empty(t, left.SettlementError)
}

func TestRouteErrors(t *testing.T) {
	mux, _, _ := newTestMux(t, Deps{})

	assert.Equal(t, http.StatusNotFound,
		doJSON(t, mux, http.MethodGet, "/tables/t-ghost", nil, nil, nil))
	assert.Equal(t, http.StatusNotFound,
		doJSON(t, mux, http.MethodPost, "/tables/t-test/teleport", nil, nil, nil))
	assert.Equal(t, http.StatusMethodNotAllowed,
		doJSON(t, mux, http.MethodGet, "/tables/t-test/sit", nil, nil, nil))
	assert.Equal(t, http.StatusNotFound,
		doJSON(t, mux, http.MethodGet, "/tables/t-test/ws", nil, nil, nil),
		"ws route 404s when no feed is wired")

	// Undecodable and unknown-field bodies are both 400s.
	req := httptest.NewRequest(http.MethodPost, "/tables/t-test/sit", strings.NewReader("{nope"))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, mux, http.MethodPost, "/tables/t-test/sit", map[string]any{
			"agentName": "Eve", "buyInAmount": 500, "mystery": true,
		}, nil, nil))
	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, mux, http.MethodPost, "/tables/t-test/sit", map[string]any{
			"buyInAmount": 500,
		}, nil, nil), "agentName is required")
}

func TestAddBotEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(t, Deps{})

	var seated SeatedAgent
	code := doJSON(t, mux, http.MethodPost, "/tables/t-test/add-bot", map[string]any{
		"strategy": "fish",
	}, &seated, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fish", string(seated.AgentType))
	assert.Equal(t, int64(1000), seated.Stack, "bots buy in for the table max")

	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, mux, http.MethodPost, "/tables/t-test/add-bot", map[string]any{
			"strategy": "shark",
		}, nil, nil))
}

func TestEmergencyRefundEndpoint(t *testing.T) {
	sim := escrow.NewSimulator()
	mux, _, _ := newTestMux(t, Deps{Escrow: sim})

	var seated SeatedAgent
	code := doJSON(t, mux, http.MethodPost, "/tables/t-test/sit", map[string]any{
		"seatNumber": 0, "buyInAmount": 300, "agentName": "Dave", "walletAddress": "w-dave",
	}, &seated, nil)
	require.Equal(t, http.StatusOK, code)

	sim.SettleErr = assert.AnError
	var left LeaveResult
	code = doJSON(t, mux, http.MethodPost, "/tables/t-test/leave", map[string]any{
		"agentId": seated.AgentID,
	}, &left, nil)
	require.Equal(t, http.StatusOK, code, "settlement failure still returns the cash-out")
	assert.NotEmpty(t, left.SettlementError)

	sim.SettleErr = nil
	var refund map[string]any
	code = doJSON(t, mux, http.MethodPost, "/tables/t-test/emergency-refund", map[string]any{
		"walletAddress": "w-dave",
	}, &refund, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(300), refund["refunded"])
}

func TestLeaderboardEndpoint(t *testing.T) {
	svc := store.NewMemoryService()
	mux, m, clk := newTestMux(t, Deps{Store: svc})

	doJSON(t, mux, http.MethodPost, "/tables/t-test/add-bot", map[string]any{"strategy": "fish"}, nil, nil)
	doJSON(t, mux, http.MethodPost, "/tables/t-test/add-bot", map[string]any{"strategy": "tag"}, nil, nil)
	runTicks(m, clk, 4)

	var resp struct {
		Items []store.AgentProfit `json:"items"`
	}
	code := doJSON(t, mux, http.MethodGet, "/leaderboard?limit=5", nil, &resp, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, resp.Items)
	for i := 1; i < len(resp.Items); i++ {
		assert.GreaterOrEqual(t, resp.Items[i-1].Profit, resp.Items[i].Profit, "sorted by profit")
	}
}

func TestAgentSurface(t *testing.T) {
	mux, m, clk := newTestMux(t, Deps{})

	assert.Equal(t, http.StatusUnauthorized,
		doJSON(t, mux, http.MethodGet, "/agent/me", nil, nil, nil))
	assert.Equal(t, http.StatusUnauthorized,
		doJSON(t, mux, http.MethodGet, "/agent/tables", nil, nil,
			map[string]string{"Authorization": "Bearer pa_sk_bogus"}))

	var reg registerResponse
	code := doJSON(t, mux, http.MethodPost, "/agent/register", map[string]any{
		"name": "CrawlerBot", "walletAddress": "w-crawler",
	}, &reg, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(reg.APIKey, "pa_sk_"))
	require.NotEmpty(t, reg.AgentID)
	auth := map[string]string{"Authorization": "Bearer " + reg.APIKey}

	var ident apikey.Identity
	code = doJSON(t, mux, http.MethodGet, "/agent/me", nil, &ident, auth)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, reg.AgentID, ident.AgentID)
	assert.Equal(t, "CrawlerBot", ident.Name)

	// Identity comes from the key: no agentId in the sit body.
	var seated SeatedAgent
	code = doJSON(t, mux, http.MethodPost, "/agent/tables/t-test/sit", map[string]any{
		"seatNumber": 0, "buyInAmount": 400,
	}, &seated, auth)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, reg.AgentID, seated.AgentID)

	doJSON(t, mux, http.MethodPost, "/tables/t-test/sit", map[string]any{
		"seatNumber": 1, "buyInAmount": 400, "agentName": "Rival",
	}, nil, nil)
	runTicks(m, clk, 1)

	var view codec.TableView
	code = doJSON(t, mux, http.MethodGet, "/agent/tables/t-test", nil, &view, auth)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, view.YourSeat)
	assert.Len(t, view.Seats[0].HoleCards, 2)
	assert.Empty(t, view.Seats[1].HoleCards, "agent view masks the rival's cards")

	// The agent's turn can play out over the same surface.
	require.NotNil(t, view.Hand)
	if view.Hand.TurnSeat == 0 {
		code = doJSON(t, mux, http.MethodPost, "/agent/tables/t-test/action", map[string]any{
			"action": "fold",
		}, &view, auth)
		require.Equal(t, http.StatusOK, code)
	}

	var left LeaveResult
	code = doJSON(t, mux, http.MethodPost, "/agent/tables/t-test/leave", nil, &left, auth)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, reg.AgentID, left.AgentID)
}

func TestTurnDeadlineInViews(t *testing.T) {
	mux, m, clk := newTestMux(t, Deps{})

	doJSON(t, mux, http.MethodPost, "/tables/t-test/sit", map[string]any{
		"seatNumber": 0, "buyInAmount": 500, "agentName": "Alice",
	}, nil, nil)
	doJSON(t, mux, http.MethodPost, "/tables/t-test/sit", map[string]any{
		"seatNumber": 1, "buyInAmount": 500, "agentName": "Bob",
	}, nil, nil)
	runTicks(m, clk, 1)

	var view codec.TableView
	code := doJSON(t, mux, http.MethodGet, "/tables/t-test", nil, &view, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, view.Hand)
	require.NotNil(t, view.Hand.TurnDeadline, "human turns carry a deadline")
	assert.Equal(t, clk.Now().Add(humanTurnTimeout).Unix(), view.Hand.TurnDeadline.Unix())
	assert.Equal(t, int64(5), view.Hand.ToCall, "small blind owes the difference")
}
