package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"proplend/core"
	"proplend/core/events"
	"proplend/core/types"
	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/observability/audit"
	"proplend/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var (
	admin    = crypto.ModuleAddress("ledgerd/admin")
	operator = crypto.ModuleAddress("ledgerd/operator")
	alice    = crypto.ModuleAddress("ledgerd/alice")
	bob      = crypto.ModuleAddress("ledgerd/bob")
)

type harness struct {
	ledger *core.Ledger
	server *Server
	hub    *Hub
	audit  *audit.Store
	http   *httptest.Server
	now    time.Time
}

type harnessOption func(*Config)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	hub := NewHub(nil)
	store, err := audit.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ledger, err := core.NewLedger(storage.NewMemDB(), core.DefaultParams(),
		core.WithEmitter(events.Fanout{hub, store}),
		core.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	ran, err := EnsureBootstrapped(context.Background(), ledger, admin, BootstrapAddresses{
		Operators: []string{operator.String()},
	})
	require.NoError(t, err)
	require.True(t, ran)

	idem, err := NewIdempotencyStore(":memory:", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idem.Close() })

	cfg := Config{
		Ledger:      ledger,
		Auth:        NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "ledgerd-test"}, nil),
		Idempotency: idem,
		Hub:         hub,
		Audit:       store,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	for _, addr := range []crypto.Address{alice, bob} {
		require.NoError(t, ledger.Issue(context.Background(), admin, addr, nativecommon.Units(1_000_000)))
	}
	return &harness{ledger: ledger, server: srv, hub: hub, audit: store, http: ts, now: now}
}

func (h *harness) token(t *testing.T, who crypto.Address) string {
	t.Helper()
	token, err := IssueToken([]byte(testSecret), who, "ledgerd-test", "", time.Now(), time.Hour)
	require.NoError(t, err)
	return token
}

type response struct {
	status int
	header http.Header
	body   map[string]interface{}
}

func (h *harness) do(t *testing.T, method, path string, who *crypto.Address, body interface{}, headers ...string) response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.http.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+h.token(t, *who))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := response{status: resp.StatusCode, header: resp.Header, body: map[string]interface{}{}}
	_ = json.NewDecoder(resp.Body).Decode(&out.body)
	return out
}

func errorCode(r response) string {
	detail, _ := r.body["error"].(map[string]interface{})
	code, _ := detail["code"].(string)
	return code
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/v1/pool/deposit", nil, map[string]interface{}{"amount": "100", "senior": true})
	require.Equal(t, http.StatusUnauthorized, resp.status)
	require.Equal(t, "unauthenticated", errorCode(resp))

	forged, err := IssueToken([]byte("another-secret-value"), alice, "ledgerd-test", "", time.Now(), time.Hour)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/v1/pool/deposit", strings.NewReader(`{"amount":"100","senior":true}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	require.Equal(t, http.StatusUnauthorized, raw.StatusCode)
}

func TestDepositAndPoolSummary(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, map[string]interface{}{"amount": "8000", "senior": true})
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "8000", resp.body["balance"])
	require.NotEmpty(t, resp.header.Get(headerRequestID))

	resp = h.do(t, http.MethodPost, "/v1/pool/deposit", &bob, map[string]interface{}{"amount": "2000.5", "senior": false})
	require.Equal(t, http.StatusOK, resp.status)

	resp = h.do(t, http.MethodGet, "/v1/pool", nil, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "8000", resp.body["seniorTvl"])
	require.Equal(t, "2000.5", resp.body["juniorTvl"])
	require.Equal(t, "10000.5", resp.body["availableLiquidity"])

	resp = h.do(t, http.MethodGet, "/v1/tokens/senior/balances/"+alice.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "8000", resp.body["balance"])

	resp = h.do(t, http.MethodGet, "/v1/tokens/junior", nil, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "jYIELD", resp.body["symbol"])
	require.Equal(t, "Junior", resp.body["trancheType"])
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, map[string]interface{}{"amount": "80000", "senior": true}).status)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/pool/deposit", &bob, map[string]interface{}{"amount": "20000", "senior": false}).status)

	resp := h.do(t, http.MethodPost, "/v1/loans", &operator, map[string]interface{}{
		"borrower":      bob.String(),
		"principal":     "60000",
		"propertyLabel": "title-42",
		"propertyValue": "100000",
		"termMonths":    12,
	})
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	require.Equal(t, float64(60), resp.body["ltvPercent"])
	require.Equal(t, float64(2200), resp.body["interestRateBps"])
	require.Equal(t, "13200", resp.body["interestDue"])
	id := uint64(resp.body["id"].(float64))

	resp = h.do(t, http.MethodPost, fmt.Sprintf("/v1/loans/%d/repay", id), &alice, nil)
	require.Equal(t, http.StatusForbidden, resp.status)

	resp = h.do(t, http.MethodPost, fmt.Sprintf("/v1/loans/%d/repay", id), &bob, nil)
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	require.Equal(t, "73200", resp.body["total"])
	require.Equal(t, true, resp.body["distributed"])

	resp = h.do(t, http.MethodGet, fmt.Sprintf("/v1/loans/%d", id), nil, nil)
	require.Equal(t, "repaid", resp.body["status"])

	resp = h.do(t, http.MethodGet, "/v1/distribution/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.status)
	stats := resp.body["stats"].(map[string]interface{})
	require.Equal(t, float64(1), stats["distributions"])
	require.Equal(t, admin.String(), resp.body["treasury"])

	resp = h.do(t, http.MethodPost, fmt.Sprintf("/v1/loans/%d/liquidate", id), &operator, nil)
	require.Equal(t, http.StatusConflict, resp.status)
	require.Equal(t, "loan_not_active", errorCode(resp))
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, map[string]interface{}{"amount": "100000", "senior": true}).status)

	cases := []struct {
		name   string
		method string
		path   string
		who    *crypto.Address
		body   interface{}
		status int
		code   string
	}{
		{"below minimum", http.MethodPost, "/v1/pool/deposit", &bob, map[string]interface{}{"amount": "99.999999", "senior": true}, http.StatusBadRequest, "below_minimum_deposit"},
		{"bad amount", http.MethodPost, "/v1/pool/deposit", &bob, map[string]interface{}{"amount": "1.0000001", "senior": true}, http.StatusBadRequest, "invalid_amount"},
		{"unknown field", http.MethodPost, "/v1/pool/deposit", &bob, map[string]interface{}{"amount": "100", "tranche": "senior"}, http.StatusBadRequest, "invalid_request"},
		{"not operator", http.MethodPost, "/v1/loans", &bob, map[string]interface{}{"principal": "1000", "propertyLabel": "x", "propertyValue": "10000", "termMonths": 6}, http.StatusForbidden, "unauthorized"},
		{"ltv too high", http.MethodPost, "/v1/loans", &operator, map[string]interface{}{"borrower": bob.String(), "principal": "66000", "propertyLabel": "x", "propertyValue": "100000", "termMonths": 6}, http.StatusUnprocessableEntity, "exceeds_max_ltv"},
		{"bad term", http.MethodPost, "/v1/loans", &operator, map[string]interface{}{"borrower": bob.String(), "principal": "1000", "propertyLabel": "x", "propertyValue": "100000", "termMonths": 13}, http.StatusBadRequest, "invalid_term"},
		{"missing property", http.MethodPost, "/v1/loans", &operator, map[string]interface{}{"principal": "1000", "propertyValue": "100000", "termMonths": 6}, http.StatusBadRequest, "invalid_request"},
		{"unknown loan", http.MethodGet, "/v1/loans/77", nil, nil, http.StatusNotFound, "not_found"},
		{"bad id", http.MethodGet, "/v1/loans/abc", nil, nil, http.StatusBadRequest, "invalid_request"},
		{"bad tranche", http.MethodGet, "/v1/tokens/mezzanine", nil, nil, http.StatusBadRequest, "invalid_request"},
		{"withdraw too much", http.MethodPost, "/v1/pool/withdraw", &bob, map[string]interface{}{"amount": "5", "senior": true}, http.StatusUnprocessableEntity, "insufficient_balance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.do(t, tc.method, tc.path, tc.who, tc.body)
			require.Equal(t, tc.status, resp.status, resp.body)
			require.Equal(t, tc.code, errorCode(resp))
		})
	}
}

func TestMarketOverHTTP(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, map[string]interface{}{"amount": "10000", "senior": true}).status)

	resp := h.do(t, http.MethodPost, "/v1/market/orders", &alice, map[string]interface{}{"tranche": "senior", "side": "sell", "amount": "100", "price": "1.01"})
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	id := uint64(resp.body["id"].(float64))

	resp = h.do(t, http.MethodPost, fmt.Sprintf("/v1/market/orders/%d/fill", id), &alice, map[string]interface{}{"amount": "10"})
	require.Equal(t, http.StatusForbidden, resp.status)

	resp = h.do(t, http.MethodPost, fmt.Sprintf("/v1/market/orders/%d/fill", id), &bob, map[string]interface{}{"amount": "40"})
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	require.Equal(t, "40.4", resp.body["cost"])
	require.Equal(t, "0.1212", resp.body["fee"])
	require.Equal(t, "60", resp.body["remaining"])

	resp = h.do(t, http.MethodGet, "/v1/market/orders?tranche=senior", nil, nil)
	require.Len(t, resp.body["orders"], 1)

	resp = h.do(t, http.MethodPost, fmt.Sprintf("/v1/market/orders/%d/cancel", id), &alice, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "cancelled", resp.body["status"])

	resp = h.do(t, http.MethodPost, fmt.Sprintf("/v1/market/orders/%d/fill", id), &bob, map[string]interface{}{"amount": "1"})
	require.Equal(t, http.StatusConflict, resp.status)
	require.Equal(t, "inactive_order", errorCode(resp))

	resp = h.do(t, http.MethodGet, "/v1/market/stats", nil, nil)
	require.Equal(t, "40.4", resp.body["totalVolume"])
	require.Equal(t, float64(0), resp.body["activeOrderCount"])

	resp = h.do(t, http.MethodGet, "/v1/market/users/"+alice.String()+"/orders", nil, nil)
	require.Len(t, resp.body["orders"], 1)

	resp = h.do(t, http.MethodGet, "/v1/tokens/senior/balances/"+bob.String(), nil, nil)
	require.Equal(t, "40", resp.body["balance"])
}

func TestShareTransfersOverHTTP(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, map[string]interface{}{"amount": "500", "senior": false}).status)

	resp := h.do(t, http.MethodPost, "/v1/tokens/junior/approve", &alice, map[string]interface{}{"spender": bob.String(), "amount": "200"})
	require.Equal(t, http.StatusOK, resp.status, resp.body)

	resp = h.do(t, http.MethodPost, "/v1/tokens/junior/transferFrom", &bob, map[string]interface{}{"from": alice.String(), "to": bob.String(), "amount": "150"})
	require.Equal(t, http.StatusOK, resp.status, resp.body)

	resp = h.do(t, http.MethodGet, "/v1/tokens/junior/allowances/"+alice.String()+"/"+bob.String(), nil, nil)
	require.Equal(t, "50", resp.body["allowance"])

	resp = h.do(t, http.MethodPost, "/v1/tokens/junior/transfer", &bob, map[string]interface{}{"to": alice.String(), "amount": "151"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
}

func TestIdempotentReplay(t *testing.T) {
	h := newHarness(t)
	body := map[string]interface{}{"amount": "250", "senior": true}

	first := h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, body, headerIdempotencyKey, "dep-1")
	require.Equal(t, http.StatusOK, first.status)
	second := h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, body, headerIdempotencyKey, "dep-1")
	require.Equal(t, http.StatusOK, second.status)
	require.Equal(t, "true", second.header.Get("Idempotent-Replay"))
	require.Equal(t, first.body, second.body)

	balance, err := h.ledger.UserBalance(alice, true)
	require.NoError(t, err)
	require.Equal(t, 0, balance.Cmp(nativecommon.Units(250)))

	conflict := h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, map[string]interface{}{"amount": "300", "senior": true}, headerIdempotencyKey, "dep-1")
	require.Equal(t, http.StatusConflict, conflict.status)
	require.Equal(t, "idempotency_mismatch", errorCode(conflict))

	other := h.do(t, http.MethodPost, "/v1/pool/deposit", &bob, body, headerIdempotencyKey, "dep-1")
	require.Equal(t, http.StatusOK, other.status)
	require.Empty(t, other.header.Get("Idempotent-Replay"))
}

func TestRateLimiterThrottles(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.RateLimiter = NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 1})
	})
	body := map[string]interface{}{"amount": "100", "senior": true}
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, body).status)
	resp := h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, body)
	require.Equal(t, http.StatusTooManyRequests, resp.status)
	require.Equal(t, "rate_limited", errorCode(resp))
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/pool/deposit", &bob, body).status)
}

func TestEventStream(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/v1/events/ws?types=pool.deposit"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.Eventually(t, func() bool { return h.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/v1/market/orders", &alice, map[string]interface{}{"tranche": "senior", "side": "buy", "amount": "1", "price": "1"}).status)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/pool/deposit", &alice, map[string]interface{}{"amount": "100", "senior": true}).status)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypePoolDeposit, evt.Type)
	require.Equal(t, alice.String(), evt.Attributes["depositor"])
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/v1/admin/issue", &alice, map[string]interface{}{"to": alice.String(), "amount": "5"})
	require.Equal(t, http.StatusForbidden, resp.status)

	resp = h.do(t, http.MethodPost, "/v1/admin/issue", &admin, map[string]interface{}{"to": bob.String(), "amount": "5"})
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	resp = h.do(t, http.MethodGet, "/v1/currency/balances/"+bob.String(), nil, nil)
	require.Equal(t, "1000005", resp.body["balance"])

	resp = h.do(t, http.MethodPost, "/v1/admin/roles/grant", &admin, map[string]interface{}{"scope": nativecommon.ScopeLending, "role": "operator", "address": alice.String()})
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	require.True(t, h.ledger.HasRole(nativecommon.ScopeLending, nativecommon.RoleOperator, alice))

	resp = h.do(t, http.MethodPost, "/v1/admin/roles/revoke", &admin, map[string]interface{}{"scope": nativecommon.ScopeLending, "role": "operator", "address": alice.String()})
	require.Equal(t, http.StatusOK, resp.status)
	require.False(t, h.ledger.HasRole(nativecommon.ScopeLending, nativecommon.RoleOperator, alice))

	resp = h.do(t, http.MethodGet, "/v1/admin/audit?type="+events.TypeRoleGranted, &admin, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.NotEmpty(t, resp.body["records"])

	resp = h.do(t, http.MethodGet, "/v1/admin/audit/verify", &admin, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, true, resp.body["valid"])

	resp = h.do(t, http.MethodGet, "/v1/admin/audit", &bob, nil)
	require.Equal(t, http.StatusForbidden, resp.status)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "ok", resp.body["status"])

	raw, err := http.Get(h.http.URL + "/metrics")
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)
}

func TestEnsureBootstrappedRunsOnce(t *testing.T) {
	h := newHarness(t)
	ran, err := EnsureBootstrapped(context.Background(), h.ledger, admin, BootstrapAddresses{})
	require.NoError(t, err)
	require.False(t, ran)

	fresh, err := core.NewLedger(storage.NewMemDB(), core.DefaultParams())
	require.NoError(t, err)
	_, err = EnsureBootstrapped(context.Background(), fresh, admin, BootstrapAddresses{Treasury: "not-an-address"})
	require.Error(t, err)
}
