package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/market"
)

type stubRegistry struct {
	event      claim.Event
	createErr  error
	disableErr error
	activeIDs  []int64
	listErr    error
}

func (s *stubRegistry) CreateSingle(_ context.Context, _ claim.CreateSingleParams) (claim.Event, error) {
	return s.event, s.createErr
}

func (s *stubRegistry) CreatePool(_ context.Context, _ claim.CreatePoolParams) (claim.Event, error) {
	return s.event, s.createErr
}

func (s *stubRegistry) Disable(_ context.Context, _ claim.DisableParams) error {
	return s.disableErr
}

func (s *stubRegistry) ListActive(_ claim.Kind) ([]int64, error) {
	return s.activeIDs, s.listErr
}

type stubEntitlements struct {
	setErr    error
	batchErr  error
	remaining uint64
	getErr    error
}

func (s *stubEntitlements) Set(_ context.Context, _ claim.SetParams) error {
	return s.setErr
}

func (s *stubEntitlements) BatchSet(_ context.Context, _ claim.BatchSetParams) error {
	return s.batchErr
}

func (s *stubEntitlements) Get(_ context.Context, _ claim.Kind, _ int64, _ string) (uint64, error) {
	return s.remaining, s.getErr
}

type stubClaims struct {
	result   claim.ClaimResult
	err      error
	gotParam claim.ClaimParams
}

func (s *stubClaims) Claim(_ context.Context, params claim.ClaimParams) (claim.ClaimResult, error) {
	s.gotParam = params
	return s.result, s.err
}

type stubInventory struct {
	quantity   uint64
	balanceErr error
	depositErr error
}

func (s *stubInventory) Balance(_ context.Context, _ string, _ int64) (uint64, error) {
	return s.quantity, s.balanceErr
}

func (s *stubInventory) Deposit(_ context.Context, _ string, _ int64, _ uint64) error {
	return s.depositErr
}

type stubMarket struct {
	order market.Order
	err   error
}

func (s *stubMarket) Place(_ context.Context, _ market.PlaceParams) (market.Order, error) {
	return s.order, s.err
}

func (s *stubMarket) Fill(_ context.Context, _ market.FillParams) (market.Order, error) {
	return s.order, s.err
}

func (s *stubMarket) Cancel(_ context.Context, _, _ string) (market.Order, error) {
	return s.order, s.err
}

func withUser(req *http.Request, userID string, role auth.Role) *http.Request {
	ctx := context.WithValue(req.Context(), ctxKeyUserID, userID)
	ctx = context.WithValue(ctx, ctxKeyRole, role)
	return req.WithContext(ctx)
}

func TestHandleEvents_Create(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	server := &Server{
		registry: &stubRegistry{
			event: claim.Event{
				ID:        1,
				Kind:      claim.KindPool,
				Active:    true,
				Custodian: "vault-1",
				ItemIDs:   []int64{101, 102},
				CreatedAt: now,
			},
		},
	}

	body := strings.NewReader(`{"custodian":"vault-1","item_ids":[101,102]}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/events/pool", body), "manager-1", auth.RoleManager)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp eventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 1 || resp.Kind != "pool" || !resp.Active {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.CreatedAt != now.Format(time.RFC3339) {
		t.Fatalf("expected createdAt %s, got %s", now.Format(time.RFC3339), resp.CreatedAt)
	}
}

func TestHandleEvents_CreateUnauthorized(t *testing.T) {
	server := &Server{
		registry: &stubRegistry{createErr: claim.ErrUnauthorized},
	}

	body := strings.NewReader(`{"custodian":"vault-1","item_id":7}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/events/single", body), "claimant-1", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleEvents_UnknownKind(t *testing.T) {
	server := &Server{registry: &stubRegistry{}}

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/events/raffle", nil), "u", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleEvents_List(t *testing.T) {
	server := &Server{
		registry: &stubRegistry{activeIDs: []int64{3, 1, 2}},
	}

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/events/single", nil), "u", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Kind   string  `json:"kind"`
		Active []int64 `json:"active"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Kind != "single" || len(payload.Active) != 3 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleEvents_DisableNotFound(t *testing.T) {
	server := &Server{
		registry: &stubRegistry{disableErr: claim.ErrEventNotFound},
	}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/events/pool/9/disable", nil), "manager-1", auth.RoleManager)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleEvents_Claim(t *testing.T) {
	claims := &stubClaims{
		result: claim.ClaimResult{
			Kind:      claim.KindPool,
			EventID:   2,
			Claimant:  "claimant-1",
			ItemIDs:   []int64{101, 102},
			Amounts:   []uint64{3, 4},
			Total:     7,
			Remaining: 93,
		},
	}
	server := &Server{claims: claims}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/events/pool/2/claims", nil), "claimant-1", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if claims.gotParam.Claimant != "claimant-1" || claims.gotParam.EventID != 2 {
		t.Fatalf("claim params not taken from context: %+v", claims.gotParam)
	}

	var payload struct {
		Total     uint64 `json:"total"`
		Remaining uint64 `json:"remaining"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 7 || payload.Remaining != 93 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleEvents_ClaimPaused(t *testing.T) {
	server := &Server{claims: &stubClaims{err: claim.ErrPaused}}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/events/pool/2/claims", nil), "claimant-1", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleEvents_ClaimNothingLeft(t *testing.T) {
	server := &Server{claims: &stubClaims{err: claim.ErrNothingToClaim}}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/events/single/1/claims", nil), "claimant-1", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleEvents_SetEntitlementZero(t *testing.T) {
	server := &Server{entitlements: &stubEntitlements{setErr: claim.ErrZeroAmount}}

	body := strings.NewReader(`{"claimant":"c","amount":0}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/events/pool/1/entitlements", body), "manager-1", auth.RoleManager)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleEvents_GetEntitlement(t *testing.T) {
	server := &Server{entitlements: &stubEntitlements{remaining: 42}}

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/events/pool/1/entitlements/claimant-1", nil), "u", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Claimant  string `json:"claimant"`
		Remaining uint64 `json:"remaining"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Claimant != "claimant-1" || payload.Remaining != 42 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleInventory_DepositRequiresManager(t *testing.T) {
	server := &Server{inventoryStore: &stubInventory{}}

	body := strings.NewReader(`{"holder":"vault-1","item_id":7,"amount":10}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/inventory/deposit", body), "claimant-1", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleInventory(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleInventory_Balance(t *testing.T) {
	server := &Server{inventoryStore: &stubInventory{quantity: 12}}

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/inventory/vault-1/7", nil), "u", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleInventory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Holder   string `json:"holder"`
		Quantity uint64 `json:"quantity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Holder != "vault-1" || payload.Quantity != 12 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleOrderDetail_FillClosed(t *testing.T) {
	server := &Server{orders: &stubMarket{err: market.ErrOrderClosed}}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/orders/o1/fill", nil), "buyer-1", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handleOrderDetail(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandlePause_RequiresManager(t *testing.T) {
	server := &Server{}

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/admin/pause", nil), "claimant-1", auth.RoleClaimant)
	rec := httptest.NewRecorder()

	server.handlePause(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAuth_MissingToken(t *testing.T) {
	server := &Server{}
	handler := server.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/events/pool", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
