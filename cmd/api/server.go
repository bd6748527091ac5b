package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/market"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "user_id"
	ctxKeyRole   ctxKey = "role"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
}

type registryService interface {
	CreateSingle(ctx context.Context, params claim.CreateSingleParams) (claim.Event, error)
	CreatePool(ctx context.Context, params claim.CreatePoolParams) (claim.Event, error)
	Disable(ctx context.Context, params claim.DisableParams) error
	ListActive(kind claim.Kind) ([]int64, error)
}

type entitlementService interface {
	Set(ctx context.Context, params claim.SetParams) error
	BatchSet(ctx context.Context, params claim.BatchSetParams) error
	Get(ctx context.Context, kind claim.Kind, eventID int64, claimant string) (uint64, error)
}

type claimService interface {
	Claim(ctx context.Context, params claim.ClaimParams) (claim.ClaimResult, error)
}

type inventoryService interface {
	Balance(ctx context.Context, holder string, itemID int64) (uint64, error)
	Deposit(ctx context.Context, holder string, itemID int64, amount uint64) error
}

type marketService interface {
	Place(ctx context.Context, params market.PlaceParams) (market.Order, error)
	Fill(ctx context.Context, params market.FillParams) (market.Order, error)
	Cancel(ctx context.Context, orderID, sellerID string) (market.Order, error)
}

type orderBook interface {
	ListOpen(ctx context.Context, limit int) ([]market.Order, error)
	Sales(ctx context.Context, itemID int64) (uint64, error)
}

type ledgerService interface {
	Balance(ctx context.Context, account string) (uint64, error)
	Add(ctx context.Context, account string, amount uint64) error
}

type pauseControl interface {
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
}

// Server wires the HTTP surface over the domain services.
type Server struct {
	authService    authService
	registry       registryService
	entitlements   entitlementService
	claims         claimService
	inventoryStore inventoryService
	orders         marketService
	orderBook      orderBook
	ledgerBook     ledgerService
	pause          pauseControl
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/events/", s.requireAuth(s.handleEvents))
	mux.HandleFunc("/api/inventory/", s.requireAuth(s.handleInventory))
	mux.HandleFunc("/api/orders", s.requireAuth(s.handleOrders))
	mux.HandleFunc("/api/orders/", s.requireAuth(s.handleOrderDetail))
	mux.HandleFunc("/api/ledger/", s.requireAuth(s.handleLedger))
	mux.HandleFunc("/api/admin/pause", s.requireAuth(s.handlePause))
	return mux
}

// requireAuth resolves the bearer token into the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, role, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) || errors.Is(err, auth.ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"role":         user.Role,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user": map[string]any{
			"id":   result.User.ID,
			"role": result.User.Role,
		},
	})
}

// handleEvents dispatches everything under /api/events/{kind}[/...]:
//
//	GET  /api/events/{kind}                      list active ids
//	POST /api/events/{kind}                      create event
//	POST /api/events/{kind}/{id}/disable         disable event
//	POST /api/events/{kind}/{id}/entitlements    set one entitlement
//	POST /api/events/{kind}/{id}/entitlements/batch
//	GET  /api/events/{kind}/{id}/entitlements/{claimant}
//	POST /api/events/{kind}/{id}/claims          execute a claim
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/events/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "missing event kind")
		return
	}

	kind := claim.Kind(parts[0])
	if kind != claim.KindSingle && kind != claim.KindPool {
		writeError(w, http.StatusBadRequest, "unknown event kind")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.listEvents(w, kind)
		case http.MethodPost:
			s.createEvent(w, r, kind)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	eventID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	switch {
	case len(parts) == 3 && parts[2] == "disable" && r.Method == http.MethodPost:
		s.disableEvent(w, r, kind, eventID)
	case len(parts) == 3 && parts[2] == "claims" && r.Method == http.MethodPost:
		s.executeClaim(w, r, kind, eventID)
	case len(parts) == 3 && parts[2] == "entitlements" && r.Method == http.MethodPost:
		s.setEntitlement(w, r, kind, eventID)
	case len(parts) == 4 && parts[2] == "entitlements" && parts[3] == "batch" && r.Method == http.MethodPost:
		s.batchSetEntitlements(w, r, kind, eventID)
	case len(parts) == 4 && parts[2] == "entitlements" && r.Method == http.MethodGet:
		s.getEntitlement(w, r, kind, eventID, parts[3])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) listEvents(w http.ResponseWriter, kind claim.Kind) {
	ids, err := s.registry.ListActive(kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "active": ids})
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request, kind claim.Kind) {
	var body struct {
		Custodian string  `json:"custodian"`
		ItemID    int64   `json:"item_id"`
		ItemIDs   []int64 `json:"item_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	actor, _ := r.Context().Value(ctxKeyUserID).(string)
	var ev claim.Event
	var err error
	if kind == claim.KindSingle {
		ev, err = s.registry.CreateSingle(r.Context(), claim.CreateSingleParams{
			ActorID:   actor,
			Custodian: body.Custodian,
			ItemID:    body.ItemID,
		})
	} else {
		ev, err = s.registry.CreatePool(r.Context(), claim.CreatePoolParams{
			ActorID:   actor,
			Custodian: body.Custodian,
			ItemIDs:   body.ItemIDs,
		})
	}
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventResponseFrom(ev))
}

func (s *Server) disableEvent(w http.ResponseWriter, r *http.Request, kind claim.Kind, eventID int64) {
	actor, _ := r.Context().Value(ctxKeyUserID).(string)
	err := s.registry.Disable(r.Context(), claim.DisableParams{
		ActorID: actor,
		Kind:    kind,
		EventID: eventID,
	})
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "event_id": eventID, "active": false})
}

func (s *Server) setEntitlement(w http.ResponseWriter, r *http.Request, kind claim.Kind, eventID int64) {
	var body struct {
		Claimant string `json:"claimant"`
		Amount   uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	actor, _ := r.Context().Value(ctxKeyUserID).(string)
	err := s.entitlements.Set(r.Context(), claim.SetParams{
		ActorID:  actor,
		Kind:     kind,
		EventID:  eventID,
		Claimant: body.Claimant,
		Amount:   body.Amount,
	})
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claimant": body.Claimant, "remaining": body.Amount})
}

func (s *Server) batchSetEntitlements(w http.ResponseWriter, r *http.Request, kind claim.Kind, eventID int64) {
	var body struct {
		Claimants []string `json:"claimants"`
		Amounts   []uint64 `json:"amounts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	actor, _ := r.Context().Value(ctxKeyUserID).(string)
	err := s.entitlements.BatchSet(r.Context(), claim.BatchSetParams{
		ActorID:   actor,
		Kind:      kind,
		EventID:   eventID,
		Claimants: body.Claimants,
		Amounts:   body.Amounts,
	})
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"granted": len(body.Claimants)})
}

func (s *Server) getEntitlement(w http.ResponseWriter, r *http.Request, kind claim.Kind, eventID int64, claimant string) {
	remaining, err := s.entitlements.Get(r.Context(), kind, eventID, claimant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "entitlement lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claimant": claimant, "remaining": remaining})
}

func (s *Server) executeClaim(w http.ResponseWriter, r *http.Request, kind claim.Kind, eventID int64) {
	claimant, _ := r.Context().Value(ctxKeyUserID).(string)
	result, err := s.claims.Claim(r.Context(), claim.ClaimParams{
		Kind:     kind,
		EventID:  eventID,
		Claimant: claimant,
	})
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":  result.EventID,
		"kind":      result.Kind,
		"item_ids":  result.ItemIDs,
		"amounts":   result.Amounts,
		"total":     result.Total,
		"remaining": result.Remaining,
	})
}

// handleInventory serves GET /api/inventory/{holder}/{item} and
// POST /api/inventory/deposit (manager only).
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/inventory/"), "/")

	if rest == "deposit" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !isManager(r) {
			writeError(w, http.StatusForbidden, "manager role required")
			return
		}
		var body struct {
			Holder string `json:"holder"`
			ItemID int64  `json:"item_id"`
			Amount uint64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if err := s.inventoryStore.Deposit(r.Context(), body.Holder, body.ItemID, body.Amount); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"holder": body.Holder, "item_id": body.ItemID})
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "expected /api/inventory/{holder}/{item}")
		return
	}
	itemID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	qty, err := s.inventoryStore.Balance(r.Context(), parts[0], itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "balance lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holder": parts[0], "item_id": itemID, "quantity": qty})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		orders, err := s.orderBook.ListOpen(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "order listing failed")
			return
		}
		items := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			items = append(items, orderResponseFrom(o))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	case http.MethodPost:
		seller, _ := r.Context().Value(ctxKeyUserID).(string)
		var body struct {
			ItemID    int64  `json:"item_id"`
			Quantity  uint64 `json:"quantity"`
			UnitPrice uint64 `json:"unit_price"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		order, err := s.orders.Place(r.Context(), market.PlaceParams{
			SellerID:  seller,
			ItemID:    body.ItemID,
			Quantity:  body.Quantity,
			UnitPrice: body.UnitPrice,
		})
		if err != nil {
			writeMarketError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, orderResponseFrom(order))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/orders/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "expected POST /api/orders/{id}/fill or /cancel")
		return
	}

	actor, _ := r.Context().Value(ctxKeyUserID).(string)
	var order market.Order
	var err error
	switch parts[1] {
	case "fill":
		order, err = s.orders.Fill(r.Context(), market.FillParams{OrderID: parts[0], BuyerID: actor})
	case "cancel":
		order, err = s.orders.Cancel(r.Context(), parts[0], actor)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponseFrom(order))
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/ledger/"), "/")

	if rest == "add" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !isManager(r) {
			writeError(w, http.StatusForbidden, "manager role required")
			return
		}
		var body struct {
			Account string `json:"account"`
			Amount  uint64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if err := s.ledgerBook.Add(r.Context(), body.Account, body.Amount); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"account": body.Account})
		return
	}

	if r.Method != http.MethodGet || rest == "" {
		writeError(w, http.StatusBadRequest, "expected /api/ledger/{account}")
		return
	}
	amount, err := s.ledgerBook.Balance(r.Context(), rest)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "balance lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": rest, "amount": amount})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if !isManager(r) {
		writeError(w, http.StatusForbidden, "manager role required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		paused, err := s.pause.Paused(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "pause lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"paused": paused})
	case http.MethodPost:
		var body struct {
			Paused bool `json:"paused"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if err := s.pause.SetPaused(r.Context(), body.Paused); err != nil {
			writeError(w, http.StatusInternalServerError, "pause update failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"paused": body.Paused})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func isManager(r *http.Request) bool {
	role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
	return role == auth.RoleManager
}

type eventResponse struct {
	Kind      string  `json:"kind"`
	ID        int64   `json:"id"`
	Active    bool    `json:"active"`
	Custodian string  `json:"custodian"`
	ItemIDs   []int64 `json:"item_ids"`
	CreatedAt string  `json:"created_at"`
}

func eventResponseFrom(ev claim.Event) eventResponse {
	return eventResponse{
		Kind:      string(ev.Kind),
		ID:        ev.ID,
		Active:    ev.Active,
		Custodian: ev.Custodian,
		ItemIDs:   ev.ItemIDs,
		CreatedAt: ev.CreatedAt.Format(time.RFC3339),
	}
}

type orderResponse struct {
	ID        string `json:"id"`
	SellerID  string `json:"seller_id"`
	ItemID    int64  `json:"item_id"`
	Quantity  uint64 `json:"quantity"`
	UnitPrice uint64 `json:"unit_price"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func orderResponseFrom(o market.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		SellerID:  o.SellerID,
		ItemID:    o.ItemID,
		Quantity:  o.Quantity,
		UnitPrice: o.UnitPrice,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
}

func writeClaimError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, claim.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, claim.ErrPaused):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, claim.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, claim.ErrEventInactive),
		errors.Is(err, claim.ErrNothingToClaim),
		errors.Is(err, claim.ErrInventoryEmpty),
		errors.Is(err, claim.ErrEmptyItemSet),
		errors.Is(err, claim.ErrZeroAmount),
		errors.Is(err, claim.ErrLengthMismatch),
		errors.Is(err, claim.ErrEmptyBatch):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrOrderClosed), errors.Is(err, market.ErrOwnOrder):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
