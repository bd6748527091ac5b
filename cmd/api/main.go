package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/db"
	"claimflow/gate"
	"claimflow/inventory"
	"claimflow/ledger"
	"claimflow/market"
	"claimflow/outbox"
)

func main() {
	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	capGate := gate.NewGate(pool)
	pauseSwitch := gate.NewPauseSwitch(pool)
	outboxWriter := outbox.NewWriter()

	claimRepo := claim.NewRepository(pool)
	invRepo := inventory.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)

	registry := claim.NewRegistry(pool, claimRepo, capGate, pauseSwitch, outboxWriter)
	if err := registry.Load(ctx); err != nil {
		log.Fatalf("load active events: %v", err)
	}
	entitlements := claim.NewEntitlements(pool, claimRepo, capGate, pauseSwitch, outboxWriter)
	claims := claim.NewService(pool, claimRepo, invRepo, capGate, pauseSwitch, outboxWriter)

	server := &Server{
		authService:    auth.NewService(auth.NewRepository(pool), jwtSecret),
		registry:       registry,
		entitlements:   entitlements,
		claims:         claims,
		inventoryStore: inventory.NewService(pool, invRepo),
		orders:         market.NewService(pool, invRepo, ledgerRepo),
		orderBook:      market.NewRepository(pool),
		ledgerBook:     ledger.NewService(pool, ledgerRepo),
		pause:          pauseSwitch,
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("claimflow api listening on %s", addr)
	if err := http.ListenAndServe(addr, server.routes()); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
