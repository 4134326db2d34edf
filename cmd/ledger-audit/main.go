package main

import (
	"context"
	"fmt"
	"os"

	"go-inventory-cost/internal/lock"
	"go-inventory-cost/internal/repository"
	"go-inventory-cost/internal/service"
	"go-inventory-cost/pkg/config"
	"go-inventory-cost/pkg/database"
	"go-inventory-cost/pkg/logger"
)

// ledger-audit recomputes every lot from its transactions and exits 1 when
// the ledger and the lot projections disagree.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}

	repos := repository.NewSet(db)
	env := &service.Env{DB: db, Locker: lock.NewMemoryLocker(), Clock: service.SystemClock{}, Log: log}
	ledger := service.NewLedgerService(env, repos, service.NewCostResolver())

	found, err := ledger.VerifyAll(context.Background())
	if err != nil {
		log.WithError(err).Fatal("verification failed")
	}
	if len(found) == 0 {
		fmt.Println("ledger balanced")
		return
	}
	for _, d := range found {
		lot := "-"
		if d.LotID != nil {
			lot = d.LotID.String()
		}
		fmt.Printf("item=%s lot=%s stored=%s computed=%s %s\n", d.ItemID, lot, d.Stored, d.Computed, d.Detail)
	}
	os.Exit(1)
}
