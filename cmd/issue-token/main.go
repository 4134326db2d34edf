package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go-inventory-cost/internal/model"
	"go-inventory-cost/pkg/config"
	"go-inventory-cost/pkg/jwt"
)

// issue-token mints an actor token for an operator or an upstream system.
func main() {
	actor := flag.String("actor", "", "actor recorded on ledger rows (required)")
	name := flag.String("name", "", "display name")
	privs := flag.String("privileges", "", "comma separated privilege codes; empty grants all")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	// 1. Load Env
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, using the development key")
	}

	// 2. Resolve privileges
	granted := model.PrivilegeCodes()
	if *privs != "" {
		known := map[string]bool{}
		for _, code := range granted {
			known[code] = true
		}
		granted = nil
		for _, code := range strings.Split(*privs, ",") {
			code = strings.TrimSpace(code)
			if !known[code] {
				log.Fatalf("❌ Unknown privilege %q", code)
			}
			granted = append(granted, code)
		}
	}

	// 3. Sign
	token, err := jwt.GenerateToken(cfg.JWTSecret, *actor, *name, granted, *ttl)
	if err != nil {
		log.Fatalf("❌ Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
