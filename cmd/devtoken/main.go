// Command devtoken prints a bearer token for local testing against the API.
//
//	go run ./cmd/devtoken -role staff
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/printhub/printhub-api/internal/config"
	"github.com/printhub/printhub-api/internal/pkg/jwt"
	"github.com/printhub/printhub-api/internal/pkg/logger"
)

func main() {
	role := flag.String("role", jwt.RoleCustomer, "customer, staff or admin")
	user := flag.String("user", "", "user id (random when empty)")
	flag.Parse()

	cfg := config.Load()
	logger.Init(logger.Config{Level: "warn", Environment: "development", Output: os.Stderr})

	userID := uuid.New()
	if *user != "" {
		id, err := uuid.Parse(*user)
		if err != nil {
			log.Fatal().Err(err).Str("user", *user).Msg("Invalid user id")
		}
		userID = id
	}

	svc := jwt.NewService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL)
	token, err := svc.GenerateAccessToken(userID, *role)
	if err != nil {
		log.Fatal().Err(err).Str("role", *role).Msg("Failed to sign token")
	}

	fmt.Fprintf(os.Stderr, "user_id=%s role=%s ttl=%s\n", userID, *role, cfg.JWTAccessTTL)
	fmt.Println(token)
}
