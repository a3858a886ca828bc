// Command keygen provisions an API key for a salon account and prints it
// once. Only the SHA-256 hash is stored.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"zenbook/internal/apikey"
	"zenbook/internal/config"
	"zenbook/internal/database"
)

func main() {
	_ = godotenv.Load(".env")

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	accountID := flag.String("account", "", "salon account id the key belongs to")
	name := flag.String("name", "default", "label for the key")
	flag.Parse()

	if *accountID == "" {
		logger.Fatal().Msg("-account is required")
	}

	cfg, err := config.Load(os.Getenv("ZENBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		logger.Fatal().Err(err).Msg("generate key error")
	}
	key := "zb_" + hex.EncodeToString(raw)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.CreateAPIKey(ctx, *accountID, apikey.HashKey(key), *name); err != nil {
		logger.Fatal().Err(err).Msg("store key error")
	}

	logger.Info().Str("account", *accountID).Str("name", *name).Msg("API key created")
	fmt.Println(key)
}
