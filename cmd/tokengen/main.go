package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/voicelink/internal/config"
	"github.com/dkeye/voicelink/internal/token"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	fs := pflag.NewFlagSet("tokengen", pflag.ExitOnError)
	fs.String("room", "", "room the tokens grant access to")
	fs.Duration("token-ttl", 0, "token validity")
	fs.String("token-api-key", "", "issuer key")
	fs.String("token-api-secret", "", "signing secret")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: tokengen [flags] identity...\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.TokenAPIKey == "" || cfg.TokenAPISecret == "" {
		log.Fatal().Msg("token_api_key and token_api_secret must be set")
	}

	minter := token.NewMinter(cfg.TokenAPIKey, cfg.TokenAPISecret)
	for _, identity := range fs.Args() {
		raw, err := minter.Mint(token.Grant{
			Identity: identity,
			Name:     identity,
			Room:     cfg.Room,
			TTL:      cfg.TokenTTL,
		})
		if err != nil {
			log.Fatal().Err(err).Str("identity", identity).Msg("mint token")
		}
		log.Info().Str("identity", identity).Str("room", cfg.Room).Dur("ttl", cfg.TokenTTL).Msg("token minted")
		fmt.Println(raw)
	}
}
