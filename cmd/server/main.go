package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iotaaxel/limit-order-book/internal/config"
	"github.com/iotaaxel/limit-order-book/internal/engine"
	"github.com/iotaaxel/limit-order-book/internal/net"
)

func main() {
	cfg, err := config.FromFlags()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the matching engine and the TCP server driving it.
	book := engine.NewOrderBook()
	book.SetExpiryPolicy(engine.ExpiryPolicy{
		GTC: cfg.GTCTTL.Std(),
		IOC: cfg.IOCTTL.Std(),
	})
	if cfg.PriceRule == "buy" {
		book.SetPriceRule(engine.PriceRuleBuy)
	}
	srv := net.New(cfg, book)

	// Run blocks until the context is cancelled and the server has drained.
	srv.Run(ctx)
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.PrettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
