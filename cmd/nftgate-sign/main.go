// Command nftgate-sign proves wallet ownership to an nftgate server from a
// terminal by answering a challenge with a local private key.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nftgate/internal/client"
	"nftgate/internal/config"
	"nftgate/internal/infrastructure"
)

func main() {
	os.Exit(run())
}

func run() int {
	server := flag.String("server", "http://localhost:8080", "licensing server base URL")
	keyFile := flag.String("key-file", "", "file holding a hex private key (defaults to NFTGATE_PRIVATE_KEY)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall handshake timeout")
	flag.Parse()

	logger, err := infrastructure.NewLogger(config.LoggingConfig{Level: "info", Output: "stdout"})
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		return 1
	}

	hexKey := os.Getenv("NFTGATE_PRIVATE_KEY")
	if *keyFile != "" {
		raw, err := os.ReadFile(*keyFile)
		if err != nil {
			logger.Error("Failed to read key file", slog.String("path", *keyFile), slog.String("error", err.Error()))
			return 1
		}
		hexKey = string(raw)
	}
	if hexKey == "" {
		logger.Error("No private key given, set NFTGATE_PRIVATE_KEY or -key-file")
		return 2
	}

	signer, err := client.SignerFromHex(hexKey)
	if err != nil {
		logger.Error("Failed to load private key", slog.String("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	valid, err := client.New(*server, client.WithLogger(logger)).Authenticate(ctx, signer)
	if err != nil {
		logger.Error("License handshake failed", slog.String("error", err.Error()))
		return 1
	}

	fmt.Printf("%s licensed=%t\n", signer.Address(), valid)
	if !valid {
		return 3
	}
	return 0
}
