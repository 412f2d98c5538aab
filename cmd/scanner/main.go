// Command scanner is the operator console. It reads decoded coupon payloads
// from stdin, one per line (keyboard-wedge scanners type them followed by
// Enter), redeems them against the API and prints a colored status line per
// scan.
//
// Usage:
//
//	SCANNER_API_URL=http://localhost:8080/api/v1 SCANNER_USER_ID=store-42 scanner [-customer "Jane Doe"]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-deals-backend/internal/config"
	"github.com/tbourn/go-deals-backend/internal/observability"
	"github.com/tbourn/go-deals-backend/internal/scanner"
	"github.com/tbourn/go-deals-backend/internal/sysutil"
)

func main() {
	_ = godotenv.Load()

	customer := flag.String("customer", "", "customer name recorded with every redemption")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	lg := sysutil.SetupLogger(os.Stderr, sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  true,
		Service: "scanner",
		Version: sysutil.Version(""),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = lg.WithContext(ctx)

	if err := run(ctx, cfg, *customer); err != nil {
		lg.Error().Err(err).Msg("scanner exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, customer string) error {
	otelCfg := cfg.OTEL
	otelCfg.ServiceName = otelCfg.ServiceName + "-scanner"
	shutdown, err := observability.SetupOTel(ctx, otelCfg, sysutil.Version(""))
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	sc := cfg.Scanner
	color := sysutil.ColorEnabled(os.Getenv)
	loop := scanner.NewLoop(
		scanner.NewReaderSource(os.Stdin),
		scanner.TextDecoder{},
		scanner.NewHTTPRedeemer(sc.APIURL, sc.UserID),
		os.Stdout,
		scanner.Config{
			Interval:     sc.PollInterval,
			Debounce:     sc.Debounce,
			HistorySize:  sc.HistorySize,
			CustomerName: customer,
			NoColor:      !color,
		},
	)

	zerolog.Ctx(ctx).Info().Str("api", sc.APIURL).Str("operator", sc.UserID).Msg("ready to scan")
	if err := loop.Run(ctx); err != nil {
		return err
	}

	if h := loop.History(); len(h) > 0 {
		fmt.Fprintf(os.Stdout, "\n%d scans this session:\n", len(h))
		fmt.Fprint(os.Stdout, scanner.RenderHistory(h, color))
	}
	return nil
}
