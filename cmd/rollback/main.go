// Command rollback is a reference CLI for the client SDK: it sends one
// rollback request to a provider and prints the structured result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathcanary/rollback-go/pkg/rollback"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "provider base URL")
		apiKey   = flag.String("api-key", os.Getenv("PATHCANARY_API_KEY"), "bearer API key (or PATHCANARY_API_KEY)")
		flagKey  = flag.String("flag", "", "feature flag key to roll back")
		enabled  = flag.Bool("enabled", false, "target flag state")
		incident = flag.String("incident", "", "incident identifier")
		message  = flag.String("message", "", "human-readable incident description")
		timeout  = flag.Duration("timeout", 5*time.Second, "per-attempt timeout")
		retries  = flag.Int("retries", 3, "max attempts on transient failures")
		noRetry  = flag.Bool("no-retry", false, "send exactly one attempt")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *flagKey == "" || *incident == "" || *message == "" {
		flag.Usage()
		return fmt.Errorf("-flag, -incident and -message are required")
	}

	logger := zerolog.Nop()
	if *verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	client, err := rollback.New(rollback.Config{
		BaseURL:       *baseURL,
		APIKey:        *apiKey,
		Timeout:       *timeout,
		RetryAttempts: *retries,
		Logger:        &logger,
	})
	if err != nil {
		return err
	}

	req := &rollback.Request{
		FlagKey:         *flagKey,
		Enabled:         *enabled,
		IncidentID:      *incident,
		IncidentMessage: *message,
	}

	ctx := context.Background()

	var resp *rollback.Response
	if *noRetry {
		resp, err = client.Execute(ctx, req)
	} else {
		resp, err = client.ExecuteWithRetry(ctx, req)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !resp.Success {
		return fmt.Errorf("rollback rejected: %s", resp.Error)
	}
	return nil
}
