package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"quorumgate/internal/config"
	"quorumgate/internal/effect"
	"quorumgate/internal/engine"
	"quorumgate/internal/node"
	"quorumgate/internal/storage"
	"quorumgate/internal/storage/sqlite"
	"quorumgate/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := parseFlags(&cfg, os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("[%s] %v", cfg.NodeID, err)
	}
}

// parseFlags applies command-line flags on top of the environment config.
// Flags given explicitly win over the environment and over the roster file,
// wherever the roster file path came from.
func parseFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("quorumgated", flag.ContinueOnError)
	fs.StringVar(&cfg.NodeID, "node-id", cfg.NodeID, "node identifier used in logs")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "gRPC listen address")
	signersRaw := fs.String("signers", "", "comma-separated genesis signers (overrides QUORUMGATE_SIGNERS and the roster file)")
	required := fs.Int("required", cfg.Required, "confirmations required to execute (overrides the roster file)")
	rosterFile := fs.String("roster", "", "YAML genesis roster file")
	fs.StringVar(&cfg.Policy, "removed-signer-policy", cfg.Policy, "keep or discard a removed signer's confirmations")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "SQLite journal path; empty keeps events in memory")
	fs.Uint64Var(&cfg.TreasuryBalance, "treasury", cfg.TreasuryBalance, "initial treasury balance")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", cfg.OTLPEndpoint, "OTLP/HTTP trace endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["roster"] {
		cfg.RosterFile = *rosterFile
		if err := cfg.Resolve(); err != nil {
			return err
		}
	}
	if set["signers"] {
		signers, err := config.ParseSigners(*signersRaw)
		if err != nil {
			return err
		}
		cfg.SignersRaw = *signersRaw
		cfg.Signers = signers
	}
	if set["required"] {
		cfg.Required = *required
	}
	return nil
}

func openJournal(path string) (storage.Journal, error) {
	if path == "" {
		return storage.NewMemoryJournal(), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}

func run(ctx context.Context, cfg config.Config) error {
	shutdown, err := telemetry.Setup(ctx, "quorumgated", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("[%s] telemetry shutdown: %v", cfg.NodeID, err)
		}
	}()

	journal, err := openJournal(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			log.Printf("[%s] close journal: %v", cfg.NodeID, err)
		}
	}()

	records, err := storage.ReadAll(ctx, journal, 0)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	policy, err := cfg.RemovedSignerPolicy()
	if err != nil {
		return err
	}
	handler := effect.NewMux(effect.NewTreasury(cfg.TreasuryBalance))

	eng, err := engine.Replay(ctx, cfg.Signers, cfg.Required, handler, records,
		engine.WithName(cfg.NodeID),
		engine.WithRemovedSignerPolicy(policy),
		engine.WithJournal(journal),
		engine.WithPublisher(engine.LogPublisher{Name: cfg.NodeID}),
	)
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	log.Printf("[%s] Replayed %d events: %d signers, %d actions, policy=%s",
		cfg.NodeID, len(records), eng.SignerCount(ctx), eng.ActionCount(ctx), policy)

	n := node.NewNode(cfg.NodeID, cfg.ListenAddr, eng, journal)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- n.Start()
	}()

	select {
	case <-ctx.Done():
		n.Stop()
		return <-serveErr
	case err := <-serveErr:
		return err
	}
}
