package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
	"quorumgate/internal/engine"
	"quorumgate/internal/signer"
)

// Config holds the node configuration.
type Config struct {
	NodeID          string `env:"QUORUMGATE_NODE_ID" envDefault:"gate-1"`
	ListenAddr      string `env:"QUORUMGATE_LISTEN" envDefault:":7400"`
	SignersRaw      string `env:"QUORUMGATE_SIGNERS"`
	Required        int    `env:"QUORUMGATE_REQUIRED" envDefault:"2"`
	RosterFile      string `env:"QUORUMGATE_ROSTER_FILE"`
	Policy          string `env:"QUORUMGATE_REMOVED_SIGNER_POLICY" envDefault:"keep"`
	JournalPath     string `env:"QUORUMGATE_JOURNAL_PATH"` // empty keeps the journal in memory
	TreasuryBalance uint64 `env:"QUORUMGATE_TREASURY_BALANCE" envDefault:"1000000"`
	OTLPEndpoint    string `env:"QUORUMGATE_OTLP_ENDPOINT"` // empty disables trace export

	// Signers is the genesis roster, filled from SignersRaw or RosterFile.
	Signers []signer.ID
}

// Roster is the on-disk genesis roster.
type Roster struct {
	Signers               []string `yaml:"signers"`
	RequiredConfirmations int      `yaml:"required_confirmations"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve fills Signers from SignersRaw and then from RosterFile, which
// wins when both are set.
func (c *Config) Resolve() error {
	signers, err := ParseSigners(c.SignersRaw)
	if err != nil {
		return err
	}
	c.Signers = signers

	if c.RosterFile == "" {
		return nil
	}
	roster, err := LoadRoster(c.RosterFile)
	if err != nil {
		return err
	}
	c.Signers = make([]signer.ID, 0, len(roster.Signers))
	for _, s := range roster.Signers {
		c.Signers = append(c.Signers, signer.ID(strings.TrimSpace(s)))
	}
	if roster.RequiredConfirmations != 0 {
		c.Required = roster.RequiredConfirmations
	}
	return nil
}

// LoadRoster reads a YAML roster file.
func LoadRoster(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read roster file: %w", err)
	}
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Roster{}, fmt.Errorf("parse roster file %s: %w", path, err)
	}
	return r, nil
}

// ParseSigners parses a comma-separated list of signer identities:
// "alice,bob,carol"
func ParseSigners(signersStr string) ([]signer.ID, error) {
	if strings.TrimSpace(signersStr) == "" {
		return []signer.ID{}, nil
	}

	parts := strings.Split(signersStr, ",")
	signers := make([]signer.ID, 0, len(parts))
	for _, part := range parts {
		id := strings.TrimSpace(part)
		if id == "" {
			return nil, fmt.Errorf("invalid signer list %q: empty identity", signersStr)
		}
		if strings.ContainsAny(id, " \t=") {
			return nil, fmt.Errorf("invalid signer identity: %q", id)
		}
		signers = append(signers, signer.ID(id))
	}
	return signers, nil
}

// RemovedSignerPolicy parses the configured policy.
func (c *Config) RemovedSignerPolicy() (engine.RemovedSignerPolicy, error) {
	return engine.ParseRemovedSignerPolicy(c.Policy)
}

// Validate reports the first setting the node cannot start with.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node ID is required")
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.ListenAddr, err)
	}
	if _, err := c.RemovedSignerPolicy(); err != nil {
		return err
	}
	if _, err := signer.NewRoster(c.Signers, c.Required); err != nil {
		return fmt.Errorf("genesis roster: %w", err)
	}
	return nil
}
