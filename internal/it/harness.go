package it

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"quorumgate/internal/effect"
	"quorumgate/internal/engine"
	"quorumgate/internal/node"
	"quorumgate/internal/signer"
	"quorumgate/internal/storage"
	"quorumgate/internal/storage/sqlite"
)

// Gate runs a node in-process over TCP with a SQLite journal so tests can
// stop and restart it against the same on-disk state.
type Gate struct {
	ID       string
	Signers  []signer.ID
	Required int
	Policy   engine.RemovedSignerPolicy
	Treasury *effect.Treasury

	journalPath string

	mu      sync.Mutex
	node    *node.Node
	journal storage.Journal
	engine  *engine.Engine
	addr    string
	done    chan error
	clients []*node.Client
}

// NewGate creates a gate whose journal lives under dir.
func NewGate(id, dir string, signers []signer.ID, required int) *Gate {
	return &Gate{
		ID:          id,
		Signers:     signers,
		Required:    required,
		Policy:      engine.KeepConfirmations,
		Treasury:    effect.NewTreasury(1000),
		journalPath: filepath.Join(dir, id+".db"),
	}
}

// Start replays the journal and serves on a free loopback port.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	journal, err := sqlite.Open(g.journalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	records, err := storage.ReadAll(ctx, journal, 0)
	if err != nil {
		journal.Close()
		return fmt.Errorf("read journal: %w", err)
	}

	eng, err := engine.Replay(ctx, g.Signers, g.Required, g.Treasury, records,
		engine.WithName(g.ID),
		engine.WithRemovedSignerPolicy(g.Policy),
		engine.WithJournal(journal),
	)
	if err != nil {
		journal.Close()
		return fmt.Errorf("replay: %w", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		journal.Close()
		return fmt.Errorf("failed to listen: %w", err)
	}

	g.journal = journal
	g.engine = eng
	g.addr = lis.Addr().String()
	g.node = node.NewNode(g.ID, g.addr, eng, journal)
	g.done = make(chan error, 1)
	go func(n *node.Node, done chan<- error) {
		done <- n.Serve(lis)
	}(g.node, g.done)

	return g.waitForReady(ctx, 10*time.Second)
}

// waitForReady waits for the node's health service to report SERVING.
func (g *Gate) waitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := node.Dial(g.addr, "")
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.WaitForHealth(ctx); err != nil {
		return fmt.Errorf("gate %s failed to become ready: %w", g.ID, err)
	}
	return nil
}

// Client dials the gate as caller. Clients are closed by Stop.
func (g *Gate) Client(caller signer.ID) (*node.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := node.Dial(g.addr, caller)
	if err != nil {
		return nil, err
	}
	g.clients = append(g.clients, c)
	return c, nil
}

// Engine returns the engine behind the running node.
func (g *Gate) Engine() *engine.Engine {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine
}

// Stop stops the node and closes the journal.
func (g *Gate) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, c := range g.clients {
		c.Close()
	}
	g.clients = nil

	if g.node == nil {
		return nil
	}
	g.node.Stop()
	serveErr := <-g.done
	closeErr := g.journal.Close()
	g.node, g.journal, g.engine = nil, nil, nil
	if serveErr != nil {
		return serveErr
	}
	return closeErr
}

// Restart stops the gate and starts it again from its journal.
func (g *Gate) Restart(ctx context.Context) error {
	if err := g.Stop(); err != nil {
		return fmt.Errorf("stop gate %s: %w", g.ID, err)
	}
	return g.Start(ctx)
}
