package node

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"quorumgate/internal/engine"
	"quorumgate/internal/storage"
)

// Node serves one engine over gRPC.
type Node struct {
	nodeID     string
	listenAddr string
	engine     *engine.Engine
	journal    storage.Journal

	mu         sync.Mutex
	grpcServer *grpc.Server
	health     *health.Server
	stopped    bool
}

// NewNode creates a new node instance. journal may be nil, in which case
// ListEvents is unavailable.
func NewNode(nodeID, listenAddr string, eng *engine.Engine, journal storage.Journal) *Node {
	return &Node{
		nodeID:     nodeID,
		listenAddr: listenAddr,
		engine:     eng,
		journal:    journal,
	}
}

func (n *Node) server() *grpc.Server {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.grpcServer != nil || n.stopped {
		return n.grpcServer
	}

	n.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterGateServer(n.grpcServer, NewServer(n.engine, n.journal, n.nodeID))

	n.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(n.grpcServer, n.health)
	n.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	n.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Enable gRPC reflection for grpcurl
	reflection.Register(n.grpcServer)
	return n.grpcServer
}

// Start listens on the configured address and serves until Stop is called.
func (n *Node) Start() error {
	lis, err := net.Listen("tcp", n.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.listenAddr, err)
	}
	return n.Serve(lis)
}

// Serve accepts connections on lis until Stop is called.
func (n *Node) Serve(lis net.Listener) error {
	srv := n.server()
	if srv == nil {
		_ = lis.Close()
		return nil
	}
	log.Printf("[%s] Starting node on %s", n.nodeID, lis.Addr())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the node. In-flight operations finish first.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopped = true
	if n.health != nil {
		n.health.Shutdown()
	}
	if n.grpcServer != nil {
		log.Printf("[%s] Stopping node", n.nodeID)
		n.grpcServer.GracefulStop()
	}
}
