package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paulinet/qmcgraph/pkg/config"
	"github.com/paulinet/qmcgraph/pkg/core/edges"
	"github.com/paulinet/qmcgraph/pkg/persistence"
)

// Server exposes an edge factory over HTTP and owns its persistent state.
type Server struct {
	cfg config.Config

	// mu serializes every use of factory: builders are not safe for
	// concurrent builds and warm-up shares them with requests.
	mu      sync.Mutex
	factory *edges.Factory
	journal *persistence.Journal

	httpServer  *http.Server
	taskManager *TaskManager

	// tasks tracks background warm-ups so Shutdown can wait for them.
	tasks      sync.WaitGroup
	taskCtx    context.Context
	cancelTask context.CancelFunc
}

// NewServer builds the factory described by cfg, restores the occupancy
// limits saved by a previous run and prepares the HTTP routes.
func NewServer(cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		taskManager: NewTaskManager(),
	}
	s.taskCtx, s.cancelTask = context.WithCancel(context.Background())

	if cfg.JournalPath != "" {
		j, err := persistence.OpenJournal(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		s.journal = j
	}

	f, err := cfg.NewFactory(edges.WithGrowthHook(s.recordGrowth))
	if err != nil {
		s.closeJournal()
		return nil, err
	}
	s.factory = f

	if err := s.restore(); err != nil {
		s.closeJournal()
		return nil, err
	}

	mux := http.NewServeMux()
	s.registerHTTPHandlers(mux)

	// Recovery must be outer-most to catch everything.
	var handler http.Handler = mux
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)
	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           rootMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("edge factory ready",
		"molecule", f.Molecule().String(),
		"edge_types", f.EdgeTypes(),
		"precision", cfg.Precision,
	)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run starts the HTTP server and blocks until it is shut down.
func (s *Server) Run() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server, cancels running warm-ups, writes a final
// snapshot and closes the journal.
func (s *Server) Shutdown() {
	slog.Info("starting graceful shutdown of HTTP server")

	timeout := s.cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	s.cancelTask()
	s.tasks.Wait()

	if s.cfg.SnapshotPath != "" {
		if _, err := s.Save(); err != nil {
			slog.Error("final snapshot failed", "error", err)
		}
	}
	s.closeJournal()
}

// Save writes the current occupancy limits to the snapshot file and truncates
// the journal, whose events the snapshot now covers.
func (s *Server) Save() (persistence.Snapshot, error) {
	if s.cfg.SnapshotPath == "" {
		return persistence.Snapshot{}, errSnapshotsDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := persistence.Snapshot{
		Version: persistence.SnapshotVersion,
		SavedAt: time.Now().UTC(),
		Limits:  make(map[string]int),
	}
	for t, l := range s.factory.OccupancyLimits() {
		snap.Limits[string(t)] = l
	}
	if err := persistence.SaveSnapshot(s.cfg.SnapshotPath, snap); err != nil {
		return snap, err
	}
	if s.journal != nil {
		if err := s.journal.Truncate(); err != nil {
			return snap, fmt.Errorf("snapshot saved but journal truncate failed: %w", err)
		}
	}
	slog.Info("snapshot saved", "path", s.cfg.SnapshotPath, "limits", snap.Limits)
	return snap, nil
}

// restore raises the builder limits to those of the last snapshot plus any
// growth journaled after it.
func (s *Server) restore() error {
	var snap persistence.Snapshot
	if s.cfg.SnapshotPath != "" {
		loaded, err := persistence.LoadSnapshot(s.cfg.SnapshotPath)
		switch {
		case err == nil:
			snap = loaded
		case isNotExist(err):
			slog.Info("no snapshot found, starting from configured limits", "path", s.cfg.SnapshotPath)
		default:
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
	}

	journalPath := ""
	if s.journal != nil {
		journalPath = s.journal.Path()
	}
	limits, err := persistence.Limits(snap, journalPath)
	if err != nil {
		return fmt.Errorf("failed to replay journal: %w", err)
	}

	restored := make(map[edges.Type]int, len(limits))
	for name, l := range limits {
		t, err := edges.ParseType(name)
		if err != nil {
			slog.Warn("ignoring saved limit of unknown edge type", "edge_type", name)
			continue
		}
		restored[t] = l
	}
	s.factory.Restore(restored)
	if len(restored) > 0 {
		slog.Info("occupancy limits restored", "limits", s.factory.OccupancyLimits())
	}
	return nil
}

// recordGrowth is the factory growth hook. It runs with s.mu held.
func (s *Server) recordGrowth(t edges.Type, from, to int) {
	if s.journal == nil {
		return
	}
	ev := persistence.GrowthEvent{EdgeType: string(t), From: from, To: to}
	if err := s.journal.Append(ev); err != nil {
		slog.Warn("failed to journal capacity growth", "edge_type", t, "error", err)
	}
}

func (s *Server) closeJournal() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		slog.Error("journal close error", "error", err)
	}
	s.journal = nil
}
