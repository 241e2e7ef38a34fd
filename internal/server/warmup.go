package server

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/paulinet/qmcgraph/pkg/config"
	"github.com/paulinet/qmcgraph/pkg/molecule"
)

// Warmup walks a batch of electron configurations through w.Steps Gaussian
// proposals and builds every edge type at each step, so the builders reach
// the capacities the run needs before serving. progress, if set, is called
// after every step. The factory lock is taken per step, so requests can
// interleave with a running warm-up.
func (s *Server) Warmup(ctx context.Context, w config.WarmupConfig, progress func(step int)) error {
	mol := s.factory.Molecule()
	rng := rand.New(rand.NewSource(w.Seed))
	rs := mol.InitElectrons(rng, w.BatchSize)

	for step := 1; step <= w.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, _, err := s.buildEdges(rs); err != nil {
			return fmt.Errorf("warm-up step %d: %w", step, err)
		}
		if progress != nil {
			progress(step)
		}
		rs = molecule.Propose(rng, rs, w.StepSize)
	}
	return nil
}

// Limits returns the current occupancy limit per edge type.
func (s *Server) Limits() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for t, l := range s.factory.OccupancyLimits() {
		out[string(t)] = l
	}
	return out
}

func (s *Server) runWarmupTask(task *Task, w config.WarmupConfig) {
	task.SetStatus(TaskStatusRunning)
	start := time.Now()

	err := s.Warmup(s.taskCtx, w, func(step int) {
		task.SetProgress(fmt.Sprintf("step %d/%d", step, w.Steps))
	})
	if err != nil {
		slog.Error("warm-up failed", "task_id", task.ID, "error", err)
		task.SetError(err)
		return
	}

	limits := s.Limits()
	task.Complete(limits)
	slog.Info("warm-up completed",
		"task_id", task.ID,
		"steps", w.Steps,
		"batch_size", w.BatchSize,
		"duration", time.Since(start).String(),
		"limits", limits,
	)
}
