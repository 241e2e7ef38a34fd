package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/paulinet/qmcgraph/pkg/core/edges"
	"github.com/paulinet/qmcgraph/pkg/core/graph"
	"github.com/paulinet/qmcgraph/pkg/core/types"
)

// maxBodyBytes bounds request bodies; a batch of positions is the largest payload.
const maxBodyBytes = 64 << 20

var errSnapshotsDisabled = errors.New("snapshots are disabled: no snapshot_path configured")

// registerHTTPHandlers sets up the REST API routes.
func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/edges", s.handleEdges)
	mux.HandleFunc("GET /v1/builders", s.handleBuilders)
	mux.HandleFunc("GET /v1/molecule", s.handleMolecule)
	mux.HandleFunc("POST /v1/warmup", s.handleWarmup)
	mux.HandleFunc("GET /v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /v1/snapshot", s.handleSnapshot)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEdges builds every configured edge type for a batch of electron positions.
func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	var req EdgesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	noteBuild(r, req.Shape, "validate")
	pos, err := types.NewPositions(req.Shape, req.Coords)
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}

	noteBuild(r, nil, "build")
	out, nuclei, err := s.buildEdges(pos)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}

	sets := graph.Edges(out)
	if req.Features {
		noteBuild(r, nil, "features")
		sets, err = graph.WithDifferences(sets, nuclei, pos)
		if err != nil {
			s.writeBuildError(w, err)
			return
		}
	}

	noteBuild(r, nil, "encode")
	resp := EdgesResponse{Edges: make(map[string]EdgeSetResponse, len(sets))}
	for t, es := range sets {
		resp.Edges[string(t)] = toEdgeSetResponse(es)
	}
	s.writeHTTPResponse(w, http.StatusOK, resp)
}

// buildEdges runs the factory under the server lock.
func (s *Server) buildEdges(pos types.Positions) (map[edges.Type]types.EdgeSet, types.Positions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.factory.Build(pos)
	return out, s.factory.Molecule().NuclearPositions(), err
}

// handleBuilders lists the builders in canonical edge type order.
func (s *Server) handleBuilders(w http.ResponseWriter, r *http.Request) {
	var infos []BuilderInfo
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factory.Each(func(t edges.Type, b *edges.Builder) {
		o := b.Options()
		prec := string(o.Precision)
		if prec == "" {
			prec = "float64"
		}
		infos = append(infos, BuilderInfo{
			EdgeType:       string(t),
			Cutoff:         o.Cutoff,
			OccupancyLimit: b.OccupancyLimit(),
			MaskSelf:       o.MaskSelf,
			SendMaskVal:    o.SendMaskVal,
			RecMaskVal:     o.RecMaskVal,
			Precision:      prec,
			Stats:          b.Stats(),
		})
	})

	s.writeHTTPResponse(w, http.StatusOK, infos)
}

func (s *Server) handleMolecule(w http.ResponseWriter, r *http.Request) {
	mol := s.factory.Molecule()
	nNuc, nUp, nDown := mol.NParticles()
	info := MoleculeInfo{
		Coords:    mol.Coords(),
		Charges:   mol.Charges(),
		NNuclei:   nNuc,
		NUp:       nUp,
		NDown:     nDown,
		Precision: s.cfg.Precision,
		Defaults:  edges.DefaultEdgeOptions(),
	}
	for _, t := range s.factory.EdgeTypes() {
		info.EdgeTypes = append(info.EdgeTypes, string(t))
	}
	s.writeHTTPResponse(w, http.StatusOK, info)
}

// handleWarmup starts a background warm-up and returns its task id.
func (s *Server) handleWarmup(w http.ResponseWriter, r *http.Request) {
	var req WarmupRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	wc := s.cfg.Warmup
	if req.Steps != 0 {
		wc.Steps = req.Steps
	}
	if req.BatchSize != 0 {
		wc.BatchSize = req.BatchSize
	}
	if req.StepSize != 0 {
		wc.StepSize = req.StepSize
	}
	if req.Seed != 0 {
		wc.Seed = req.Seed
	}
	if wc.Steps < 1 || wc.BatchSize < 1 || !(wc.StepSize > 0) {
		s.writeHTTPError(w, http.StatusBadRequest, "warm-up needs steps >= 1, batch_size >= 1 and step_size > 0")
		return
	}

	task := s.taskManager.NewTask()
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.runWarmupTask(task, wc)
	}()

	s.writeHTTPResponse(w, http.StatusAccepted, TaskCreatedResponse{TaskID: task.ID})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, ok := s.taskManager.GetTask(id)
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, task.View())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Save()
	if errors.Is(err, errSnapshotsDisabled) {
		s.writeHTTPError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("snapshot via HTTP failed", "error", err)
		s.writeHTTPError(w, http.StatusInternalServerError, "snapshot failed: "+err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, SnapshotResponse{Path: s.cfg.SnapshotPath, Limits: snap.Limits})
}

// writeBuildError maps caller mistakes to 400 and everything else to 500.
func (s *Server) writeBuildError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrShape),
		errors.Is(err, edges.ErrShape),
		errors.Is(err, edges.ErrBatchMismatch),
		errors.Is(err, edges.ErrSelfMaskSize),
		errors.Is(err, edges.ErrParticleCount):
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("edge build failed", "error", err)
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- HTTP response helpers ---

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	s.writeHTTPResponse(w, statusCode, map[string]string{"error": message})
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
