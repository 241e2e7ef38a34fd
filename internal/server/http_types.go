package server

import (
	"github.com/paulinet/qmcgraph/pkg/core/edges"
	"github.com/paulinet/qmcgraph/pkg/core/types"
)

// EdgesRequest defines the body of an edge build: electron positions of shape
// [batch..., n_elec, 3] with spin-up electrons first.
type EdgesRequest struct {
	Shape  []int     `json:"shape"`
	Coords []float64 `json:"coords"`
	// Features adds the "diff" and "dist" per-edge fields.
	Features bool `json:"features,omitempty"`
}

// EdgeSetResponse is the JSON form of a types.EdgeSet.
type EdgeSetResponse struct {
	Shape     []int                `json:"shape"`
	Senders   []int32              `json:"senders"`
	Receivers []int32              `json:"receivers"`
	Data      map[string][]float64 `json:"data,omitempty"`
}

// EdgesResponse maps edge type labels to their sets.
type EdgesResponse struct {
	Edges map[string]EdgeSetResponse `json:"edges"`
}

// BuilderInfo describes one edge builder.
type BuilderInfo struct {
	EdgeType       string             `json:"edge_type"`
	Cutoff         float64            `json:"cutoff"`
	OccupancyLimit int                `json:"occupancy_limit"`
	MaskSelf       bool               `json:"mask_self"`
	SendMaskVal    int32              `json:"send_mask_val"`
	RecMaskVal     int32              `json:"rec_mask_val"`
	Precision      string             `json:"precision"`
	Stats          edges.BuilderStats `json:"stats"`
}

// MoleculeInfo describes the molecule the factory serves.
type MoleculeInfo struct {
	Coords    [][3]float64      `json:"coords"`
	Charges   []float64         `json:"charges"`
	NNuclei   int               `json:"n_nuclei"`
	NUp       int               `json:"n_up"`
	NDown     int               `json:"n_down"`
	EdgeTypes []string          `json:"edge_types"`
	Precision string            `json:"precision"`
	Defaults  edges.EdgeOptions `json:"defaults"`
}

// WarmupRequest overrides the configured warm-up parameters; zero fields keep
// the configured value.
type WarmupRequest struct {
	Steps     int     `json:"steps"`
	BatchSize int     `json:"batch_size"`
	StepSize  float64 `json:"step_size"`
	Seed      int64   `json:"seed"`
}

// TaskCreatedResponse is returned when a background task is accepted.
type TaskCreatedResponse struct {
	TaskID string `json:"task_id"`
}

// SnapshotResponse reports a saved snapshot.
type SnapshotResponse struct {
	Path   string         `json:"path"`
	Limits map[string]int `json:"limits"`
}

func toEdgeSetResponse(es types.EdgeSet) EdgeSetResponse {
	return EdgeSetResponse{
		Shape:     es.Shape,
		Senders:   es.Senders,
		Receivers: es.Receivers,
		Data:      es.Data,
	}
}
