// Package client provides a Go client for the qmcgraph HTTP API.
//
// It covers edge construction for batches of electron positions, builder and
// molecule introspection, background warm-ups and snapshots. Errors returned
// by the server are surfaced as *APIError.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulinet/qmcgraph/pkg/core/edges"
)

// APIError represents an error returned by the qmcgraph API (status >= 400).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// EdgeSet is a decoded edge set. Padding slots hold the mask values.
type EdgeSet struct {
	Shape     []int                `json:"shape"`
	Senders   []int32              `json:"senders"`
	Receivers []int32              `json:"receivers"`
	Data      map[string][]float64 `json:"data,omitempty"`
}

type edgesRequest struct {
	Shape    []int     `json:"shape"`
	Coords   []float64 `json:"coords"`
	Features bool      `json:"features,omitempty"`
}

type edgesResponse struct {
	Edges map[string]EdgeSet `json:"edges"`
}

// BuilderInfo describes one edge builder on the server.
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

// MoleculeInfo describes the molecule the server was configured with.
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

// WarmupParams overrides the server's warm-up settings. Zero fields keep the
// configured value.
type WarmupParams struct {
	Steps     int     `json:"steps,omitempty"`
	BatchSize int     `json:"batch_size,omitempty"`
	StepSize  float64 `json:"step_size,omitempty"`
	Seed      int64   `json:"seed,omitempty"`
}

// Snapshot reports a snapshot saved by the server.
type Snapshot struct {
	Path   string         `json:"path"`
	Limits map[string]int `json:"limits"`
}

// Task represents an asynchronous operation on the qmcgraph server.
type Task struct {
	ID              string         `json:"id"`
	Status          string         `json:"status"`
	ProgressMessage string         `json:"progress_message,omitempty"`
	Error           string         `json:"error,omitempty"`
	Limits          map[string]int `json:"limits,omitempty"`

	client *Client // Reference to the client for polling.
}

// Client is the Go client for a qmcgraph server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL, e.g. "http://localhost:9094".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// jsonRequest is a helper method to execute all requests to the API.
// It handles JSON serialization, HTTP calls, and error management.
func (c *Client) jsonRequest(method, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		if json.Unmarshal(respBody, &errResp) == nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp["error"]}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	return respBody, nil
}

func (c *Client) getJSON(method, endpoint string, payload, out any) error {
	respBody, err := c.jsonRequest(method, endpoint, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("invalid JSON response for %s %s: %w", method, endpoint, err)
	}
	return nil
}

// Health returns nil when the server answers /healthz.
func (c *Client) Health() error {
	_, err := c.jsonRequest(http.MethodGet, "/healthz", nil)
	return err
}

// Edges builds every configured edge type for electron positions of shape
// [batch..., n_elec, 3]. With features set, each set also carries the
// "diff" and "dist" fields.
func (c *Client) Edges(shape []int, coords []float64, features bool) (map[string]EdgeSet, error) {
	var resp edgesResponse
	req := edgesRequest{Shape: shape, Coords: coords, Features: features}
	if err := c.getJSON(http.MethodPost, "/v1/edges", req, &resp); err != nil {
		return nil, err
	}
	return resp.Edges, nil
}

// Builders lists the server's builders in canonical edge type order.
func (c *Client) Builders() ([]BuilderInfo, error) {
	var infos []BuilderInfo
	if err := c.getJSON(http.MethodGet, "/v1/builders", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Molecule returns the molecule the server serves.
func (c *Client) Molecule() (*MoleculeInfo, error) {
	var info MoleculeInfo
	if err := c.getJSON(http.MethodGet, "/v1/molecule", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Warmup starts a background warm-up and returns its Task.
func (c *Client) Warmup(params WarmupParams) (*Task, error) {
	var created struct {
		TaskID string `json:"task_id"`
	}
	if err := c.getJSON(http.MethodPost, "/v1/warmup", params, &created); err != nil {
		return nil, err
	}
	return &Task{ID: created.TaskID, Status: "started", client: c}, nil
}

// Snapshot asks the server to persist its occupancy limits.
func (c *Client) Snapshot() (*Snapshot, error) {
	var snap Snapshot
	if err := c.getJSON(http.MethodPost, "/v1/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetTaskStatus retrieves the status of a long-running task.
func (c *Client) GetTaskStatus(taskID string) (*Task, error) {
	var task Task
	if err := c.getJSON(http.MethodGet, "/v1/tasks/"+taskID, nil, &task); err != nil {
		return nil, err
	}
	task.client = c
	return &task, nil
}

// Refresh updates the task's status by querying the server.
func (t *Task) Refresh() error {
	if t.client == nil {
		return fmt.Errorf("client is not associated with the task")
	}
	updatedTask, err := t.client.GetTaskStatus(t.ID)
	if err != nil {
		return err
	}
	t.Status = updatedTask.Status
	t.ProgressMessage = updatedTask.ProgressMessage
	t.Error = updatedTask.Error
	t.Limits = updatedTask.Limits
	return nil
}

// Wait blocks until the task is completed, checking its status at regular intervals.
func (t *Task) Wait(interval, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return fmt.Errorf("timeout exceeded while waiting for task %s", t.ID)
		case <-ticker.C:
			if err := t.Refresh(); err != nil {
				return err
			}
			switch t.Status {
			case "completed":
				return nil
			case "failed":
				return fmt.Errorf("task %s failed with error: %s", t.ID, t.Error)
			case "running", "started":
				// Continue waiting.
			default:
				return fmt.Errorf("unknown task status: %s", t.Status)
			}
		}
	}
}
