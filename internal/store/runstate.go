package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/v0xg/routedoc/internal/model"
)

// Status is the processing state of a capture run.
type Status string

const (
	StatusIdle       Status = ""
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Run state keys
const (
	KeyPendingRoutes      = "pendingRoutes"
	KeyProcessingStatus   = "processingStatus"
	KeyProcessingProgress = "processingProgress"
	KeyProcessingError    = "processingError"
	KeyProcessedRoutes    = "processedRoutes"
	processedPrefix       = "processed_"
)

// ProcessedKey is the key of one route's processed record.
func ProcessedKey(routeID string) string {
	return processedPrefix + routeID
}

// RunStateStore is the typed view of in-flight run state.
type RunStateStore interface {
	// StartRun replaces the pending routes, sets status pending and clears
	// progress, error and the processed list of the previous run.
	StartRun(ctx context.Context, routes []model.Route) error
	PendingRoutes(ctx context.Context) ([]model.Route, error)
	SetStatus(ctx context.Context, status Status, errMsg string) error
	Status(ctx context.Context) (Status, string, error)
	SetProgress(ctx context.Context, percent int) error
	Progress(ctx context.Context) (int, error)
	// SaveProcessed writes processed_<id>, overwriting a previous record for
	// the same route, and lists the id in processedRoutes once.
	SaveProcessed(ctx context.Context, p *model.ProcessedRoute) error
	Processed(ctx context.Context, routeID string) (*model.ProcessedRoute, error)
	// ProcessedRoutes returns the records of the current run in processing order.
	ProcessedRoutes(ctx context.Context) ([]*model.ProcessedRoute, error)
}

// RunState implements RunStateStore over a KV.
type RunState struct {
	kv KV
}

// NewRunState wraps kv.
func NewRunState(kv KV) *RunState {
	return &RunState{kv: kv}
}

var _ RunStateStore = (*RunState)(nil)

func (r *RunState) getJSON(ctx context.Context, key string, v any) error {
	data, err := r.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *RunState) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.kv.Set(ctx, key, data)
}

func (r *RunState) StartRun(ctx context.Context, routes []model.Route) error {
	ids, err := r.processedIDs(ctx)
	if err != nil {
		return err
	}
	keys := []string{KeyProcessingError, KeyProcessingProgress, KeyProcessedRoutes}
	for _, id := range ids {
		keys = append(keys, ProcessedKey(id))
	}
	if err := r.kv.Delete(ctx, keys...); err != nil {
		return err
	}
	if err := r.setJSON(ctx, KeyPendingRoutes, routes); err != nil {
		return err
	}
	return r.kv.Set(ctx, KeyProcessingStatus, []byte(StatusPending))
}

func (r *RunState) PendingRoutes(ctx context.Context) ([]model.Route, error) {
	var routes []model.Route
	if err := r.getJSON(ctx, KeyPendingRoutes, &routes); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []model.Route{}, nil
		}
		return nil, err
	}
	return routes, nil
}

func (r *RunState) SetStatus(ctx context.Context, status Status, errMsg string) error {
	if err := r.kv.Set(ctx, KeyProcessingStatus, []byte(status)); err != nil {
		return err
	}
	if errMsg == "" {
		return r.kv.Delete(ctx, KeyProcessingError)
	}
	return r.kv.Set(ctx, KeyProcessingError, []byte(errMsg))
}

func (r *RunState) Status(ctx context.Context) (Status, string, error) {
	status, err := r.kv.Get(ctx, KeyProcessingStatus)
	if errors.Is(err, ErrNotFound) {
		return StatusIdle, "", nil
	}
	if err != nil {
		return "", "", err
	}
	msg, err := r.kv.Get(ctx, KeyProcessingError)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", "", err
	}
	return Status(status), string(msg), nil
}

func (r *RunState) SetProgress(ctx context.Context, percent int) error {
	return r.kv.Set(ctx, KeyProcessingProgress, []byte(strconv.Itoa(percent)))
}

func (r *RunState) Progress(ctx context.Context) (int, error) {
	data, err := r.kv.Get(ctx, KeyProcessingProgress)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", KeyProcessingProgress, err)
	}
	return n, nil
}

func (r *RunState) processedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.getJSON(ctx, KeyProcessedRoutes, &ids); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return ids, nil
}

func (r *RunState) SaveProcessed(ctx context.Context, p *model.ProcessedRoute) error {
	id := p.Route.ID
	if id == "" {
		id = model.RouteID(p.Route.URL)
	}
	if err := r.setJSON(ctx, ProcessedKey(id), p); err != nil {
		return err
	}
	ids, err := r.processedIDs(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, id) {
		return nil
	}
	return r.setJSON(ctx, KeyProcessedRoutes, append(ids, id))
}

func (r *RunState) Processed(ctx context.Context, routeID string) (*model.ProcessedRoute, error) {
	var p model.ProcessedRoute
	if err := r.getJSON(ctx, ProcessedKey(routeID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RunState) ProcessedRoutes(ctx context.Context) ([]*model.ProcessedRoute, error) {
	ids, err := r.processedIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.ProcessedRoute, 0, len(ids))
	for _, id := range ids {
		p, err := r.Processed(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
