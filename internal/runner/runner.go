// Package runner executes collections: depth-first over the item tree,
// resolving templates against a shared mutable execution context, invoking
// pre-request and test scripts, dispatching the HTTP transport, and
// aggregating results. One run is strictly sequential; concurrency exists
// only across runs.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"collection-runner/internal/collection"
	"collection-runner/internal/logger"
	"collection-runner/internal/models"
	"collection-runner/internal/script"
	"collection-runner/internal/store"
	"collection-runner/internal/template"
)

var (
	// ErrNotExecutable reports a single-execute call against a folder item.
	ErrNotExecutable = errors.New("only request items can be executed")
	// ErrRunFinished reports a cancel call against a run that already ended.
	ErrRunFinished = errors.New("run already finished")
)

// Options tunes one run.
type Options struct {
	// Delay pauses between consecutive requests. Ordering-preserving, never
	// concurrent.
	Delay time.Duration
}

// Service owns run orchestration and the registry of in-flight runs.
type Service struct {
	collections  *collection.Service
	environments store.EnvironmentStore
	runs         store.RunStore
	transport    Transport
	scripts      script.Host
	log          logger.Logger
	maxDelay     time.Duration

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	mu        sync.Mutex
	run       *models.Run
	cancelled atomic.Bool
}

func NewService(collections *collection.Service, environments store.EnvironmentStore, runs store.RunStore, transport Transport, scripts script.Host, log logger.Logger, maxDelay time.Duration) *Service {
	return &Service{
		collections:  collections,
		environments: environments,
		runs:         runs,
		transport:    transport,
		scripts:      scripts,
		log:          log,
		maxDelay:     maxDelay,
		active:       make(map[string]*activeRun),
	}
}

// StartRun snapshots the collection and environment, registers the run, and
// executes it on its own goroutine. The returned Run is in pending state;
// callers poll GetRun for progress.
func (s *Service) StartRun(ctx context.Context, collectionID, environmentID string, opts Options) (*models.Run, error) {
	col, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	// The run operates against a point-in-time copy: concurrent edits to the
	// live collection must not leak into an in-progress run.
	col, err = deepCopy(col)
	if err != nil {
		return nil, err
	}

	var env *models.Environment
	if environmentID != "" {
		env, err = s.environments.Get(ctx, environmentID)
		if err != nil {
			return nil, err
		}
	}

	if s.maxDelay > 0 && opts.Delay > s.maxDelay {
		opts.Delay = s.maxDelay
	}

	run := &models.Run{
		ID:            uuid.NewString(),
		CollectionID:  collectionID,
		EnvironmentID: environmentID,
		Status:        models.RunStatusPending,
		StartedAt:     time.Now().UTC(),
		Results:       []models.ExecutionResult{},
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	handle := &activeRun{run: run}
	s.mu.Lock()
	s.active[run.ID] = handle
	s.mu.Unlock()

	snapshot := *run
	go s.execute(handle, col, env, opts)
	return &snapshot, nil
}

// GetRun returns the live state for in-flight runs, the stored record
// otherwise.
func (s *Service) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	s.mu.Lock()
	handle, ok := s.active[runID]
	s.mu.Unlock()
	if ok {
		handle.mu.Lock()
		defer handle.mu.Unlock()
		return deepCopy(handle.run)
	}
	return s.runs.Get(ctx, runID)
}

// CancelRun flips the cooperative cancellation flag. The request currently in
// flight finishes and keeps its result; nothing after it starts.
func (s *Service) CancelRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	handle, ok := s.active[runID]
	s.mu.Unlock()
	if ok {
		handle.cancelled.Store(true)
		return nil
	}
	// Finished runs cannot be cancelled; surface not-found for unknown ids.
	if _, err := s.runs.Get(ctx, runID); err != nil {
		return err
	}
	return ErrRunFinished
}

// ListRuns pages through a collection's run history.
func (s *Service) ListRuns(ctx context.Context, collectionID string, page store.Page) ([]models.Run, error) {
	return s.runs.ListByCollection(ctx, collectionID, page)
}

// ExecuteSingle resolves and dispatches one request item outside of a run,
// using the same resolve → pre-script → dispatch → test pipeline. Used by the
// single-request execution endpoint.
func (s *Service) ExecuteSingle(ctx context.Context, collectionID, itemID, environmentID string) (*models.ExecutionResult, error) {
	col, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	var env *models.Environment
	if environmentID != "" {
		env, err = s.environments.Get(ctx, environmentID)
		if err != nil {
			return nil, err
		}
	}

	var target *models.Item
	for i := range col.Items {
		if col.Items[i].ID == itemID {
			target = &col.Items[i]
			break
		}
	}
	if target == nil {
		return nil, store.ErrNotFound
	}
	if target.Type != models.ItemTypeRequest {
		return nil, ErrNotExecutable
	}

	handle := &activeRun{run: &models.Run{Results: []models.ExecutionResult{}}}
	state := &runState{
		service: s,
		handle:  handle,
		vars:    buildExecutionContext(col, env),
	}
	node := models.ItemTreeNode{
		ID:               target.ID,
		Name:             target.Name,
		ItemType:         target.Type,
		PreRequestScript: target.PreRequestScript,
		TestScript:       target.TestScript,
		Request:          target.Request,
	}
	state.executeRequest(ctx, &node)

	result := handle.run.Results[len(handle.run.Results)-1]
	return &result, nil
}

// execute drives one run to completion. It never returns an error: every
// failure mode ends up in the run record.
func (s *Service) execute(handle *activeRun, col *models.Collection, env *models.Environment, opts Options) {
	ctx := context.Background()
	runID := handle.run.ID

	state := &runState{
		service: s,
		handle:  handle,
		opts:    opts,
		vars:    buildExecutionContext(col, env),
	}

	handle.mu.Lock()
	handle.run.Status = models.RunStatusRunning
	started, _ := deepCopy(handle.run)
	handle.mu.Unlock()
	if started != nil {
		if err := s.runs.Update(ctx, started); err != nil {
			s.log.Warn("failed to persist run start", logger.String("run_id", runID), logger.Error(err))
		}
	}

	state.walk(ctx, collection.BuildTree(col.Items))

	handle.mu.Lock()
	run := handle.run
	run.FinishedAt = time.Now().UTC()
	switch {
	case handle.cancelled.Load():
		run.Status = models.RunStatusCancelled
	case run.Counters.Failed > 0:
		run.Status = models.RunStatusFailed
	default:
		run.Status = models.RunStatusCompleted
	}
	status := run.Status
	counters := run.Counters
	final, copyErr := deepCopy(run)
	handle.mu.Unlock()

	if copyErr != nil {
		s.log.Error("failed to snapshot run result", logger.String("run_id", runID), logger.Error(copyErr))
	} else if err := s.runs.Update(ctx, final); err != nil {
		s.log.Error("failed to persist run result", logger.String("run_id", runID), logger.Error(err))
	}

	s.mu.Lock()
	delete(s.active, runID)
	s.mu.Unlock()

	s.log.Info("run finished",
		logger.String("run_id", runID),
		logger.String("status", status),
		logger.Int("total", counters.Total),
		logger.Int("failed", counters.Failed))
}

// runState threads the shared execution context and cancellation flag through
// the traversal. Variable deltas from earlier items are visible to later
// ones, never the other way around.
type runState struct {
	service *Service
	handle  *activeRun
	opts    Options
	vars    map[string]string
}

func (st *runState) cancelled() bool {
	return st.handle.cancelled.Load()
}

// walk visits siblings in ordinal order, depth-first. Folder script slots
// contribute variable deltas to the shared context; request items execute.
func (st *runState) walk(ctx context.Context, nodes []models.ItemTreeNode) {
	for i := range nodes {
		node := &nodes[i]
		if node.ItemType == models.ItemTypeFolder {
			if !st.cancelled() && node.PreRequestScript != "" {
				st.mergeVariables(st.service.scripts.Run(ctx, node.PreRequestScript, script.Context{Variables: st.vars}))
			}
			st.walk(ctx, node.Children)
			if !st.cancelled() && node.TestScript != "" {
				st.mergeVariables(st.service.scripts.Run(ctx, node.TestScript, script.Context{Variables: st.vars}))
			}
			continue
		}

		if st.cancelled() {
			st.record(models.ExecutionResult{
				ItemID: node.ID,
				Name:   node.Name,
				Status: models.ResultStatusSkipped,
			})
			continue
		}

		st.executeRequest(ctx, node)

		if st.opts.Delay > 0 && !st.cancelled() {
			time.Sleep(st.opts.Delay)
		}
	}
}

// executeRequest runs the per-request pipeline: resolve, pre-request script,
// dispatch, test script, record.
func (st *runState) executeRequest(ctx context.Context, node *models.ItemTreeNode) {
	result := models.ExecutionResult{
		ItemID: node.ID,
		Name:   node.Name,
	}

	if node.Request == nil {
		result.Status = models.ResultStatusFailed
		result.Error = "request item has no request spec"
		st.record(result)
		return
	}

	// Resolution happens before the pre-request script runs: deltas the
	// script produces are visible to later items, not to this request's own
	// already-resolved fields.
	resolved := template.ResolveRequest(node.Request, st.vars)
	result.Request = resolved

	if node.PreRequestScript != "" {
		sr := st.service.scripts.Run(ctx, node.PreRequestScript, script.Context{
			Request:   &resolved,
			Variables: st.vars,
		})
		result.Assertions = append(result.Assertions, sr.Assertions...)
		st.mergeVariables(sr)
	}

	start := time.Now()
	response, err := st.service.transport.Send(ctx, &resolved)
	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Status = models.ResultStatusFailed
		result.Error = err.Error()
		st.record(result)
		return
	}
	result.Response = response

	if node.TestScript != "" {
		sr := st.service.scripts.Run(ctx, node.TestScript, script.Context{
			Request:   &resolved,
			Response:  response,
			Variables: st.vars,
		})
		result.Assertions = append(result.Assertions, sr.Assertions...)
		st.mergeVariables(sr)
	}

	result.Status = models.ResultStatusCompleted
	for _, a := range result.Assertions {
		if !a.Passed {
			result.Status = models.ResultStatusFailed
			break
		}
	}
	st.record(result)
}

func (st *runState) mergeVariables(sr script.Result) {
	for k, v := range sr.Variables {
		st.vars[k] = v
	}
}

func (st *runState) record(result models.ExecutionResult) {
	st.handle.mu.Lock()
	defer st.handle.mu.Unlock()
	run := st.handle.run
	run.Results = append(run.Results, result)
	run.Counters.Total++
	switch result.Status {
	case models.ResultStatusCompleted:
		run.Counters.Passed++
	case models.ResultStatusFailed:
		run.Counters.Failed++
	case models.ResultStatusSkipped:
		run.Counters.Skipped++
	}
}

// buildExecutionContext merges, in increasing precedence, environment
// variables and collection variables. Script deltas land on top as the run
// progresses.
func buildExecutionContext(col *models.Collection, env *models.Environment) map[string]string {
	vars := make(map[string]string)
	if env != nil {
		for k, v := range env.VariableMap() {
			vars[k] = v
		}
	}
	for k, v := range col.Variables {
		vars[k] = v
	}
	return vars
}

func deepCopy[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.New("failed to copy run state")
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, errors.New("failed to copy run state")
	}
	return out, nil
}
