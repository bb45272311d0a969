// Package httploop implements the HTTP Loop Scheduler: a polling engine
// that repeatedly calls one HTTP endpoint on an interval until a
// termination predicate or iteration cap fires (spec §4.8). Grounded on
// original_source/src/async_execution/http_loop_scheduler.rs
// (schedule_http_loop validation, execute_loop_iteration_internal's
// per-tick transaction, calculate_next_interval's backoff math,
// wait_for_loop_completion's 100ms/1hr poll).
package httploop

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/collaborators/httpclient"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/script"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

const (
	maxHistoryDefault       = 100
	maxResponseBytesDefault = 1 << 20 // 1 MiB
	awaitPollInterval       = 100 * time.Millisecond
	awaitMaxWait            = time.Hour
)

// Scheduler owns the background tick loop plus a per-loop-id lock set so
// a slow iteration can't overlap the next tick for the same loop (spec
// §4.8 "atomically takes the lock for that loop_id").
type Scheduler struct {
	store            store.HTTPLoopStore
	client           *httpclient.Client
	script           *script.Engine
	log              *zap.Logger
	maxHistory       int
	maxResponseBytes int

	mu      sync.Mutex
	running map[string]bool
}

func New(s store.HTTPLoopStore, client *httpclient.Client, scriptEng *script.Engine, log *zap.Logger) *Scheduler {
	return &Scheduler{
		store:            s,
		client:           client,
		script:           scriptEng,
		log:              log,
		maxHistory:       maxHistoryDefault,
		maxResponseBytes: maxResponseBytesDefault,
		running:          make(map[string]bool),
	}
}

// Start validates node.Config.HTTPRequest.LoopConfig, inserts a running
// HttpLoopState row, and returns its id. Satisfies
// pkg/worker/nodes.LoopScheduler (spec §4.6, §4.8 "Scheduling").
func (s *Scheduler) Start(ctx context.Context, nctx engine.NodeContext, node model.Node, event model.WorkflowEvent) (string, error) {
	cfg := node.Config.HTTPRequest
	if cfg == nil || cfg.LoopConfig == nil {
		return "", fmt.Errorf("httploop: node missing loop config")
	}
	if err := validateLoopConfig(cfg); err != nil {
		return "", err
	}

	initialEvent, err := event.Marshal()
	if err != nil {
		return "", fmt.Errorf("httploop: marshal initial event: %w", err)
	}

	row := &model.HttpLoopState{
		ExecutionStepID: nctx.ExecutionID + "_" + node.ID,
		MaxIterations:   cfg.LoopConfig.MaxIterations,
		NextExecutionAt: time.Now().UnixMicro(),
		LoopStartedAt:   time.Now().UnixMicro(),
		Status:          model.LoopRunning,
		URL:             cfg.URL,
		Method:          cfg.Method,
		TimeoutSeconds:  cfg.TimeoutSeconds,
		Headers:         cfg.Headers,
		LoopConfig:      *cfg.LoopConfig,
		InitialEvent:    initialEvent,
	}
	if err := s.store.CreateLoop(ctx, row); err != nil {
		return "", fmt.Errorf("httploop: create loop: %w", err)
	}
	s.log.Info("http loop scheduled", zap.String("loop_id", row.ID), zap.String("url", cfg.URL))
	return row.ID, nil
}

func validateLoopConfig(cfg *model.HTTPRequestConfig) error {
	trimmed := strings.TrimSpace(cfg.URL)
	if trimmed == "" {
		return fmt.Errorf("httploop: url cannot be empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("httploop: invalid url %q", cfg.URL)
	}
	if cfg.TimeoutSeconds < 1 || cfg.TimeoutSeconds > 3600 {
		return fmt.Errorf("httploop: timeout_seconds %d out of range [1, 3600]", cfg.TimeoutSeconds)
	}
	lc := cfg.LoopConfig
	if lc.MaxIterations != nil && (*lc.MaxIterations < 1 || *lc.MaxIterations > 10000) {
		return fmt.Errorf("httploop: max_iterations %d out of range [1, 10000]", *lc.MaxIterations)
	}
	if lc.IntervalSeconds < 1 || lc.IntervalSeconds > 86400 {
		return fmt.Errorf("httploop: interval_seconds %d out of range [1, 86400]", lc.IntervalSeconds)
	}
	switch lc.Backoff.Kind {
	case model.BackoffFixed:
		if lc.Backoff.FixedSecs < 1 || lc.Backoff.FixedSecs > 86400 {
			return fmt.Errorf("httploop: fixed backoff %d out of range [1, 86400]", lc.Backoff.FixedSecs)
		}
	case model.BackoffExponential:
		if lc.Backoff.BaseSecs < 1 || lc.Backoff.BaseSecs > 3600 {
			return fmt.Errorf("httploop: exponential base %d out of range [1, 3600]", lc.Backoff.BaseSecs)
		}
		if lc.Backoff.Multiplier <= 1.0 || lc.Backoff.Multiplier > 10.0 {
			return fmt.Errorf("httploop: exponential multiplier %v out of range (1.0, 10.0]", lc.Backoff.Multiplier)
		}
		if lc.Backoff.MaxSecs < 1 || lc.Backoff.MaxSecs > 86400 {
			return fmt.Errorf("httploop: exponential max %d out of range [1, 86400]", lc.Backoff.MaxSecs)
		}
	case model.BackoffCustom:
		if strings.TrimSpace(lc.Backoff.Script) == "" {
			return fmt.Errorf("httploop: custom backoff script cannot be empty")
		}
	}
	if lc.TerminationCondition != nil && strings.TrimSpace(lc.TerminationCondition.Script) == "" {
		return fmt.Errorf("httploop: termination condition script cannot be empty")
	}
	return nil
}

// Run polls for due loops every tickInterval until ctx is cancelled (spec
// §4.8 "Ticking").
func (s *Scheduler) Run(ctx context.Context, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.store.ListDueLoops(ctx, time.Now().UnixMicro())
	if err != nil {
		s.log.Error("httploop: list due loops failed", zap.Error(err))
		return
	}
	for _, row := range due {
		if !s.tryLock(row.ID) {
			continue
		}
		go func(loopID string) {
			defer s.unlock(loopID)
			if err := s.runIteration(ctx, loopID); err != nil {
				s.log.Error("httploop: iteration failed", zap.String("loop_id", loopID), zap.Error(err))
			}
		}(row.ID)
	}
}

func (s *Scheduler) tryLock(loopID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[loopID] {
		return false
	}
	s.running[loopID] = true
	return true
}

func (s *Scheduler) unlock(loopID string) {
	s.mu.Lock()
	delete(s.running, loopID)
	s.mu.Unlock()
}

// runIteration executes spec §4.8's ticking steps 1-7 for one loop.
func (s *Scheduler) runIteration(ctx context.Context, loopID string) error {
	row, err := s.store.GetLoop(ctx, loopID)
	if err != nil {
		return err
	}
	if row.Status != model.LoopRunning {
		return nil
	}

	initialEvent, err := model.UnmarshalEvent(row.InitialEvent)
	if err != nil {
		return fmt.Errorf("unmarshal initial event: %w", err)
	}

	iterationNum := row.CurrentIteration + 1
	timeout := time.Duration(row.TimeoutSeconds) * time.Second
	resp, reqErr := s.client.Do(ctx, row.Method, row.URL, row.Headers, nil, timeout)

	success := reqErr == nil && resp.StatusCode >= 200 && resp.StatusCode <= 299
	statusCode := resp.StatusCode
	body := string(resp.Body)
	if len(body) > s.maxResponseBytes {
		body = body[:s.maxResponseBytes]
	}
	errMsg := ""
	if reqErr != nil {
		errMsg = reqErr.Error()
	}

	iterEvent := initialEvent.Clone()
	iterEvent.Data["status_code"] = statusCode
	iterEvent.Data["response_body"] = body

	outcome := model.IterationOutcome{
		Iteration:    iterationNum,
		AtMicros:     time.Now().UnixMicro(),
		StatusCode:   statusCode,
		Success:      success,
		ErrorMessage: errMsg,
	}
	row.IterationHistory = appendHistory(row.IterationHistory, outcome, s.maxHistory)
	row.CurrentIteration = iterationNum
	row.LastResponseStatus = statusCode
	row.LastResponseBody = body
	if success {
		row.ConsecutiveFailures = 0
	} else {
		row.ConsecutiveFailures++
	}

	if row.MaxIterations != nil && row.CurrentIteration >= *row.MaxIterations {
		return s.terminate(ctx, row, model.LoopCompleted, "MaxIterations", iterEvent)
	}

	elapsedSeconds := float64(time.Now().UnixMicro()-row.LoopStartedAt) / 1e6
	vars := map[string]any{
		"data":                 iterEvent.Data,
		"iteration":            float64(row.CurrentIteration),
		"elapsed_seconds":      elapsedSeconds,
		"http_status":          float64(statusCode),
		"consecutive_failures": float64(row.ConsecutiveFailures),
	}

	term := row.LoopConfig.TerminationCondition
	if term != nil {
		matched, err := s.script.EvalBool(term.Script, vars)
		if err != nil {
			s.log.Error("httploop: termination script failed", zap.String("loop_id", loopID), zap.Error(err))
		} else if matched {
			switch term.Action {
			case model.TerminationStop:
				return s.terminate(ctx, row, model.LoopCancelled, "Stopped", iterEvent)
			case model.TerminationSuccess:
				if success {
					return s.terminate(ctx, row, model.LoopCompleted, "Success", iterEvent)
				}
			case model.TerminationFailure:
				if !success {
					return s.terminate(ctx, row, model.LoopFailed, "Failure", iterEvent)
				}
			}
		}
	}

	nextInterval, err := s.nextInterval(row.LoopConfig, success, vars)
	if err != nil {
		s.log.Error("httploop: backoff calculation failed", zap.String("loop_id", loopID), zap.Error(err))
		nextInterval = time.Duration(row.LoopConfig.IntervalSeconds) * time.Second
	}
	row.NextExecutionAt = time.Now().Add(nextInterval).UnixMicro()
	return s.store.UpdateLoop(ctx, row)
}

func appendHistory(history []model.IterationOutcome, outcome model.IterationOutcome, max int) []model.IterationOutcome {
	history = append(history, outcome)
	if len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}

// nextInterval implements spec §4.8 step 6.
func (s *Scheduler) nextInterval(lc model.LoopConfig, success bool, vars map[string]any) (time.Duration, error) {
	switch lc.Backoff.Kind {
	case model.BackoffFixed:
		return time.Duration(lc.Backoff.FixedSecs) * time.Second, nil
	case model.BackoffExponential:
		if success {
			return time.Duration(lc.Backoff.BaseSecs) * time.Second, nil
		}
		current := time.Duration(lc.IntervalSeconds) * time.Second
		next := time.Duration(float64(current) * lc.Backoff.Multiplier)
		max := time.Duration(lc.Backoff.MaxSecs) * time.Second
		if next > max {
			next = max
		}
		return next, nil
	case model.BackoffCustom:
		scriptVars := map[string]any{}
		for k, v := range vars {
			scriptVars[k] = v
		}
		scriptVars["current"] = float64(lc.IntervalSeconds)
		scriptVars["success"] = success
		n, err := s.script.EvalNumber(lc.Backoff.Script, scriptVars)
		if err != nil {
			return 0, err
		}
		clamped := time.Duration(n) * time.Second
		if clamped < time.Second {
			clamped = time.Second
		}
		if clamped > 24*time.Hour {
			clamped = 24 * time.Hour
		}
		return clamped, nil
	default:
		return time.Duration(lc.IntervalSeconds) * time.Second, nil
	}
}

func (s *Scheduler) terminate(ctx context.Context, row *model.HttpLoopState, status model.HTTPLoopStatus, reason string, finalEvent model.WorkflowEvent) error {
	if !row.Status.ValidTransition(status) {
		return fmt.Errorf("httploop: invalid transition %s -> %s", row.Status, status)
	}
	row.Status = status
	row.TerminationReason = reason
	if out, err := finalEvent.Marshal(); err == nil {
		row.LastResponseBody = string(out)
	}
	if err := s.store.UpdateLoop(ctx, row); err != nil {
		return err
	}
	s.log.Info("http loop terminated", zap.String("loop_id", row.ID), zap.String("reason", reason), zap.String("status", string(status)))
	return nil
}

// Await blocks the caller by polling the loop row every 100ms up to 1
// hour, returning a WorkflowEvent built from last_response_body on
// success (spec §4.8 "Blocking wait").
func (s *Scheduler) Await(ctx context.Context, loopID string) (model.WorkflowEvent, error) {
	deadline := time.Now().Add(awaitMaxWait)
	for time.Now().Before(deadline) {
		row, err := s.store.GetLoop(ctx, loopID)
		if err != nil {
			return model.WorkflowEvent{}, err
		}
		switch row.Status {
		case model.LoopCompleted:
			if len(row.LastResponseBody) > 0 {
				return model.UnmarshalEvent([]byte(row.LastResponseBody))
			}
			return model.WorkflowEvent{Data: map[string]any{"loop_completed": true}}, nil
		case model.LoopFailed:
			return model.WorkflowEvent{}, fmt.Errorf("httploop: loop %s failed: %s", loopID, row.TerminationReason)
		case model.LoopCancelled:
			return model.WorkflowEvent{}, fmt.Errorf("httploop: loop %s cancelled: %s", loopID, row.TerminationReason)
		}
		select {
		case <-ctx.Done():
			return model.WorkflowEvent{}, ctx.Err()
		case <-time.After(awaitPollInterval):
		}
	}
	return model.WorkflowEvent{}, fmt.Errorf("httploop: wait timeout after %s: %s", awaitMaxWait, loopID)
}

// RestoreFromStartup marks every running loop's next_execution_at as now
// so the next tick picks it up (spec §4.8 "Restart recovery").
func (s *Scheduler) RestoreFromStartup(ctx context.Context) (int, error) {
	running, err := s.store.ListRunningLoops(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now().UnixMicro()
	for _, row := range running {
		row.NextExecutionAt = now
		if err := s.store.UpdateLoop(ctx, row); err != nil {
			s.log.Error("httploop: restore update failed", zap.String("loop_id", row.ID), zap.Error(err))
		}
	}
	s.log.Info("http loop restoration complete", zap.Int("count", len(running)))
	return len(running), nil
}
