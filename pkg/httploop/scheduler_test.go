package httploop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/collaborators"
	"github.com/openobserve/swisspipe-engine/pkg/collaborators/httpclient"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/script"
	"github.com/openobserve/swisspipe-engine/pkg/store/memstore"
)

func newScheduler() *Scheduler {
	client := httpclient.New(collaborators.NewLimiters(1000, 1000, 1000))
	return New(memstore.New(), client, script.NewEngine(nil), zap.NewNop())
}

func loopNode(srv *httptest.Server, maxIterations int) model.Node {
	max := maxIterations
	return model.Node{
		ID:   "poll",
		Type: model.NodeTypeHTTPRequest,
		Config: model.NodeConfig{
			HTTPRequest: &model.HTTPRequestConfig{
				URL:            srv.URL,
				Method:         http.MethodGet,
				TimeoutSeconds: 5,
				LoopConfig: &model.LoopConfig{
					MaxIterations:   &max,
					IntervalSeconds: 1,
					Backoff:         model.LoopBackoff{Kind: model.BackoffFixed, FixedSecs: 1},
				},
			},
		},
	}
}

func TestStart_RejectsInvalidURL(t *testing.T) {
	s := newScheduler()
	node := model.Node{Config: model.NodeConfig{HTTPRequest: &model.HTTPRequestConfig{
		URL: "not a url", Method: http.MethodGet, TimeoutSeconds: 5,
		LoopConfig: &model.LoopConfig{IntervalSeconds: 1, Backoff: model.LoopBackoff{Kind: model.BackoffFixed, FixedSecs: 1}},
	}}}
	_, err := s.Start(context.Background(), engine.NodeContext{ExecutionID: "exec-1"}, node, model.WorkflowEvent{Data: map[string]any{}})
	assert.Error(t, err)
}

func TestStart_PersistsRunningLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newScheduler()
	node := loopNode(srv, 3)
	loopID, err := s.Start(context.Background(), engine.NodeContext{ExecutionID: "exec-1"}, node, model.WorkflowEvent{Data: map[string]any{}})
	require.NoError(t, err)
	require.NotEmpty(t, loopID)

	row, err := s.store.GetLoop(context.Background(), loopID)
	require.NoError(t, err)
	assert.Equal(t, model.LoopRunning, row.Status)
}

func TestRunIteration_CompletesAfterMaxIterations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newScheduler()
	ctx := context.Background()
	node := loopNode(srv, 2)
	loopID, err := s.Start(ctx, engine.NodeContext{ExecutionID: "exec-1"}, node, model.WorkflowEvent{Data: map[string]any{}})
	require.NoError(t, err)

	require.NoError(t, s.runIteration(ctx, loopID))
	row, err := s.store.GetLoop(ctx, loopID)
	require.NoError(t, err)
	assert.Equal(t, model.LoopRunning, row.Status)
	assert.Equal(t, 1, row.CurrentIteration)

	require.NoError(t, s.runIteration(ctx, loopID))
	row, err = s.store.GetLoop(ctx, loopID)
	require.NoError(t, err)
	assert.Equal(t, model.LoopCompleted, row.Status)
	assert.Equal(t, "MaxIterations", row.TerminationReason)
}

func TestRunIteration_StopsOnTerminationScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	s := newScheduler()
	ctx := context.Background()
	node := loopNode(srv, 1000)
	node.Config.HTTPRequest.LoopConfig.TerminationCondition = &model.TerminationCondition{
		Script: "http_status == 418.0",
		Action: model.TerminationStop,
	}
	loopID, err := s.Start(ctx, engine.NodeContext{ExecutionID: "exec-1"}, node, model.WorkflowEvent{Data: map[string]any{}})
	require.NoError(t, err)

	require.NoError(t, s.runIteration(ctx, loopID))
	row, err := s.store.GetLoop(ctx, loopID)
	require.NoError(t, err)
	assert.Equal(t, model.LoopCancelled, row.Status)
	assert.Equal(t, "Stopped", row.TerminationReason)
}

func TestAwait_ReturnsEventOnCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newScheduler()
	ctx := context.Background()
	node := loopNode(srv, 1)
	loopID, err := s.Start(ctx, engine.NodeContext{ExecutionID: "exec-1"}, node, model.WorkflowEvent{Data: map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, s.runIteration(ctx, loopID))

	event, err := s.Await(ctx, loopID)
	require.NoError(t, err)
	assert.NotNil(t, event.Data)
}

func TestRestoreFromStartup_ResetsNextExecutionAtToNow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newScheduler()
	ctx := context.Background()
	node := loopNode(srv, 5)
	node.Config.HTTPRequest.LoopConfig.IntervalSeconds = 3600
	loopID, err := s.Start(ctx, engine.NodeContext{ExecutionID: "exec-1"}, node, model.WorkflowEvent{Data: map[string]any{}})
	require.NoError(t, err)

	row, err := s.store.GetLoop(ctx, loopID)
	require.NoError(t, err)
	row.NextExecutionAt = time.Now().Add(time.Hour).UnixMicro()
	require.NoError(t, s.store.UpdateLoop(ctx, row))

	n, err := s.RestoreFromStartup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row, err = s.store.GetLoop(ctx, loopID)
	require.NoError(t, err)
	assert.LessOrEqual(t, row.NextExecutionAt, time.Now().UnixMicro())
}
