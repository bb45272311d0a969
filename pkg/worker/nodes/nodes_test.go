package nodes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openobserve/swisspipe-engine/pkg/collaborators"
	"github.com/openobserve/swisspipe-engine/pkg/collaborators/httpclient"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/script"
)

func newEvent(data map[string]any) model.WorkflowEvent {
	return model.WorkflowEvent{
		Data:             data,
		Headers:          map[string]string{},
		Metadata:         map[string]any{},
		ConditionResults: map[string]bool{},
	}
}

func TestTrigger_PassesEventThroughUnchanged(t *testing.T) {
	exec := Trigger()
	event := newEvent(map[string]any{"a": 1.0})
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, model.Node{ID: "t"}, event)
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected Completed, got %v", outcome.Kind)
	}
	if outcome.Event.Data["a"] != 1.0 {
		t.Errorf("expected data to pass through unchanged, got %v", outcome.Event.Data)
	}
}

func TestTransformer_EvaluatesScriptIntoNewData(t *testing.T) {
	exec := Transformer(script.NewEngine(nil))
	node := model.Node{ID: "t1", Config: model.NodeConfig{Transformer: &model.TransformerConfig{Script: `{"doubled": data.n * 2}`}}}
	event := newEvent(map[string]any{"n": 3.0})
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, node, event)
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected Completed, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Event.Data["doubled"] != 6.0 {
		t.Errorf("expected doubled=6, got %v", outcome.Event.Data)
	}
}

func TestTransformer_FailsWithoutConfig(t *testing.T) {
	exec := Transformer(script.NewEngine(nil))
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, model.Node{ID: "t1"}, newEvent(nil))
	if outcome.Kind != engine.OutcomeFailed {
		t.Fatalf("expected Failed, got %v", outcome.Kind)
	}
}

func TestCondition_StoresBoolResultUnderNodeID(t *testing.T) {
	exec := Condition(script.NewEngine(nil))
	node := model.Node{ID: "cond1", Config: model.NodeConfig{Condition: &model.ConditionConfig{Script: "data.n > 5.0"}}}
	event := newEvent(map[string]any{"n": 10.0})
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, node, event)
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected Completed, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if !outcome.Event.ConditionResults["cond1"] {
		t.Errorf("expected condition_results[cond1]=true, got %v", outcome.Event.ConditionResults)
	}
	if outcome.Event.Data["n"] != 10.0 {
		t.Errorf("expected Data to be preserved, got %v", outcome.Event.Data)
	}
}

type fakeDelayScheduler struct {
	gotDuration time.Duration
	gotNext     string
	id          string
	err         error
}

func (f *fakeDelayScheduler) ScheduleDelay(_ context.Context, _, _, nextNodeID string, duration time.Duration, _ model.WorkflowEvent) (string, error) {
	f.gotNext = nextNodeID
	f.gotDuration = duration
	return f.id, f.err
}

func TestDelay_SuspendsAndSchedulesAgainstTheSingleNextNode(t *testing.T) {
	sched := &fakeDelayScheduler{id: "delay-1"}
	exec := Delay(sched)
	node := model.Node{ID: "wait", Config: model.NodeConfig{Delay: &model.DelayConfig{Duration: 30, Unit: model.DelayUnitSeconds}}}
	nctx := engine.NodeContext{NextNodeIDs: []string{"after"}}
	outcome := exec.Execute(context.Background(), nctx, node, newEvent(nil))
	if outcome.Kind != engine.OutcomeSuspended {
		t.Fatalf("expected Suspended, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Suspend.ID != "delay-1" {
		t.Errorf("expected the scheduler's delay id to carry through, got %q", outcome.Suspend.ID)
	}
	if sched.gotNext != "after" || sched.gotDuration != 30*time.Second {
		t.Errorf("expected ScheduleDelay(next=after, 30s), got next=%q duration=%s", sched.gotNext, sched.gotDuration)
	}
}

func TestDelay_FailsWithWrongOutgoingEdgeCount(t *testing.T) {
	exec := Delay(&fakeDelayScheduler{})
	node := model.Node{ID: "wait", Config: model.NodeConfig{Delay: &model.DelayConfig{Duration: 1, Unit: model.DelayUnitSeconds}}}
	for _, next := range [][]string{{}, {"a", "b"}} {
		outcome := exec.Execute(context.Background(), engine.NodeContext{NextNodeIDs: next}, node, newEvent(nil))
		if outcome.Kind != engine.OutcomeFailed {
			t.Errorf("next=%v: expected Failed, got %v", next, outcome.Kind)
		}
	}
}

func TestHttpRequest_AttachesStatusAndBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Reply", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	client := httpclient.New(collaborators.NewLimiters(1000, 1000, 1000))
	exec := HttpRequest(client, nil)
	node := model.Node{ID: "h1", Config: model.NodeConfig{HTTPRequest: &model.HTTPRequestConfig{
		URL: srv.URL, Method: http.MethodGet, TimeoutSeconds: 5,
	}}}
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, node, newEvent(nil))
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected Completed, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Event.Data["status_code"] != http.StatusOK {
		t.Errorf("expected status_code 200, got %v", outcome.Event.Data["status_code"])
	}
	if outcome.Event.Data["response_body"] != "pong" {
		t.Errorf("expected response_body=pong, got %v", outcome.Event.Data["response_body"])
	}
}

func TestHttpRequest_ContinueFailureActionSwallowsError(t *testing.T) {
	client := httpclient.New(collaborators.NewLimiters(1000, 1000, 1000))
	exec := HttpRequest(client, nil)
	node := model.Node{ID: "h1", Config: model.NodeConfig{HTTPRequest: &model.HTTPRequestConfig{
		URL: "http://127.0.0.1:1", Method: http.MethodGet, TimeoutSeconds: 1, FailureAction: model.FailureActionContinue,
	}}}
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, node, newEvent(map[string]any{"kept": true}))
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected failure_action=continue to still Complete, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Event.Data["kept"] != true {
		t.Errorf("expected the original event to pass through unmodified, got %v", outcome.Event.Data)
	}
}

type fakeLoopScheduler struct {
	loopID string
	result model.WorkflowEvent
	err    error
}

func (f *fakeLoopScheduler) Start(context.Context, engine.NodeContext, model.Node, model.WorkflowEvent) (string, error) {
	return f.loopID, nil
}

func (f *fakeLoopScheduler) Await(context.Context, string) (model.WorkflowEvent, error) {
	return f.result, f.err
}

func TestHttpRequest_DelegatesToLoopSchedulerWhenLoopConfigSet(t *testing.T) {
	max := 3
	loops := &fakeLoopScheduler{loopID: "loop-1", result: newEvent(map[string]any{"iterations": 3.0})}
	exec := HttpRequest(httpclient.New(collaborators.NewLimiters(1000, 1000, 1000)), loops)
	node := model.Node{ID: "h1", Config: model.NodeConfig{HTTPRequest: &model.HTTPRequestConfig{
		URL: "http://example.invalid", Method: http.MethodGet, TimeoutSeconds: 5,
		LoopConfig: &model.LoopConfig{MaxIterations: &max, IntervalSeconds: 1},
	}}}
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, node, newEvent(nil))
	if outcome.Kind != engine.OutcomeCompleted {
		t.Fatalf("expected Completed, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Event.Data["iterations"] != 3.0 {
		t.Errorf("expected the loop's terminal event to be returned, got %v", outcome.Event.Data)
	}
}

type fakeHilCreator struct {
	taskID string
	err    error
}

func (f *fakeHilCreator) CreateTask(context.Context, engine.NodeContext, model.Node, model.WorkflowEvent) (string, error) {
	return f.taskID, f.err
}

func TestHumanInLoop_SuspendsWithTheCreatedTaskID(t *testing.T) {
	exec := HumanInLoop(&fakeHilCreator{taskID: "hil-1"})
	node := model.Node{ID: "approve", Config: model.NodeConfig{HumanInLoop: &model.HumanInLoopConfig{Title: "Approve order"}}}
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, node, newEvent(nil))
	if outcome.Kind != engine.OutcomeSuspended {
		t.Fatalf("expected Suspended, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Suspend.ID != "hil-1" {
		t.Errorf("expected the coordinator's task id to carry through, got %q", outcome.Suspend.ID)
	}
}

func TestHumanInLoop_FailsWithoutConfig(t *testing.T) {
	exec := HumanInLoop(&fakeHilCreator{taskID: "hil-1"})
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, model.Node{ID: "approve"}, newEvent(nil))
	if outcome.Kind != engine.OutcomeFailed {
		t.Fatalf("expected Failed, got %v", outcome.Kind)
	}
}

func TestEmail_FailsWithoutConfig(t *testing.T) {
	exec := Email(nil)
	outcome := exec.Execute(context.Background(), engine.NodeContext{}, model.Node{ID: "e1"}, newEvent(nil))
	if outcome.Kind != engine.OutcomeFailed {
		t.Fatalf("expected Failed, got %v", outcome.Kind)
	}
}
