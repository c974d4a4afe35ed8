package scenario

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jpalmerr/statekit/config"
	"github.com/jpalmerr/statekit/internal/journal"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runScenario parses yaml, runs it and returns the journal.
func runScenario(t *testing.T, yaml string) (*Runner, *journal.MemoryJournal) {
	t.Helper()

	sc, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}

	j := journal.NewMemoryJournal()
	r, err := NewRunner(sc, j, testLogger())
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return r, j
}

// statuses returns "source:status" for every status entry.
func statuses(j *journal.MemoryJournal) []string {
	var out []string
	for _, e := range j.Filter(journal.KindStatus) {
		out = append(out, e.Source+":"+e.Status)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewRunner_Validation(t *testing.T) {
	if _, err := NewRunner(nil, journal.NewMemoryJournal(), nil); err == nil {
		t.Error("NewRunner(nil scenario) expected error, got nil")
	}
	if _, err := NewRunner(&config.Scenario{}, nil, nil); err == nil {
		t.Error("NewRunner(nil journal) expected error, got nil")
	}
}

func TestRunner_SetAndIncrement(t *testing.T) {
	r, j := runScenario(t, `
initial_state:
  count: 0
subscribers:
  - name: view
steps:
  - set: {count: 1}
  - set: {count: 1}
  - increment: count
  - increment: fresh
`)

	if got := r.Store().Get()["count"]; got != 2 {
		t.Errorf("count = %v, want 2", got)
	}
	if got := r.Store().Get()["fresh"]; got != 1 {
		t.Errorf("fresh = %v, want 1", got)
	}

	// the repeated set is shallow-equal and must not notify
	states := j.Filter(journal.KindState)
	if len(states) != 3 {
		t.Fatalf("state entries = %d, want 3", len(states))
	}
	if states[0].State["count"] != 1 || states[1].State["count"] != 2 {
		t.Errorf("state entries = %+v", states)
	}
}

func TestRunner_IncrementNonNumericIsSkipped(t *testing.T) {
	r, j := runScenario(t, `
initial_state:
  label: x
subscribers:
  - name: view
steps:
  - increment: label
`)

	if got := r.Store().Get()["label"]; got != "x" {
		t.Errorf("label = %v, want x", got)
	}
	if n := len(j.Filter(journal.KindState)); n != 0 {
		t.Errorf("state entries = %d, want 0", n)
	}
}

func TestRunner_DispatchAndUnsubscribe(t *testing.T) {
	_, j := runScenario(t, `
subscribers:
  - name: audit
    event: saved
steps:
  - dispatch: saved
  - unsubscribe: audit
  - dispatch: saved
  - dispatch: nobody
`)

	events := j.Filter(journal.KindEvent)
	if len(events) != 1 {
		t.Fatalf("event entries = %d, want 1", len(events))
	}
	if events[0].Source != "audit" || events[0].Event != "saved" {
		t.Errorf("event entry = %+v, want audit/saved", events[0])
	}
}

func TestRunner_AttachDetach(t *testing.T) {
	_, j := runScenario(t, `
initial_state:
  n: 0
steps:
  - attach: first
  - attach: second
  - set: {n: 1}
  - detach: true
  - set: {n: 2}
`)

	states := j.Filter(journal.KindState)
	if len(states) != 1 {
		t.Fatalf("state entries = %d, want 1", len(states))
	}
	if states[0].Source != "component:second" {
		t.Errorf("Source = %q, want component:second", states[0].Source)
	}
}

func TestRunner_CallSuccessAndError(t *testing.T) {
	r, j := runScenario(t, `
actions:
  - name: save
    delay: 5ms
    result: ok
    set: {saved: true}
  - name: broken
    error: boom
steps:
  - call: save
  - call: broken
`)

	want := []string{"save:loading", "save:success", "broken:loading", "broken:error"}
	if got := statuses(j); !equalStrings(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
	if r.Store().Get()["saved"] != true {
		t.Errorf("saved = %v, want true", r.Store().Get()["saved"])
	}

	results := j.Filter(journal.KindResult)
	if len(results) != 2 {
		t.Fatalf("result entries = %d, want 2", len(results))
	}
	if results[0].Payload != "ok" || results[0].Error != nil {
		t.Errorf("save result = %+v, want payload ok", results[0])
	}
	if results[1].Error == nil || *results[1].Error != "boom" {
		t.Errorf("broken result = %+v, want error boom", results[1])
	}
}

func TestRunner_Reports(t *testing.T) {
	_, j := runScenario(t, `
actions:
  - name: upload
    delay: 9ms
    result: done
    reports:
      - status: loading
        payload: 33
      - status: loading
        payload: 66
steps:
  - call: upload
`)

	want := []string{"upload:loading", "upload:loading", "upload:loading", "upload:success"}
	if got := statuses(j); !equalStrings(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestRunner_SupersededAsyncCall(t *testing.T) {
	_, j := runScenario(t, `
actions:
  - name: fetch
    delay: 30ms
    result: data
steps:
  - call: fetch
    async: true
  - sleep: 5ms
  - call: fetch
  - join: true
`)

	// the first call is superseded: one success only
	want := []string{"fetch:loading", "fetch:loading", "fetch:success"}
	if got := statuses(j); !equalStrings(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	// both callers still receive a result
	if n := len(j.Filter(journal.KindResult)); n != 2 {
		t.Errorf("result entries = %d, want 2", n)
	}
}

func TestRunner_Cancel(t *testing.T) {
	_, j := runScenario(t, `
actions:
  - name: fetch
    delay: 50ms
    result: data
steps:
  - call: fetch
    async: true
  - sleep: 5ms
  - cancel: fetch
  - join: true
  - cancel: fetch
`)

	want := []string{"fetch:loading", "fetch:idle"}
	if got := statuses(j); !equalStrings(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	results := j.Filter(journal.KindResult)
	if len(results) != 1 || results[0].Error == nil {
		t.Fatalf("result entries = %+v, want one cancelled result", results)
	}
	if *results[0].Error != context.Canceled.Error() {
		t.Errorf("cancelled result error = %q, want %q", *results[0].Error, context.Canceled.Error())
	}
}

func TestRunner_ContextCancelled(t *testing.T) {
	sc, err := config.Parse([]byte(`
steps:
  - sleep: 30s
`))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}

	r, err := NewRunner(sc, journal.NewMemoryJournal(), testLogger())
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = r.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Run() did not stop on context cancellation")
	}
}

func TestRunner_StepEntries(t *testing.T) {
	_, j := runScenario(t, `
steps:
  - dispatch: a
  - join: true
`)

	steps := j.Filter(journal.KindStep)
	if len(steps) != 2 {
		t.Fatalf("step entries = %d, want 2", len(steps))
	}
	if steps[0].Source != "steps[0]" || steps[0].Payload != "dispatch" {
		t.Errorf("steps[0] entry = %+v", steps[0])
	}
	if steps[1].Payload != "join" {
		t.Errorf("steps[1] entry = %+v", steps[1])
	}
}

func TestRunner_UUIDGenerator(t *testing.T) {
	r, _ := runScenario(t, `
id_generator: uuid
subscribers:
  - name: view
steps:
  - join: true
`)

	if id := r.Store().LastSubscriberID(); len(id) != 36 {
		t.Errorf("LastSubscriberID() = %q, want a uuid", id)
	}
}
