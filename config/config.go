// Package config provides YAML scenario parsing for statekit.
//
// A scenario describes a store, the subscribers and actions attached to it,
// and a sequence of steps to drive it. The statekit CLI runs scenarios to
// demonstrate and check store and action behaviour without writing Go.
//
// Example scenario:
//
//	name: counter
//	initial_state:
//	  count: 0
//	subscribers:
//	  - name: view
//	actions:
//	  - name: save
//	    delay: 50ms
//	    result: saved
//	steps:
//	  - set: {count: 1}
//	  - increment: count
//	  - call: save
//	    async: true
//	  - call: save
//	  - join: true
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/jpalmerr/statekit"
	"gopkg.in/yaml.v3"
)

// maxDelay bounds action delays and sleeps so a scenario cannot hang a run.
const maxDelay = time.Minute

// Scenario is the root configuration structure.
//
// It maps directly to the YAML file structure. Use [Load] or [Parse] to
// create a Scenario from YAML.
type Scenario struct {
	// Name is a label for the scenario, used in output.
	Name string `yaml:"name"`

	// IDGenerator selects subscriber ids: "counter" (default) or "uuid".
	IDGenerator string `yaml:"id_generator"`

	// InitialState is the store's starting state.
	// String values support environment variable substitution: ${VAR} or ${VAR:-default}
	InitialState map[string]any `yaml:"initial_state"`

	// Subscribers are named subscriptions registered before any step runs.
	Subscribers []SubscriberConfig `yaml:"subscribers"`

	// Actions are the async actions available to call steps.
	Actions []ActionConfig `yaml:"actions"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// SubscriberConfig defines a named subscription.
type SubscriberConfig struct {
	// Name identifies the subscriber in output and in unsubscribe steps.
	Name string `yaml:"name"`

	// Event is the event to subscribe to. Defaults to the state-changed event.
	Event string `yaml:"event"`
}

// ActionConfig defines a simulated async operation.
type ActionConfig struct {
	// Name identifies the action in call and cancel steps.
	Name string `yaml:"name"`

	// Delay is how long the operation takes before it settles.
	Delay Duration `yaml:"delay"`

	// Result is the success payload.
	Result any `yaml:"result"`

	// Error, if set, makes the operation fail with this message.
	Error string `yaml:"error"`

	// Reports are intermediate statuses pushed before the operation settles,
	// spread evenly across Delay.
	Reports []ReportConfig `yaml:"reports"`

	// Set is merged into the store when the operation succeeds.
	Set map[string]any `yaml:"set"`
}

// ReportConfig is one intermediate status report.
type ReportConfig struct {
	// Status is one of idle, loading, success or error.
	Status string `yaml:"status"`

	// Payload is passed with the report.
	Payload any `yaml:"payload"`
}

// Step is a single scenario instruction. Exactly one operation field must
// be set; [Step.Op] names it.
type Step struct {
	// Set shallow-merges a partial state into the store.
	Set map[string]any `yaml:"set"`

	// Increment adds one to the numeric key it names.
	Increment string `yaml:"increment"`

	// Dispatch triggers a custom event.
	Dispatch string `yaml:"dispatch"`

	// Call invokes the named action.
	Call string `yaml:"call"`

	// Async runs a call step in the background instead of waiting for it.
	Async bool `yaml:"async"`

	// Cancel cancels the named action.
	Cancel string `yaml:"cancel"`

	// Attach attaches a component with this name.
	Attach string `yaml:"attach"`

	// Detach detaches the attached component.
	Detach bool `yaml:"detach"`

	// Unsubscribe removes the named subscriber.
	Unsubscribe string `yaml:"unsubscribe"`

	// Sleep pauses the scenario.
	Sleep Duration `yaml:"sleep"`

	// Join waits for all background calls to settle.
	Join bool `yaml:"join"`
}

// Step operation names returned by [Step.Op].
const (
	OpSet         = "set"
	OpIncrement   = "increment"
	OpDispatch    = "dispatch"
	OpCall        = "call"
	OpCancel      = "cancel"
	OpAttach      = "attach"
	OpDetach      = "detach"
	OpUnsubscribe = "unsubscribe"
	OpSleep       = "sleep"
	OpJoin        = "join"
)

// Op returns the name of the operation set on the step, or "" if none is
// set. If several are set the first in declaration order is returned; use
// [Parse] to reject such steps.
func (s Step) Op() string {
	ops := s.ops()
	if len(ops) == 0 {
		return ""
	}
	return ops[0]
}

func (s Step) ops() []string {
	var ops []string
	if s.Set != nil {
		ops = append(ops, OpSet)
	}
	if s.Increment != "" {
		ops = append(ops, OpIncrement)
	}
	if s.Dispatch != "" {
		ops = append(ops, OpDispatch)
	}
	if s.Call != "" {
		ops = append(ops, OpCall)
	}
	if s.Cancel != "" {
		ops = append(ops, OpCancel)
	}
	if s.Attach != "" {
		ops = append(ops, OpAttach)
	}
	if s.Detach {
		ops = append(ops, OpDetach)
	}
	if s.Unsubscribe != "" {
		ops = append(ops, OpUnsubscribe)
	}
	if s.Sleep != 0 {
		ops = append(ops, OpSleep)
	}
	if s.Join {
		ops = append(ops, OpJoin)
	}
	return ops
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// expandStateVars expands environment variables in the top-level string
// values of m, in place.
func expandStateVars(m map[string]any) error {
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		expanded, err := expandEnvVars(s)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		m[k] = expanded
	}
	return nil
}

// Load reads and parses a YAML scenario file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML scenario data.
//
// Environment variables are expanded in the string values of initial_state
// and set maps. The id generator defaults to "counter" and an empty
// initial_state to an empty map.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if sc.IDGenerator == "" {
		sc.IDGenerator = "counter"
	}
	if sc.InitialState == nil {
		sc.InitialState = map[string]any{}
	}

	if err := sc.expandAndValidate(); err != nil {
		return nil, err
	}

	return &sc, nil
}

// expandAndValidate expands environment variables and validates the scenario.
func (sc *Scenario) expandAndValidate() error {
	if sc.IDGenerator != "counter" && sc.IDGenerator != "uuid" {
		return fmt.Errorf("id_generator must be counter or uuid, got %q", sc.IDGenerator)
	}

	if err := expandStateVars(sc.InitialState); err != nil {
		return fmt.Errorf("initial_state: %w", err)
	}

	subscribers := make(map[string]struct{}, len(sc.Subscribers))
	for i, sub := range sc.Subscribers {
		if sub.Name == "" {
			return fmt.Errorf("subscribers[%d]: name is required", i)
		}
		if _, exists := subscribers[sub.Name]; exists {
			return fmt.Errorf("subscribers[%d]: duplicate name %q", i, sub.Name)
		}
		subscribers[sub.Name] = struct{}{}
	}

	actions := make(map[string]struct{}, len(sc.Actions))
	for i := range sc.Actions {
		a := &sc.Actions[i]

		if a.Name == "" {
			return fmt.Errorf("actions[%d]: name is required", i)
		}
		if _, exists := actions[a.Name]; exists {
			return fmt.Errorf("actions[%d]: duplicate name %q", i, a.Name)
		}
		actions[a.Name] = struct{}{}

		if err := validateDelay(a.Delay); err != nil {
			return fmt.Errorf("actions[%d] (%s): delay %w", i, a.Name, err)
		}
		if a.Error != "" && a.Set != nil {
			return fmt.Errorf("actions[%d] (%s): set has no effect on a failing action", i, a.Name)
		}
		for j, r := range a.Reports {
			if !statekit.Status(r.Status).Valid() {
				return fmt.Errorf("actions[%d] (%s): reports[%d]: unknown status %q", i, a.Name, j, r.Status)
			}
		}
		if a.Set != nil {
			if err := expandStateVars(a.Set); err != nil {
				return fmt.Errorf("actions[%d] (%s): set: %w", i, a.Name, err)
			}
		}
	}

	if len(sc.Steps) == 0 {
		return errors.New("at least one step must be defined")
	}

	for i := range sc.Steps {
		st := &sc.Steps[i]

		ops := st.ops()
		switch len(ops) {
		case 0:
			return fmt.Errorf("steps[%d]: no operation set", i)
		case 1:
		default:
			return fmt.Errorf("steps[%d]: only one operation allowed, got %v", i, ops)
		}

		if st.Async && ops[0] != OpCall {
			return fmt.Errorf("steps[%d]: async only applies to call steps", i)
		}

		switch ops[0] {
		case OpSet:
			if err := expandStateVars(st.Set); err != nil {
				return fmt.Errorf("steps[%d]: set: %w", i, err)
			}
		case OpCall:
			if _, ok := actions[st.Call]; !ok {
				return fmt.Errorf("steps[%d]: unknown action %q", i, st.Call)
			}
		case OpCancel:
			if _, ok := actions[st.Cancel]; !ok {
				return fmt.Errorf("steps[%d]: unknown action %q", i, st.Cancel)
			}
		case OpUnsubscribe:
			if _, ok := subscribers[st.Unsubscribe]; !ok {
				return fmt.Errorf("steps[%d]: unknown subscriber %q", i, st.Unsubscribe)
			}
		case OpSleep:
			if err := validateDelay(st.Sleep); err != nil {
				return fmt.Errorf("steps[%d]: sleep %w", i, err)
			}
		}
	}

	return nil
}

// validateDelay checks a duration is within [0, maxDelay].
func validateDelay(d Duration) error {
	if d.Duration() < 0 {
		return fmt.Errorf("cannot be negative, got %s", d.Duration())
	}
	if d.Duration() > maxDelay {
		return fmt.Errorf("must not exceed %s, got %s", maxDelay, d.Duration())
	}
	return nil
}
