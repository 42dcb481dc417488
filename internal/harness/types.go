package harness

// CycleInput is one source's framed contribution to a prompt.
type CycleInput struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// CycleFault is a source whose poll step failed.
type CycleFault struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// CycleCommand is one decided command and its dispatch outcome.
type CycleCommand struct {
	Name   string   `json:"name"`
	Args   []string `json:"args"`
	Status string   `json:"status"`
	Error  string   `json:"error,omitempty"`
}

// CycleTrace records what happened in one fusion cycle.
type CycleTrace struct {
	ID     string       `json:"id"`
	Seq    int64        `json:"seq"`
	Idle   bool         `json:"idle"`
	Inputs []CycleInput `json:"inputs"`
	Faults []CycleFault `json:"faults"`

	// DecisionError is "CODE: message" when the decision failed.
	DecisionError string         `json:"decision_error,omitempty"`
	Commands      []CycleCommand `json:"commands"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every cycle expectation and assertion held.
	Pass bool `json:"pass"`

	Scenario string   `json:"scenario"`
	Sources  []string `json:"sources"`

	// Cycles holds one trace per scripted cycle, in execution order.
	Cycles []CycleTrace `json:"cycles"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with no cycles.
func NewResult(scenario string) *Result {
	return &Result{
		Pass:     true,
		Scenario: scenario,
		Cycles:   []CycleTrace{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Dispatched flattens every cycle's commands in dispatch order.
func (r *Result) Dispatched() []CycleCommand {
	var out []CycleCommand
	for _, c := range r.Cycles {
		out = append(out, c.Commands...)
	}
	return out
}
