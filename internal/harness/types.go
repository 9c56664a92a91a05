package harness

// Step types recorded in the trace.
const (
	StepSelect  = "select"
	StepSelect1 = "select1"
	StepRun     = "run"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"` // "select", "select1" or "run"
	Term   string `json:"term"`
	Params any    `json:"params,omitempty"`
	Result any    `json:"result,omitempty"`
	// Error is the engine error code when the step failed.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
