package agent

// ToolKind is the closed set of capabilities a plan step may invoke.
// Dispatch switches on the kind, so adding a tool means adding a case.
type ToolKind string

const (
	ToolWebResearch   ToolKind = "web_research"
	ToolWebSearch     ToolKind = "web_search"
	ToolSaveToNotion  ToolKind = "save_to_notion"
	ToolDispatchEmail ToolKind = "dispatch_email"
)

// IsResearch reports whether the tool gathers intelligence.
func (k ToolKind) IsResearch() bool {
	return k == ToolWebResearch || k == ToolWebSearch
}

// IsAction reports whether the tool publishes results.
func (k ToolKind) IsAction() bool {
	return k == ToolSaveToNotion || k == ToolDispatchEmail
}

// PlanStep is one planned tool invocation. Ordering is the model's output
// order and is preserved through execution.
type PlanStep struct {
	Step    int               `json:"step"`
	Tool    ToolKind          `json:"tool"`
	Args    map[string]string `json:"args"`
	Thought string            `json:"thought"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ToolResult is one tool invocation's normalized outcome. Failures are
// encoded in Text, never raised.
type ToolResult struct {
	Tool   ToolKind
	Status string
	Text   string
}

// TraceEntry is one line of the mission's execution trace, returned to the
// caller alongside the report.
type TraceEntry struct {
	Tool   string `json:"tool"`
	Status string `json:"status,omitempty"`
	Result string `json:"result,omitempty"`
}

// MissionResult is the coordinator's final answer. Status is always
// "complete"; per-step failures live in Trace and in the report text.
type MissionResult struct {
	Status    string       `json:"status"`
	MissionID string       `json:"mission_id"`
	Report    string       `json:"report"`
	Trace     []TraceEntry `json:"trace"`
}

// Event is one streamed progress update for the NDJSON transport.
type Event struct {
	Stage   string `json:"type"`
	Message string `json:"content,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Report  string `json:"report,omitempty"`
}

const (
	StageThinking = "thinking"
	StageTool     = "tool"
	StageComplete = "complete"
	StageError    = "error"
)
