package agent

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/marketintel/mia/internal/intel"
	"github.com/marketintel/mia/internal/llm"
	"github.com/marketintel/mia/internal/store"
	"github.com/marketintel/mia/internal/telemetry"
)

const maxToolResultChars = 2000

// AuditLog records one finished mission. Failures are logged, never fatal.
type AuditLog interface {
	SaveMissionLog(ctx context.Context, rec *store.MissionLog) error
}

// Ingestor feeds the synthesized report into long-term retrieval memory.
type Ingestor interface {
	Ingest(ctx context.Context, conversationID, report string) (int, error)
}

// Coordinator drives one mission end to end: plan, gather, reduce,
// synthesize, persist, act. Every stage degrades to a placeholder rather
// than aborting, so a mission always reaches a result.
type Coordinator struct {
	planner *Planner
	orch    *Orchestrator
	llm     llm.Client
	audit   AuditLog
	memory  Ingestor
	metrics *telemetry.Metrics
	logger  *log.Logger
}

func NewCoordinator(planner *Planner, orch *Orchestrator, client llm.Client, audit AuditLog, memory Ingestor, metrics *telemetry.Metrics) *Coordinator {
	return &Coordinator{
		planner: planner,
		orch:    orch,
		llm:     client,
		audit:   audit,
		memory:  memory,
		metrics: metrics,
		logger:  log.New(log.Writer(), "[MISSION] ", log.LstdFlags),
	}
}

// IdentifyIntent summarizes the goal of a query in a few words. Used by the
// analyze endpoint; degrades to a generic label on model failure.
func (c *Coordinator) IdentifyIntent(ctx context.Context, userInput string) string {
	out, err := c.llm.Generate(ctx, "Identify the core intent of this market intelligence query in 3 words: "+userInput)
	if err != nil {
		c.logger.Printf("Intent identification failed: %v", err)
		return "General Intelligence Gathering"
	}
	return out
}

// Run executes one mission. conversationID may be empty, in which case a
// fresh one is assigned. emit, when non-nil, receives progress events for
// the streaming transport.
func (c *Coordinator) Run(ctx context.Context, userInput, conversationID string, emit func(Event)) MissionResult {
	started := time.Now()
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	c.logger.Printf("Mission %s started", conversationID)

	emit(Event{Stage: StageThinking, Message: "Generating execution plan..."})
	plan := c.planner.GeneratePlan(ctx, userInput)

	var trace []TraceEntry
	if len(plan) == 0 {
		trace = append(trace, TraceEntry{Tool: "planner", Status: "empty_plan"})
	}

	var pool intel.Pool
	for _, step := range plan {
		if !step.Tool.IsResearch() {
			continue
		}
		emit(Event{Stage: StageTool, Tool: string(step.Tool), Message: step.Thought})
		res := c.orch.Execute(ctx, step.Tool, step.Args, "")

		text := res.Text
		if len(text) > maxToolResultChars {
			c.logger.Printf("Capping tool result from %d to %d chars", len(text), maxToolResultChars)
			text = text[:maxToolResultChars] + "... [truncated]"
		}
		pool.Append(text)
		trace = append(trace, TraceEntry{Tool: string(step.Tool), Status: "Gathered"})
	}

	gathered := pool.String()
	c.logger.Printf("Intel pool collected: %d chars", len(gathered))

	overhead := c.llm.RequestOverhead(SynthesisPrompt(""))
	budget := intel.ComputeBudget(overhead)
	reduced := intel.ReduceToBudget(gathered, budget)
	c.recordReduction(len(gathered), len(reduced), budget)

	emit(Event{Stage: StageThinking, Message: "Synthesizing final report..."})
	report, status := c.synthesize(ctx, reduced)

	c.persist(ctx, conversationID, userInput, report, status)

	for _, step := range plan {
		if !step.Tool.IsAction() {
			continue
		}
		emit(Event{Stage: StageTool, Tool: string(step.Tool), Message: step.Thought})
		if step.Args == nil {
			step.Args = map[string]string{}
		}
		step.Args["content"] = report
		res := c.orch.Execute(ctx, step.Tool, step.Args, reduced)
		trace = append(trace, TraceEntry{Tool: string(step.Tool), Result: res.Text})
	}

	if c.metrics != nil {
		c.metrics.ObserveMission(status, time.Since(started))
	}
	c.logger.Printf("Mission %s complete", conversationID)

	result := MissionResult{
		Status:    "complete",
		MissionID: conversationID,
		Report:    report,
		Trace:     trace,
	}
	emit(Event{Stage: StageComplete, Report: report})
	return result
}

// synthesize turns the reduced pool into the final report. A model failure
// degrades to the failure sentinel rather than aborting the mission.
func (c *Coordinator) synthesize(ctx context.Context, reduced string) (report, status string) {
	out, err := c.llm.Generate(ctx, SynthesisPrompt(reduced))
	if err != nil {
		c.logger.Printf("Report synthesis failed: %v", err)
		if c.metrics != nil {
			c.metrics.LLMRequests.WithLabelValues("synthesis", StatusError).Inc()
		}
		return failureSentinel, store.MissionStatusFailed
	}
	if c.metrics != nil {
		c.metrics.LLMRequests.WithLabelValues("synthesis", StatusOK).Inc()
	}
	return out, store.MissionStatusCompleted
}

// persist writes the report to both memory layers. Both writes are
// best-effort; the mission result does not depend on them.
func (c *Coordinator) persist(ctx context.Context, conversationID, query, report, status string) {
	if c.memory != nil {
		if _, err := c.memory.Ingest(ctx, conversationID, report); err != nil {
			c.logger.Printf("Memory ingestion error: %v", err)
		}
	}
	if c.audit != nil {
		rec := &store.MissionLog{
			ConversationID: conversationID,
			Query:          query,
			Response:       report,
			Status:         status,
		}
		if err := c.audit.SaveMissionLog(ctx, rec); err != nil {
			c.logger.Printf("Audit log error: %v", err)
		}
	}
}

func (c *Coordinator) recordReduction(before, after, budget int) {
	if c.metrics == nil {
		return
	}
	switch {
	case before <= budget:
		c.metrics.IntelReductions.WithLabelValues("none").Inc()
	case before > budget*3/2:
		c.metrics.IntelReductions.WithLabelValues("summary").Inc()
	default:
		c.metrics.IntelReductions.WithLabelValues("truncate").Inc()
	}
	c.logger.Printf("Intel pool reduced: %d -> %d chars (budget %d)", before, after, budget)
}
