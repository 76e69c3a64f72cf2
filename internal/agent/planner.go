package agent

import (
	"context"
	"encoding/json"
	"log"
	"regexp"

	"github.com/marketintel/mia/internal/llm"
)

// planArrayPattern pulls the first top-level JSON array out of a completion.
// Models routinely wrap the array in prose, so preamble is tolerated.
var planArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// Planner turns a natural-language mission into an ordered tool plan.
type Planner struct {
	llm    llm.Client
	logger *log.Logger
}

func NewPlanner(client llm.Client) *Planner {
	return &Planner{
		llm:    client,
		logger: log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// GeneratePlan asks the model for a JSON plan and parses it. Any failure
// (model error, no array, invalid JSON) yields an empty plan: the mission
// proceeds and the report will state no data was found. There is no retry,
// since malformed plans tend to repeat rather than resolve.
func (p *Planner) GeneratePlan(ctx context.Context, mission string) []PlanStep {
	raw, err := p.llm.Generate(ctx, PlanPrompt(mission))
	if err != nil {
		p.logger.Printf("Plan generation failed: %v", err)
		return nil
	}

	match := planArrayPattern.FindString(raw)
	if match == "" {
		p.logger.Printf("No JSON plan array in model output")
		return nil
	}

	var plan []PlanStep
	if err := json.Unmarshal([]byte(match), &plan); err != nil {
		p.logger.Printf("Plan JSON parse error: %v", err)
		return nil
	}
	p.logger.Printf("Plan generated with %d steps", len(plan))
	return plan
}
