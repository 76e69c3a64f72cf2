package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/marketintel/mia/internal/agent"
	"github.com/marketintel/mia/internal/memory"
	"github.com/marketintel/mia/internal/store"
)

// MissionRunner is what the HTTP layer needs from the coordinator.
type MissionRunner interface {
	Run(ctx context.Context, userInput, conversationID string, emit func(agent.Event)) agent.MissionResult
	IdentifyIntent(ctx context.Context, userInput string) string
}

// ReportStore is what the HTTP layer needs from persistence.
type ReportStore interface {
	ListReports(ctx context.Context, limit int) ([]store.MissionLog, error)
	MissionStats(ctx context.Context) (store.Stats, error)
}

// Retriever answers free-text queries against ingested reports.
type Retriever interface {
	Query(ctx context.Context, conversationID, query string) ([]memory.Hit, error)
}

type AgentHandler struct {
	Runner MissionRunner
	Store  ReportStore

	// Memory is nil when no embedding backend is configured.
	Memory Retriever

	// MissionTimeout bounds one full mission run.
	MissionTimeout time.Duration
}

type MissionRequest struct {
	UserInput      string `json:"user_input"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (h *AgentHandler) Register(g *echo.Group) {
	g.POST("/analyze", h.analyze)
	g.POST("/execute", h.execute)
	g.POST("/execute/stream", h.executeStream)
}

func (h *AgentHandler) bind(c echo.Context) (MissionRequest, error) {
	var req MissionRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserInput == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "user_input is required")
	}
	return req, nil
}

func (h *AgentHandler) missionContext(c echo.Context) (context.Context, context.CancelFunc) {
	timeout := h.MissionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return context.WithTimeout(c.Request().Context(), timeout)
}

// analyze identifies the mission's intent without triggering tool execution.
func (h *AgentHandler) analyze(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.missionContext(c)
	defer cancel()
	intent := h.Runner.IdentifyIntent(ctx, req.UserInput)
	return c.JSON(http.StatusOK, map[string]string{"intent": intent})
}

// execute runs the full mission loop and returns the synchronous result.
func (h *AgentHandler) execute(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.missionContext(c)
	defer cancel()
	result := h.Runner.Run(ctx, req.UserInput, req.ConversationID, nil)
	return c.JSON(http.StatusOK, result)
}

// executeStream runs the mission and streams NDJSON progress events, one
// JSON object per line.
func (h *AgentHandler) executeStream(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	flush := func() {
		if f, ok := resp.Writer.(http.Flusher); ok {
			f.Flush()
		}
	}

	ctx, cancel := h.missionContext(c)
	defer cancel()
	h.Runner.Run(ctx, req.UserInput, req.ConversationID, func(ev agent.Event) {
		if err := enc.Encode(ev); err != nil {
			return
		}
		flush()
	})
	return nil
}

func (h *AgentHandler) RegisterReports(g *echo.Group) {
	g.GET("/reports", h.reports)
	g.GET("/stats", h.stats)
	g.GET("/memory/search", h.memorySearch)
}

type reportResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	Response       string `json:"response"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

func (h *AgentHandler) reports(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	logs, err := h.Store.ListReports(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]reportResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, reportResponse{
			ID:             l.ID,
			ConversationID: l.ConversationID,
			Query:          l.Query,
			Response:       l.Response,
			Status:         l.Status,
			CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, out)
}

type memoryHit struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// memorySearch retrieves report chunks relevant to a free-text query within
// one conversation.
func (h *AgentHandler) memorySearch(c echo.Context) error {
	if h.Memory == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval memory is not configured")
	}
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	conversationID := c.QueryParam("conversation_id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	hits, err := h.Memory.Query(c.Request().Context(), conversationID, query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]memoryHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, memoryHit{ID: hit.ID, Content: hit.Content, Score: hit.Score, Rank: hit.Rank})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AgentHandler) stats(c echo.Context) error {
	st, err := h.Store.MissionStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{
		"total_missions":     st.TotalMissions,
		"completed_missions": st.Completed,
		"failed_missions":    st.Failed,
		"conversations":      st.Conversations,
	})
}
