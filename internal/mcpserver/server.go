// Package mcpserver exposes the discovery surface to an agent host as
// an MCP tool server over stdio. Search and metadata reads keep
// working off the local cache even when the most recent sync failed:
// stale-but-available beats unavailable.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/skillsync/skillsync/internal/embedding"
	"github.com/skillsync/skillsync/internal/model"
	"github.com/skillsync/skillsync/internal/store"
	"github.com/skillsync/skillsync/internal/syncer"
	"github.com/skillsync/skillsync/internal/vectorstore"
)

// Version is stamped into the MCP handshake.
const Version = "0.3.0"

// Deps are the collaborators the tool handlers need.
type Deps struct {
	Skills   *store.SkillRepository
	Config   *store.SyncConfigRepository
	History  *store.SyncHistoryRepository
	Vectors  *vectorstore.Store
	Embedder embedding.Embedder
	Service  *syncer.Service
}

// New builds the MCP server with the skillsync tool set.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer("skillsync", Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("find_skills",
		mcp.WithDescription("Find skills semantically similar to a natural-language query."),
		mcp.WithString("query", mcp.Required(),
			mcp.Description("What the skill should be able to do")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 5)")),
	), deps.findSkills)

	s.AddTool(mcp.NewTool("get_skill",
		mcp.WithDescription("Fetch cached metadata for one skill by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Skill id")),
	), deps.getSkill)

	s.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Report last sync time, whether a sync is running, and recent history."),
	), deps.syncStatus)

	s.AddTool(mcp.NewTool("trigger_sync",
		mcp.WithDescription("Run a registry sync now and return the result."),
	), deps.triggerSync)

	return s
}

// ServeStdio blocks serving the agent host on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type skillHit struct {
	model.Skill
	Score float64 `json:"score"`
}

func (d Deps) findSkills(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	if d.Embedder == nil {
		return mcp.NewToolResultError("no embedding provider configured; set SKILLSYNC_EMBED_PROVIDER"), nil
	}

	vec, err := d.Embedder.Embed(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embed query: %v", err)), nil
	}

	hits, err := d.Vectors.FindSimilar(vec, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := make([]skillHit, 0, len(hits))
	for _, h := range hits {
		skill, err := d.Skills.Get(ctx, h.SkillID)
		if err != nil || skill == nil {
			continue
		}
		results = append(results, skillHit{Skill: *skill, Score: h.Score})
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (d Deps) getSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	skill, err := d.Skills.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if skill == nil {
		return mcp.NewToolResultError(fmt.Sprintf("skill not found: %s", id)), nil
	}

	b, _ := json.MarshalIndent(skill, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

type syncStatusPayload struct {
	LastSyncAt    *time.Time        `json:"last_sync_at,omitempty"`
	Enabled       bool              `json:"enabled"`
	Frequency     string            `json:"frequency"`
	IsRunning     bool              `json:"is_running"`
	RecentHistory []model.SyncRun   `json:"recent_history,omitempty"`
	LastResult    *model.SyncResult `json:"last_result,omitempty"`
}

func (d Deps) syncStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := d.Config.GetConfig(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	history, err := d.History.ListRecent(ctx, 5)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st := d.Service.State()
	payload := syncStatusPayload{
		LastSyncAt:    cfg.LastSyncAt,
		Enabled:       cfg.Enabled,
		Frequency:     cfg.Frequency,
		IsRunning:     st.IsRunning,
		RecentHistory: history,
		LastResult:    st.LastResult,
	}

	b, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (d Deps) triggerSync(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := d.Service.ManualSync(ctx)
	if errors.Is(err, syncer.ErrSyncInProgress) {
		return mcp.NewToolResultError("a sync is already in progress"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}
