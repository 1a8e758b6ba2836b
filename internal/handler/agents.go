package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"betswarm/internal/config"
	"betswarm/internal/ledger"
	"betswarm/internal/repository"
)

// AgentHandler exposes the read-only ops view of the swarm: who the agents
// are, how they are doing, and what they have wagered.
type AgentHandler struct {
	Agents []config.AgentProfile
	Repo   repository.Repository
}

func (h *AgentHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/agents")
	g.GET("", h.list)
	g.GET("/:name/wagers", h.wagers)
}

type agentView struct {
	Name     string       `json:"name"`
	Avatar   string       `json:"avatar"`
	RiskTier string       `json:"risk_tier"`
	Research bool         `json:"research"`
	Stats    ledger.Stats `json:"stats"`
}

func (h *AgentHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable")
		return
	}
	out := make([]agentView, 0, len(h.Agents))
	for _, p := range h.Agents {
		led := &ledger.Ledger{Agent: p.Name, Repo: h.Repo}
		stats, err := led.Stats(c.Request.Context())
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error())
			return
		}
		out = append(out, agentView{
			Name:     p.Name,
			Avatar:   p.Avatar,
			RiskTier: p.RiskTier,
			Research: p.Research,
			Stats:    stats,
		})
	}
	Ok(c, out, nil)
}

func (h *AgentHandler) wagers(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable")
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if !h.knownAgent(name) {
		Error(c, http.StatusNotFound, "unknown agent")
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	var status *string
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status = &v
	}
	params := repository.ListWagersParams{
		Agent:  name,
		Status: status,
		Limit:  limit,
		Offset: offset,
	}
	if col, ok := wagerOrderColumns[strings.TrimSpace(c.Query("order"))]; ok {
		params.OrderBy = col
		if v := strings.TrimSpace(c.Query("asc")); v != "" {
			asc := v == "true" || v == "1"
			params.Asc = &asc
		}
	}
	items, err := h.Repo.ListWagers(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	total, err := h.Repo.CountWagers(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// wagerOrderColumns whitelists sortable columns. The order key reaches the
// SQL ORDER BY clause verbatim, so only mapped values pass through.
var wagerOrderColumns = map[string]string{
	"created_at":  "created_at",
	"resolved_at": "resolved_at",
	"amount":      "amount",
	"pnl":         "pnl",
	"status":      "status",
}

func (h *AgentHandler) knownAgent(name string) bool {
	for _, p := range h.Agents {
		if p.Name == name {
			return true
		}
	}
	return false
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
