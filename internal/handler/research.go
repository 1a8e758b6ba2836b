package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betswarm/internal/repository"
)

type ResearchHandler struct {
	Repo repository.Repository
}

func (h *ResearchHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/research", h.list)
}

func (h *ResearchHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable")
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListResearch(c.Request.Context(), limit, offset)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	Ok(c, items, nil)
}
