package delivery

import (
	"net/http"

	"perfhub/internal/domain"

	"github.com/gin-gonic/gin"
)

type askRequest struct {
	Question string            `json:"question" binding:"required"`
	History  []domain.ChatTurn `json:"history"`
	Scope    string            `json:"scope"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Preset   string            `json:"preset"`
}

type marketRequest struct {
	Niche string `json:"niche"`
}

// AskInsight answers a question about the consolidated data
func (h *HTTPHandlers) AskInsight(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid payload", err)
		return
	}

	rng, err := h.resolveRange(req.Preset, req.From, req.To)
	if err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}

	answer, err := h.services.Insights.Ask(c.Request.Context(), req.Question, req.Scope, rng, req.History)
	if err != nil {
		h.respondError(c, err, "Failed to answer question")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       answer,
		"request_id": c.GetString("request_id"),
	})
}

// MarketInsights researches current search-market trends for a niche
func (h *HTTPHandlers) MarketInsights(c *gin.Context) {
	var req marketRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "Invalid payload", err)
			return
		}
	}

	insight, err := h.services.Insights.MarketInsights(c.Request.Context(), req.Niche)
	if err != nil {
		h.respondError(c, err, "Failed to research market")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       insight,
		"request_id": c.GetString("request_id"),
	})
}
