// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitor

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/sentinel/pkg/extensions"
	"github.com/AleutianAI/sentinel/services/monitor/adaptation"
	"github.com/AleutianAI/sentinel/services/monitor/logstore"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStatus returns the engine status snapshot.
func GetStatus(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Status())
	}
}

// GetRecords queries execution records by domain and time range.
//
// Query parameters: domain, from (RFC3339), to (RFC3339), limit.
func GetRecords(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := logstore.Query{Domain: rules.Domain(c.Query("domain"))}

		if raw := c.Query("from"); raw != "" {
			from, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
				return
			}
			q.From = from
		}
		if raw := c.Query("to"); raw != "" {
			to, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
				return
			}
			q.To = to
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			q.Limit = limit
		}

		records, err := svc.Orchestrator().Records(c.Request.Context(), q)
		if err != nil {
			slog.Error("record query failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
	}
}

// GetPatterns returns the most recent mining pass's patterns.
func GetPatterns(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		patterns := svc.Orchestrator().Patterns()
		c.JSON(http.StatusOK, gin.H{"patterns": patterns, "count": len(patterns)})
	}
}

// GetInsights returns the most recent mining pass's insights.
func GetInsights(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		insights := svc.Orchestrator().Insights()
		c.JSON(http.StatusOK, gin.H{"insights": insights, "count": len(insights)})
	}
}

// GetProposals returns the pending adaptation proposals.
func GetProposals(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		proposals := svc.Orchestrator().Proposals()
		c.JSON(http.StatusOK, gin.H{"proposals": proposals, "count": len(proposals)})
	}
}

// requestActor identifies who is acting, for the audit trail. The API
// carries no authentication; the header is a courtesy for multi-operator
// deployments behind a proxy that sets it.
func requestActor(c *gin.Context) string {
	if actor := c.GetHeader("X-Sentinel-Actor"); actor != "" {
		return actor
	}
	return "anonymous"
}

func auditGovernance(c *gin.Context, svc *Service, eventType, id, outcome string, metadata map[string]any) {
	err := svc.Audit().Log(c.Request.Context(), extensions.AuditEvent{
		EventType:  eventType,
		Actor:      requestActor(c),
		ResourceID: id,
		Outcome:    outcome,
		Metadata:   metadata,
	})
	if err != nil {
		slog.Warn("audit log failed", "event", eventType, "error", err)
	}
}

// ApproveProposal is the approval gate endpoint. Rules change here and
// nowhere else, so every outcome lands in the audit trail.
func ApproveProposal(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		applied, err := svc.Orchestrator().ApplyProposal(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, ErrUnknownProposal) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown proposal"})
				return
			}
			slog.Error("proposal application failed", "id", id, "error", err)
			auditGovernance(c, svc, "proposal.approved", id, "failure",
				map[string]any{"error": err.Error()})
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		auditGovernance(c, svc, "proposal.approved", id, "success",
			map[string]any{"rules_changed": applied})
		c.JSON(http.StatusOK, gin.H{"status": "applied", "rules_changed": applied})
	}
}

// RejectProposal discards a pending proposal.
func RejectProposal(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := svc.Orchestrator().RejectProposal(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown proposal"})
			return
		}
		auditGovernance(c, svc, "proposal.rejected", id, "success", nil)
		c.JSON(http.StatusOK, gin.H{"status": "rejected"})
	}
}

// GetAudit queries the governance audit trail.
//
// Query parameters: event_type, actor, limit.
func GetAudit(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := extensions.AuditFilter{
			EventType: c.Query("event_type"),
			Actor:     c.Query("actor"),
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			filter.Limit = limit
		}

		events, err := svc.Audit().Query(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
	}
}

// PredictRequest is the body for the prediction endpoint.
type PredictRequest struct {
	Family   string    `json:"family" binding:"required"`
	Features []float64 `json:"features" binding:"required"`
}

// Predict scores a feature vector against a committed model. An
// untrained family reports available=false with HTTP 200.
func Predict(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PredictRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		prediction := svc.Orchestrator().Predict(adaptation.Family(req.Family), req.Features)
		c.JSON(http.StatusOK, prediction)
	}
}

// GetHistory returns retained cycle outputs, oldest first.
func GetHistory(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		outputs := svc.History()
		c.JSON(http.StatusOK, gin.H{"cycles": outputs, "count": len(outputs)})
	}
}

// TriggerCycle runs one cycle outside the loop cadence.
func TriggerCycle(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svc.RunCycleNow(c.Request.Context())
		if err != nil {
			slog.Error("manual cycle failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// GetRules lists the current rule set, optionally filtered by domain.
func GetRules(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := svc.Rules()
		if domain := rules.Domain(c.Query("domain")); domain != "" {
			c.JSON(http.StatusOK, gin.H{
				"rules":   store.Rules(domain),
				"version": store.Version(domain),
			})
			return
		}
		all := store.AllRules()
		c.JSON(http.StatusOK, gin.H{"rules": all, "count": len(all)})
	}
}
