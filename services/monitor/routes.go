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
	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/sentinel/services/monitor/telemetry"
)

// SetupRoutes mounts the monitoring API onto a router.
func SetupRoutes(router *gin.Engine, svc *Service) {
	router.GET("/health", HealthCheck)

	if handler := telemetry.MetricsHandler(); handler != nil {
		router.GET("/metrics", gin.WrapH(handler))
	}

	v1 := router.Group("/v1/monitor")
	{
		v1.GET("/status", GetStatus(svc))
		v1.GET("/records", GetRecords(svc))
		v1.GET("/patterns", GetPatterns(svc))
		v1.GET("/insights", GetInsights(svc))
		v1.GET("/rules", GetRules(svc))
		v1.GET("/history", GetHistory(svc))
		v1.GET("/audit", GetAudit(svc))
		v1.POST("/cycle", TriggerCycle(svc))
		v1.POST("/predict", Predict(svc))
		v1.GET("/stream", svc.hub.handleStream())

		proposals := v1.Group("/proposals")
		{
			proposals.GET("", GetProposals(svc))
			proposals.POST("/:id/approve", ApproveProposal(svc))
			proposals.POST("/:id/reject", RejectProposal(svc))
		}
	}
}

// Router builds a gin engine with the full API mounted. The command
// layer owns the http.Server around it.
func (s *Service) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	SetupRoutes(router, s)
	return router
}
