// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/tripmate/services/supervisor"
	"github.com/AleutianAI/tripmate/services/supervisor/handlers"
	"github.com/AleutianAI/tripmate/services/supervisor/middleware"
)

// SetupRoutes wires the supervisor HTTP surface onto router.
func SetupRoutes(router *gin.Engine, exec *supervisor.Executor, limiter *middleware.RateLimiter,
	registry *prometheus.Registry) {

	router.GET("/health", handlers.HealthCheck)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	if limiter != nil {
		v1.Use(limiter.Middleware())
	}
	{
		v1.POST("/chat", handlers.HandleChat(exec))
		v1.POST("/approve", handlers.Approve(exec))
		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.CreateSession(exec))
			sessions.GET("", handlers.ListSessions(exec))
			sessions.GET("/:sessionId", handlers.GetSession(exec))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(exec))
		}
	}
}
