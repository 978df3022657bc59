// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/tripmate/services/supervisor"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateSession explicitly opens a session ahead of the first turn.
func CreateSession(exec *supervisor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := exec.StartSession()
		c.JSON(http.StatusCreated, gin.H{"session_id": sess.ID})
	}
}

// GetSession returns a session's state snapshot, execution node,
// history, and counters.
func GetSession(exec *supervisor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		sess, err := exec.GetSession(id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": sess.ID,
			"exec_state": sess.ExecState(),
			"state":      sess.Snapshot(),
			"history":    sess.History(),
			"metrics":    sess.Metrics(),
			"created_at": sess.CreatedAt,
		})
	}
}

// DeleteSession ends a session and drops its state.
func DeleteSession(exec *supervisor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		if err := exec.EndSession(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		slog.Info("Session deleted via API", "session_id", id)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": id})
	}
}

// ListSessions returns the ids of live sessions.
func ListSessions(exec *supervisor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": exec.Sessions()})
	}
}

type ApproveRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// Approve records booking approval for a session.
func Approve(exec *supervisor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ApproveRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := exec.Approve(req.SessionID); err != nil {
			status := turnErrorStatus(err)
			slog.Error("Approve failed", "session_id", req.SessionID, "error", err)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "approved", "session_id": req.SessionID})
	}
}
