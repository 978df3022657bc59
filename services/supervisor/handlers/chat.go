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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/tripmate/services/supervisor"
)

var chatTracer = otel.Tracer("tripmate.supervisor.handlers")

type ChatRequest struct {
	// SessionID may be empty; a new session is created on first contact.
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

type ChatResponse struct {
	SessionID     string `json:"session_id"`
	Reply         string `json:"reply"`
	Failed        bool   `json:"failed"`
	FailureReason string `json:"failure_reason,omitempty"`
	TurnCount     int    `json:"turn_count"`
}

// HandleChat runs one conversational turn through the executor.
func HandleChat(exec *supervisor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = exec.StartSession().ID
		}

		result, err := exec.SubmitTurn(ctx, sessionID, req.Message)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			status := turnErrorStatus(err)
			slog.Error("SubmitTurn failed",
				"session_id", sessionID, "status", status, "error", err)
			c.JSON(status, gin.H{"error": err.Error(), "session_id": sessionID})
			return
		}

		c.JSON(http.StatusOK, ChatResponse{
			SessionID:     result.SessionID,
			Reply:         result.Reply,
			Failed:        result.Failed,
			FailureReason: result.FailureReason,
			TurnCount:     result.TurnCount,
		})
	}
}

// turnErrorStatus maps executor sentinels onto HTTP status codes.
func turnErrorStatus(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, supervisor.ErrSessionInProgress):
		return http.StatusConflict
	case errors.Is(err, supervisor.ErrSessionEnded):
		return http.StatusGone
	case errors.Is(err, supervisor.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, supervisor.ErrCanceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
