// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

const decisionSystemPrompt = `You are the supervisor of a trip-planning assistant.
Given the conversation and the current trip state, decide the next step.
Respond with a single JSON object, no prose:
  {"kind":"handoff","target":"<planner|flights|hotels|budget|booking>","args":{}}
  {"kind":"final","message":"<reply to the user>"}
  {"kind":"continue"}
Rules:
- Extract trip slots (planner) before searching flights or hotels.
- Only hand off to booking after the user has approved a bundle.
- Answer with "final" when nothing remains to delegate.`

// OpenAIPolicy asks a chat model for the next decision. The model is
// constrained to a JSON object and the reply is parsed into a Decision;
// a reply that does not parse is surfaced as an error so the executor
// can run its malformed-decision recovery.
type OpenAIPolicy struct {
	client *openai.Client
	model  string
}

// NewOpenAIPolicy reads OPENAI_API_KEY from the environment (falling
// back to the container secret path) and returns the model-backed
// decision policy.
func NewOpenAIPolicy(model string) (*OpenAIPolicy, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI decision policy", "model", model)
	return &OpenAIPolicy{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Decide sends the conversation plus a compact state digest to the
// model and parses the JSON decision.
func (p *OpenAIPolicy) Decide(ctx context.Context, view *datatypes.TripState) (*datatypes.Decision, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(view.Conversation)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: decisionSystemPrompt,
	})
	for _, m := range view.Conversation {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: "Current trip state: " + stateDigest(view),
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	var decision datatypes.Decision
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &decision); err != nil {
		return nil, fmt.Errorf("parse decision JSON: %w", err)
	}
	return &decision, nil
}

// stateDigest renders the parts of the state the model needs to route,
// without the full conversation it already has.
func stateDigest(view *datatypes.TripState) string {
	digest := map[string]any{
		"slots":        view.Slots,
		"has_flights":  view.HasFlights(),
		"has_lodging":  view.HasLodging(),
		"bundle_count": len(view.Bundles),
		"approval":     view.Approval,
		"booked":       view.Booking != nil,
		"turn_count":   view.TurnCount,
	}
	data, err := json.Marshal(digest)
	if err != nil {
		return "{}"
	}
	return string(data)
}
