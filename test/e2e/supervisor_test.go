// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"testing"
	"time"
)

const e2ePort = 12399

// startServer launches the supervisor and waits for /health.
func startServer(t *testing.T) *exec.Cmd {
	t.Helper()

	cmd := exec.Command(cliBinary, "serve", "--port", fmt.Sprint(e2ePort))
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start supervisor: %v", err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	base := fmt.Sprintf("http://127.0.0.1:%d", e2ePort)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return cmd
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("supervisor never became healthy")
	return nil
}

func postChat(t *testing.T, sessionID, message string) map[string]any {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"session_id": sessionID,
		"message":    message,
	})
	resp, err := http.Post(
		fmt.Sprintf("http://127.0.0.1:%d/v1/chat", e2ePort),
		"application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	return out
}

func TestSupervisor_ChatFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e in short mode")
	}
	startServer(t)

	// First contact creates a session and routes through the planner
	// pipeline with the heuristic backend.
	first := postChat(t, "", "Plan a trip to Paris from 2026-05-01 to 2026-05-08, budget 1200 EUR")
	sessionID, _ := first["session_id"].(string)
	if sessionID == "" {
		t.Fatal("no session id returned")
	}
	if reply, _ := first["reply"].(string); reply == "" {
		t.Error("empty reply")
	}

	// Follow-up reuses the session.
	second := postChat(t, sessionID, "How is my trip looking?")
	if got, _ := second["session_id"].(string); got != sessionID {
		t.Errorf("session id changed: %q", got)
	}

	// Session is inspectable.
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/v1/sessions/%s", e2ePort, sessionID))
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session status = %d", resp.StatusCode)
	}
	var sess map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess["exec_state"] != "END" {
		t.Errorf("exec_state = %v, want END", sess["exec_state"])
	}
}

func TestSupervisor_MetricsExposed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e in short mode")
	}
	startServer(t)

	postChat(t, "", "hello")

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", e2ePort))
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "tripmate_supervisor_turns_total") {
		t.Error("turn counter missing from /metrics")
	}
}

func TestSupervisor_VersionCommand(t *testing.T) {
	out, err := exec.Command(cliBinary, "version").CombinedOutput()
	if err != nil {
		t.Fatalf("version command: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "0.1.0") {
		t.Errorf("version output = %q", out)
	}
}
