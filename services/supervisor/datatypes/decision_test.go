// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "testing"

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name     string
		decision *Decision
		wantErr  bool
	}{
		{
			name:     "nil decision",
			decision: nil,
			wantErr:  true,
		},
		{
			name:     "missing kind",
			decision: &Decision{},
			wantErr:  true,
		},
		{
			name:     "continue",
			decision: ContinueDecision(),
			wantErr:  false,
		},
		{
			name:     "handoff with target",
			decision: HandoffDecision("flights", map[string]any{"route": "DEL-CDG"}),
			wantErr:  false,
		},
		{
			name:     "handoff without target",
			decision: &Decision{Kind: DecisionHandoff},
			wantErr:  true,
		},
		{
			name:     "final with message",
			decision: FinalDecision("all set"),
			wantErr:  false,
		},
		{
			name:     "final without message",
			decision: &Decision{Kind: DecisionFinal},
			wantErr:  true,
		},
		{
			name:     "unrecognized kind still shaped",
			decision: &Decision{Kind: DecisionKind("ponder")},
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
