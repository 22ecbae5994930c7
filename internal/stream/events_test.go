package stream

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventWireNames(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"partial", newPartial("hel", 0.4, true), "partial_translation"},
		{"no features", newNoFeatures(), "no_features"},
		{"result", newResult("Hello.", 0.9, 120*time.Millisecond, 14), "translation_result"},
		{"error", newError("boom"), "error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var envelope struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(raw, &envelope); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if envelope.Type != tc.want {
				t.Errorf("type = %q, want %q", envelope.Type, tc.want)
			}
		})
	}
}

func TestPartialTranslationWireShape(t *testing.T) {
	t.Parallel()
	raw, err := json.Marshal(newPartial("thank", 0.55, true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"type", "text", "confidence", "features_detected"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing field %q in %s", key, raw)
		}
	}
}
