package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/analyst/internal/pipeline"
)

func TestRenderResult(t *testing.T) {
	tests := []struct {
		name    string
		data    pipeline.Result
		maxRows int
		want    string
	}{
		{"rows", pipeline.Rows{{"sum": 42}}, 10, `[{"sum":42}]`},
		{"empty rows", pipeline.Rows{}, 10, `[]`},
		{"nil rows", pipeline.Rows(nil), 10, `[]`},
		{"status", pipeline.Status{Message: "Query executed successfully."}, 10, `{"status":"Query executed successfully."}`},
		{"truncated", pipeline.Rows{{"n": 1}, {"n": 2}, {"n": 3}}, 2, `[{"n":1},{"n":2}] (first 2 of 3 rows)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderResult(tt.data, tt.maxRows)
			if err != nil {
				t.Fatalf("RenderResult failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderResult() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComposer_Compose(t *testing.T) {
	fc := &fakeCompleter{response: "42 units were sold in total."}
	c := NewComposer(fc, ComposerConfig{Temperature: 0.5})

	got, err := c.Compose(context.Background(), "total units sold", pipeline.Rows{{"sum": 42}})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if got != "42 units were sold in total." {
		t.Errorf("Compose() = %q", got)
	}

	req := fc.last()
	if req.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5", req.Temperature)
	}
	if !strings.Contains(req.Prompt, `[{"sum":42}]`) {
		t.Errorf("prompt should carry rendered data, got %q", req.Prompt)
	}
}

func TestComposer_CompleterError(t *testing.T) {
	boom := errors.New("overloaded")
	c := NewComposer(&fakeCompleter{err: boom}, ComposerConfig{})

	if _, err := c.Compose(context.Background(), "q", pipeline.Rows{}); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
