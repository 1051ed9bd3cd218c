package resources

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gokturkhatay/smartinbox/internal/server"
)

func TestHandleCategories(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	defer sc.Shutdown()

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "smartinbox://categories"

	contents, err := handleCategories(context.Background(), req, sc)
	if err != nil {
		t.Fatalf("handleCategories() error = %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("handleCategories() returned %d contents, want 1", len(contents))
	}

	text, ok := contents[0].(*mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T, want *mcp.TextResourceContents", contents[0])
	}
	if text.URI != "smartinbox://categories" {
		t.Errorf("URI = %s, want smartinbox://categories", text.URI)
	}

	var payload struct {
		Categories []struct {
			Name          string `json:"name"`
			Description   string `json:"description"`
			Color         string `json:"color"`
			Scored        bool   `json:"scored"`
			ExemplarCount int    `json:"exemplar_count"`
		} `json:"categories"`
		Calibration  map[string]float64 `json:"calibration"`
		EngineReady  bool               `json:"engine_ready"`
		ModelVersion string             `json:"model_version"`
	}
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal resource payload: %v", err)
	}

	if len(payload.Categories) != 8 {
		t.Fatalf("got %d categories, want 8", len(payload.Categories))
	}

	// Primary is last in canonical order, unscored, and has no exemplars
	last := payload.Categories[len(payload.Categories)-1]
	if last.Name != "primary" {
		t.Errorf("last category = %s, want primary", last.Name)
	}
	if last.Scored {
		t.Error("primary should not be scored")
	}
	if last.ExemplarCount != 0 {
		t.Errorf("primary exemplar_count = %d, want 0", last.ExemplarCount)
	}

	// Scored categories carry exemplars and display metadata
	for _, c := range payload.Categories[:len(payload.Categories)-1] {
		if !c.Scored {
			t.Errorf("category %s should be scored", c.Name)
		}
		if c.ExemplarCount == 0 {
			t.Errorf("category %s should have exemplars", c.Name)
		}
		if c.Color == "" || c.Description == "" {
			t.Errorf("category %s is missing display metadata", c.Name)
		}
	}

	// Without an engine the default calibration is reported
	if got := payload.Calibration["similarity_scale"]; got != 150 {
		t.Errorf("similarity_scale = %v, want 150", got)
	}
	if payload.EngineReady {
		t.Error("engine_ready should be false without an engine")
	}
}
