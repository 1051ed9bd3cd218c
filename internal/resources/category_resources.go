package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gokturkhatay/smartinbox/internal/classify"
	"github.com/gokturkhatay/smartinbox/internal/server"
)

// RegisterCategoryResources registers the category taxonomy resource.
// Clients read it to render category chips and to explain how raw
// similarity scores turn into the confidence values the tools report.
func RegisterCategoryResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	categoriesResource := mcp.NewResource(
		"smartinbox://categories",
		"Inbox Categories",
		mcp.WithResourceDescription("The category taxonomy with display metadata and the active confidence calibration"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(categoriesResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCategories(ctx, request, sc)
	})

	return nil
}

// handleCategories returns the closed category set with per-category metadata
func handleCategories(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	all := classify.AllCategories()
	categories := make([]map[string]interface{}, 0, len(all))
	for _, c := range all {
		categories = append(categories, map[string]interface{}{
			"name":           c.String(),
			"description":    c.Description(),
			"color":          c.Color(),
			"scored":         c.Scored(),
			"exemplar_count": len(c.Exemplars()),
		})
	}

	// The calibration and model identity come from the engine when one is
	// configured; otherwise report the defaults
	cal := classify.DefaultCalibration()
	ready := false
	modelVersion := ""
	if engine := sc.Engine(); engine != nil {
		cal = engine.Calibration()
		ready = engine.Ready()
		modelVersion = engine.ModelVersion()
	}

	data := map[string]interface{}{
		"categories": categories,
		"calibration": map[string]interface{}{
			"similarity_scale":    cal.SimilarityScale,
			"confidence_ceiling":  cal.ConfidenceCeiling,
			"fallback_threshold":  cal.FallbackThreshold,
			"fallback_confidence": cal.FallbackConfidence,
			"label_threshold":     cal.LabelThreshold,
		},
		"engine_ready":  ready,
		"model_version": modelVersion,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal category data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
