// Package zscore provides an MCP server exposing a z-score anomaly
// detection tool, a minimal stdio-reachable sibling to the Model
// Adapter's stat backends (spec §4.3) for clients that want a
// dependency-free anomaly check without fitting a full detector.
package zscore

import (
	"context"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with the zscore tool.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"zscore",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	tool := mcp.NewTool("zscore",
		mcp.WithDescription("Computes the z-score of each point in a series against the series' own mean and standard deviation"),
		mcp.WithArray("values",
			mcp.Required(),
			mcp.Description("Array of numeric samples"),
			mcp.Items(map[string]any{
				"type": "number",
			}),
		),
	)

	s.AddTool(tool, zscoreHandler)

	return s
}

// zscoreHandler handles the zscore tool call.
func zscoreHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	valuesArg, ok := args["values"]
	if !ok {
		return mcp.NewToolResultError("values argument is required"), nil
	}

	values, err := toFloat64Slice(valuesArg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid values: %v", err)), nil
	}
	if len(values) == 0 {
		return mcp.NewToolResultText("[]"), nil
	}

	scores := computeZScores(values)
	return mcp.NewToolResultText(formatFloats(scores)), nil
}

// computeZScores returns (x-mean)/stddev for each sample. A zero-variance
// series returns all zeros rather than dividing by zero.
func computeZScores(values []float64) []float64 {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	stddev := math.Sqrt(variance)

	scores := make([]float64, len(values))
	if stddev == 0 {
		return scores
	}
	for i, v := range values {
		scores[i] = (v - mean) / stddev
	}
	return scores
}

func toFloat64Slice(v any) ([]float64, error) {
	switch arr := v.(type) {
	case []any:
		result := make([]float64, len(arr))
		for i, elem := range arr {
			switch n := elem.(type) {
			case float64:
				result[i] = n
			case int:
				result[i] = float64(n)
			case int64:
				result[i] = float64(n)
			default:
				return nil, fmt.Errorf("element %d is not a number: %T", i, elem)
			}
		}
		return result, nil
	case []float64:
		return arr, nil
	case []int:
		result := make([]float64, len(arr))
		for i, n := range arr {
			result[i] = float64(n)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected array, got %T", v)
	}
}

func formatFloats(values []float64) string {
	out := "["
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%g", v)
	}
	out += "]"
	return out
}
