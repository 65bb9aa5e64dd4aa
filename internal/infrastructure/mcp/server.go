package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/infrastructure/parser"
)

const ToolAnalyzeEntry = "analyze_entry"

// Analyzer runs one entry document through the pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, doc parser.EntryDocument, opts domain.AnalyzeOptions) (domain.AnalysisReport, error)
}

// AnalyzeInput is the argument object of the analyze_entry tool.
type AnalyzeInput struct {
	EntryID      string   `json:"entry_id" jsonschema:"stable identifier of the entry"`
	Text         string   `json:"text" jsonschema:"entry content in the given format"`
	Kind         string   `json:"kind,omitempty" jsonschema:"work, volunteer, school_activity, project, personal_essay or supplemental_essay"`
	Title        string   `json:"title,omitempty"`
	Format       string   `json:"format,omitempty" jsonschema:"text, html or markdown; defaults to text"`
	Duration     string   `json:"duration,omitempty"`
	HoursPerWeek *float64 `json:"hours_per_week,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
	Depth        string   `json:"depth,omitempty" jsonschema:"quick, standard or comprehensive"`
	SkipCoaching bool     `json:"skip_coaching,omitempty" jsonschema:"skip workshop suggestions"`
}

// NewServer exposes analyze_entry backed by analyzer.
func NewServer(analyzer Analyzer, version string, log *slog.Logger) *mcp.Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	server := mcp.NewServer(&mcp.Implementation{Name: "narrativescorer", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAnalyzeEntry,
		Description: "Score a student activity or essay entry against the rubric and return the analysis report as JSON.",
	}, analyzeHandler(analyzer, log))

	return server
}

// Serve runs the server over stdio until ctx is done or the client hangs up.
func Serve(ctx context.Context, server *mcp.Server) error {
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func analyzeHandler(analyzer Analyzer, log *slog.Logger) mcp.ToolHandlerFor[AnalyzeInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, any, error) {
		doc := parser.EntryDocument{
			ID:           in.EntryID,
			Kind:         in.Kind,
			Title:        in.Title,
			Format:       in.Format,
			Text:         in.Text,
			Duration:     in.Duration,
			HoursPerWeek: in.HoursPerWeek,
			Achievements: in.Achievements,
		}
		opts := domain.AnalyzeOptions{Depth: domain.ParseDepth(in.Depth), SkipCoaching: in.SkipCoaching}

		report, err := analyzer.Analyze(ctx, doc, opts)
		if err != nil {
			log.Warn("analyze_entry failed", "entry_id", in.EntryID, "error", err)
			return nil, nil, err
		}

		body, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encode report: %w", err)
		}
		log.Info("analyze_entry done", "entry_id", in.EntryID, "run_id", report.RunID, "overall_index", report.OverallIndex)

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		}, nil, nil
	}
}
