package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/infrastructure/parser"
)

type stubAnalyzer struct {
	gotDoc  parser.EntryDocument
	gotOpts domain.AnalyzeOptions
	err     error
}

func (s *stubAnalyzer) Analyze(_ context.Context, doc parser.EntryDocument, opts domain.AnalyzeOptions) (domain.AnalysisReport, error) {
	s.gotDoc = doc
	s.gotOpts = opts
	if s.err != nil {
		return domain.AnalysisReport{}, s.err
	}
	return domain.AnalysisReport{RunID: "run-1", EntryID: doc.ID, Status: domain.RunDone, OverallIndex: 72.5}, nil
}

func connect(t *testing.T, analyzer Analyzer) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	server := NewServer(analyzer, "test", nil)
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestAnalyzeEntryTool(t *testing.T) {
	analyzer := &stubAnalyzer{}
	session := connect(t, analyzer)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: ToolAnalyzeEntry,
		Arguments: map[string]any{
			"entry_id":      "food-drive",
			"text":          "<p>I organized a food drive.</p>",
			"format":        "html",
			"kind":          "volunteer",
			"depth":         "quick",
			"skip_coaching": true,
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}

	if analyzer.gotDoc.ID != "food-drive" || analyzer.gotDoc.Format != "html" || analyzer.gotDoc.Kind != "volunteer" {
		t.Fatalf("unexpected document: %+v", analyzer.gotDoc)
	}
	if analyzer.gotOpts.Depth != domain.DepthQuick || !analyzer.gotOpts.SkipCoaching {
		t.Fatalf("unexpected options: %+v", analyzer.gotOpts)
	}

	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var report domain.AnalysisReport
	if err := json.Unmarshal([]byte(text.Text), &report); err != nil {
		t.Fatalf("content is not a report: %v", err)
	}
	if report.RunID != "run-1" || report.OverallIndex != 72.5 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestAnalyzeEntryToolError(t *testing.T) {
	session := connect(t, &stubAnalyzer{err: errors.New("model service unavailable")})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolAnalyzeEntry,
		Arguments: map[string]any{"entry_id": "e", "text": "hello"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error result")
	}
}

func TestAnalyzeEntryToolListed(t *testing.T) {
	session := connect(t, &stubAnalyzer{})

	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools.Tools) != 1 || tools.Tools[0].Name != ToolAnalyzeEntry {
		t.Fatalf("unexpected tools: %+v", tools.Tools)
	}
}
