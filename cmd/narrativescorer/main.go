package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"NarrativeScorer/internal/app"
	"NarrativeScorer/internal/config"
	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/infrastructure/mcp"
	"NarrativeScorer/internal/infrastructure/parser"
	"NarrativeScorer/internal/logging"
	"NarrativeScorer/internal/render"
	"NarrativeScorer/internal/usecase"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "narrativescorer",
		Short:         "Score student activity and essay entries against a rubric",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: $NARRATIVE_SCORER_CONFIG)")

	cmd.AddCommand(newAnalyzeCmd(opts), newServeCmd(opts), newVersionCmd())
	return cmd
}

func (o *rootOptions) load() (config.Config, string, error) {
	path := o.configPath
	if path == "" {
		return config.Load(), config.Path(), nil
	}
	cfg, err := config.LoadFile(path)
	return cfg, path, err
}

func (o *rootOptions) application(ctx context.Context) (*app.Application, string, *slog.Logger, error) {
	cfg, path, err := o.load()
	if err != nil {
		return nil, path, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Logging.Level)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, path, logger, err
	}
	return application, path, logger, nil
}

type analyzeOptions struct {
	entries      string
	file         string
	text         string
	id           string
	kind         string
	title        string
	format       string
	depth        string
	skipCoaching bool
	asJSON       bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one entry (--file or --text) or every entry of an entries file (--entries)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.Context(), root, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.entries, "entries", "", "YAML file listing entries")
	f.StringVar(&opts.file, "file", "", "file holding a single entry")
	f.StringVar(&opts.text, "text", "", "entry text")
	f.StringVar(&opts.id, "id", "", "entry id (default: file name or \"entry\")")
	f.StringVar(&opts.kind, "kind", string(domain.KindPersonalEssay), "entry kind")
	f.StringVar(&opts.title, "title", "", "entry title")
	f.StringVar(&opts.format, "format", "", "text, html or markdown (default: from file extension)")
	f.StringVar(&opts.depth, "depth", string(domain.DepthStandard), "quick, standard or comprehensive")
	f.BoolVar(&opts.skipCoaching, "skip-coaching", false, "skip workshop suggestions")
	f.BoolVar(&opts.asJSON, "json", false, "print reports as JSON")
	cmd.MarkFlagsMutuallyExclusive("entries", "file", "text")
	cmd.MarkFlagsOneRequired("entries", "file", "text")

	return cmd
}

func runAnalyze(ctx context.Context, root *rootOptions, opts *analyzeOptions, out io.Writer) error {
	application, _, _, err := root.application(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := context.WithTimeout(ctx, application.DefaultTimeout())
	defer cancel()

	analyzeOpts := domain.AnalyzeOptions{Depth: domain.ParseDepth(opts.depth), SkipCoaching: opts.skipCoaching}

	if opts.entries != "" {
		results, err := application.AnalyzeFile(ctx, opts.entries, analyzeOpts)
		if err != nil {
			return err
		}
		return printResults(out, application, results, opts.asJSON)
	}

	doc := parser.EntryDocument{
		ID:     opts.id,
		Kind:   opts.kind,
		Title:  opts.title,
		Format: opts.format,
		Text:   opts.text,
		File:   opts.file,
	}
	if doc.ID == "" {
		doc.ID = "entry"
		if opts.file != "" {
			doc.ID = strings.TrimSuffix(filepath.Base(opts.file), filepath.Ext(opts.file))
		}
	}

	report, err := application.Analyze(ctx, doc, analyzeOpts)
	results := []usecase.BatchResult{{EntryID: doc.ID, Report: report, Err: err}}
	if report.RunID == "" && err != nil {
		return err
	}
	return printResults(out, application, results, opts.asJSON)
}

func printResults(out io.Writer, application *app.Application, results []usecase.BatchResult, asJSON bool) error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("entry %s: %w", res.EntryID, res.Err))
		}
		if res.Report.RunID == "" {
			continue
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.Report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			continue
		}
		if _, err := fmt.Fprintln(out, render.Report(res.Report, application.Rubric())); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyze_entry tool over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			application, path, logger, err := root.application(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if watch && path != "" {
				go func() {
					if err := application.WatchConfig(ctx, path); err != nil {
						logger.Warn("config watch stopped", "error", err)
					}
				}()
			}

			logger.Info("serving mcp over stdio", "version", version)
			return mcp.Serve(ctx, mcp.NewServer(application, version, logger.With("component", "mcp")))
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the rubric when the config file changes")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
