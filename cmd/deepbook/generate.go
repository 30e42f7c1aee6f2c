package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vampirenirmal/deepbook/internal/agent"
	"github.com/vampirenirmal/deepbook/internal/config"
	"github.com/vampirenirmal/deepbook/internal/core"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
	"github.com/vampirenirmal/deepbook/internal/prompt"
	"github.com/vampirenirmal/deepbook/internal/render"
	"github.com/vampirenirmal/deepbook/internal/storage"
)

const metricsFile = "metrics.prom"

type generateOptions struct {
	*rootOptions
	prompt    string
	outputDir string
	resume    string
	noImages  bool
	mock      bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a book from a seed prompt",
		Example: `  deepbook generate -p "A shy turtle learns to be brave"
  deepbook generate --resume output/sessions/<id>/document.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "seed prompt describing the book")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for session output (overrides config)")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "continue from a saved document.json")
	cmd.Flags().BoolVar(&opts.noImages, "no-images", false, "skip character illustrations")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "use canned responses instead of the API")
	cmd.MarkFlagsMutuallyExclusive("prompt", "resume")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := config.Load(opts.configPath, func(c *config.Config) {
		if opts.mock {
			c.AI.Provider = config.ProviderMock
		}
		if opts.outputDir != "" {
			c.Paths.OutputDir = opts.outputDir
		}
	})
	if err != nil {
		return err
	}

	doc, err := loadDocument(opts)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	client, images := newClients(cfg, agent.NewMetrics(registry), logger)

	templates := prompt.NewCache(0)
	prompts, err := templates.LoadSet(prompt.Overrides{
		Field:   cfg.Paths.Prompts.Field,
		Chapter: cfg.Paths.Prompts.Chapter,
		Image:   cfg.Paths.Prompts.Image,
	})
	if err != nil {
		return err
	}

	pipelineOpts := []core.Option{
		core.WithPrompts(prompts),
		core.WithChapterConcurrency(cfg.Limits.MaxConcurrentChapters),
		core.WithImageConcurrency(cfg.Limits.MaxConcurrentImages),
		core.WithLogger(logger),
	}
	if cfg.Limits.StageRetries > 0 {
		policy := core.DefaultRetryPolicy
		policy.MaxRetries = cfg.Limits.StageRetries
		pipelineOpts = append(pipelineOpts, core.WithStageRetry(policy))
	}
	if opts.noImages {
		pipelineOpts = append(pipelineOpts, core.WithoutImages())
	}
	pipeline := core.NewPipeline(client, images, pipelineOpts...)

	naming, err := storage.ParseSessionNaming(cfg.Paths.SessionNaming)
	if err != nil {
		return err
	}
	store := storage.NewFileSystem(cfg.Paths.OutputDir)
	sessionID := uuid.New().String()
	started := time.Now()
	dir := storage.SessionPath(sessionID, doc.Prompt(), naming, started)

	info := storage.SessionInfo{
		SessionID:   sessionID,
		SeedPrompt:  doc.Prompt(),
		Model:       cfg.AI.Model,
		ImageModel:  cfg.AI.ImageModel,
		StartedAt:   started,
		ResumedFrom: opts.resume,
	}
	if err := store.Save(ctx, filepath.Join(dir, "session.md"), info.Markdown()); err != nil {
		return fmt.Errorf("saving session metadata: %w", err)
	}

	logger.Info("generating book",
		"session", sessionID,
		"provider", cfg.AI.Provider,
		"output", filepath.Join(store.BaseDir(), dir),
		"state", doc.State().String(),
		"prompt_overrides", templates.Len())

	renderer := render.Multi{
		render.NewSnapshot(store, dir, logger),
		render.NewMarkdown(store, dir, logger),
		render.NewLog(logger),
	}
	result, runErr := pipeline.Run(ctx, doc, renderer)

	metricsPath := filepath.Join(store.BaseDir(), dir, metricsFile)
	if err := prometheus.WriteToTextfile(metricsPath, registry); err != nil {
		logger.Warn("writing metrics failed", "file", metricsPath, "error", err)
	}

	out := cmd.OutOrStdout()
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintf(out, "Interrupted. Resume with: deepbook generate --resume %s\n",
				filepath.Join(store.BaseDir(), dir, render.DocumentFile))
		}
		return runErr
	}

	fmt.Fprintf(out, "Book written to %s\n", filepath.Join(store.BaseDir(), dir, render.BookFile))
	if !result.Complete {
		fmt.Fprintln(out, "Illustrations were skipped.")
	}
	return nil
}

func loadDocument(opts *generateOptions) (*book.Document, error) {
	if opts.resume != "" {
		data, err := os.ReadFile(opts.resume)
		if err != nil {
			return nil, fmt.Errorf("reading resume file: %w", err)
		}
		return book.LoadDocument(data)
	}

	if opts.prompt == "" {
		return nil, errors.New("a --prompt or --resume is required")
	}
	return book.NewDocument(opts.prompt), nil
}

func newClients(cfg *config.Config, metrics *agent.Metrics, logger *slog.Logger) (agent.AIClient, agent.ImageClient) {
	if cfg.AI.Provider == config.ProviderMock {
		mock := agent.NewMockClient()
		return mock, mock
	}

	client := agent.NewClient(cfg.AI.APIKey,
		agent.WithAPIConfig(cfg.AI.BaseURL, cfg.AI.Model),
		agent.WithImageModel(cfg.AI.ImageModel),
		agent.WithSampling(cfg.AI.Temperature, cfg.AI.MaxTokens),
		agent.WithTimeout(cfg.Limits.CallTimeout),
		agent.WithImageTimeout(cfg.Limits.ImageTimeout),
		agent.WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
		agent.WithLogger(logger),
		agent.WithMetrics(metrics),
	)
	return client, client
}
