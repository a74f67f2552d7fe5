package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raglinehq/ragline/internal/answer"
	"github.com/raglinehq/ragline/internal/bench"
	"github.com/raglinehq/ragline/internal/chunk"
	"github.com/raglinehq/ragline/internal/config"
	"github.com/raglinehq/ragline/internal/embed"
	"github.com/raglinehq/ragline/internal/ingest"
	"github.com/raglinehq/ragline/internal/llm"
	"github.com/raglinehq/ragline/internal/llmutil"
	"github.com/raglinehq/ragline/internal/observability"
	"github.com/raglinehq/ragline/internal/retrieve"
	"github.com/raglinehq/ragline/internal/secrets"
	"github.com/raglinehq/ragline/internal/server"
	"github.com/raglinehq/ragline/internal/store"
	"github.com/raglinehq/ragline/internal/store/memory"
	"github.com/raglinehq/ragline/internal/store/postgres"
	"github.com/raglinehq/ragline/internal/store/qdrant"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragline",
		Short: "Retrieval-augmented question answering over a vector store",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (optional)")

	var ingestDocID string
	ingestCmd := &cobra.Command{
		Use:   "ingest <pdf-path>",
		Short: "Extract, chunk, embed and store a PDF document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), configPath, args[0], ingestDocID)
		},
	}
	ingestCmd.Flags().StringVar(&ingestDocID, "doc-id", "", "Document identifier (default: normalized filename)")

	var askK int
	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question grounded in the ingested corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), configPath, strings.Join(args, " "), askK)
		},
	}
	askCmd.Flags().IntVar(&askK, "k", 0, "Number of context chunks (default from config)")

	var serveAddr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the /ask HTTP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, serveAddr)
		},
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")

	var (
		benchK       int
		benchQueries []string
		benchModes   []string
		benchRandom  int
		benchDim     int
		benchSeed    int64
	)
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare approximate search modes against the exact baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), configPath, bench.Options{
				Queries:       benchQueries,
				K:             benchK,
				Modes:         benchModes,
				RandomQueries: benchRandom,
				RandomDim:     benchDim,
				Seed:          benchSeed,
			})
		},
	}
	benchCmd.Flags().IntVar(&benchK, "k", 8, "Result set size per query")
	benchCmd.Flags().StringSliceVar(&benchQueries, "queries", nil, "Query texts (comma separated)")
	benchCmd.Flags().StringSliceVar(&benchModes, "modes", []string{"ivf8", "hnsw64"}, "Candidate modes, e.g. ivf8,hnsw64")
	benchCmd.Flags().IntVar(&benchRandom, "random", 0, "Use N random query vectors instead of --queries")
	benchCmd.Flags().IntVar(&benchDim, "dim", 0, "Random vector dimension (default: store dimension)")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 0, "Random seed (0 seeds from the clock)")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-10s %s\n", name, url)
			}
			fmt.Println("  custom     (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in ragline.yaml or via environment:")
			fmt.Println("  RAGLINE_LLM_PROVIDER=groq")
			fmt.Println("  RAGLINE_LLM_API_KEY=gsk_...")
			fmt.Println("  RAGLINE_LLM_MODEL=llama-3.3-70b-versatile")
		},
	}

	rootCmd.AddCommand(ingestCmd, askCmd, serveCmd, benchCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		// Ingestion failure kinds get distinct exit codes for scripting.
		switch {
		case errors.Is(err, os.ErrNotExist):
			os.Exit(2)
		case errors.Is(err, ingest.ErrNoText):
			os.Exit(3)
		default:
			os.Exit(1)
		}
	}
}

// app bundles the wired pipeline for one command invocation.
type app struct {
	cfg      *config.Config
	provider llm.Provider
	batcher  *embed.Batcher
	store    store.Store
	log      *slog.Logger
	tracing  *observability.TracerProvider
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	tracing, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "ragline",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	// Credentials omitted from the config file resolve through the
	// secrets manager (environment by default).
	sec, err := secrets.NewManager(nil)
	if err != nil {
		return nil, err
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = sec.GetOrDefault(ctx, secrets.KeyLLMAPIKey, "")
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = sec.GetOrDefault(ctx, secrets.KeyStoreDSN, "")
	}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	st, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		provider: provider,
		batcher:  embed.NewBatcher(provider, cfg.LLM.BatchSize),
		store:    st,
		log:      log,
		tracing:  tracing,
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		a.log.Error("close store", "error", err)
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.log.Error("shutdown tracing", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)

	provider, err := factory.Create(llm.ProviderConfig{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		EmbedModel: cfg.EmbedModel,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM > 0 {
		provider = llm.WithRateLimit(provider, &llm.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimitRPM,
		})
	}
	return provider, nil
}

func buildStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("postgres backend needs store.dsn (RAGLINE_STORE_DSN)")
		}
		return postgres.New(ctx, postgres.Config{
			DSN:          cfg.DSN,
			Dimension:    cfg.Dimension,
			Metric:       store.Metric(cfg.Metric),
			EnsureSchema: cfg.EnsureSchema,
		})
	case "qdrant":
		return qdrant.New(ctx, qdrant.Config{
			Host:             cfg.Host,
			Port:             cfg.Port,
			Collection:       cfg.Collection,
			Dimension:        cfg.Dimension,
			Metric:           store.Metric(cfg.Metric),
			EnsureCollection: cfg.EnsureSchema,
		})
	case "memory":
		return memory.New(store.Metric(cfg.Metric))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (a *app) splitter() (*chunk.Splitter, error) {
	return chunk.New(chunk.Settings{
		Policy:  chunk.Policy(a.cfg.Chunking.Policy),
		Size:    a.cfg.Chunking.Size,
		Overlap: a.cfg.Chunking.Overlap,
		Budget:  a.cfg.Chunking.Budget,
	})
}

func runIngest(ctx context.Context, configPath, path, docID string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	splitter, err := a.splitter()
	if err != nil {
		return err
	}

	ing := ingest.New(splitter, a.batcher, a.store, a.log)
	res, err := ing.IngestPDF(ctx, path, docID)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %s: %d chunks\n", res.DocID, res.Chunks)
	return nil
}

func runAsk(ctx context.Context, configPath, question string, k int) error {
	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if k < 1 {
		k = a.cfg.Retrieval.K
	}

	composer := answer.New(retrieve.New(a.batcher, a.store, a.log), a.provider, a.log)
	ans, err := composer.Ask(ctx, question, k)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(ans, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runServe(ctx context.Context, configPath, addr string) error {
	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}

	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	composer := answer.New(retrieve.New(a.batcher, a.store, a.log), a.provider, a.log)
	metrics := observability.NewRequestMetrics()

	health := server.NewHealth("0.1.0")
	health.AddCheck("store", server.StoreHealthChecker(a.store))
	health.AddCheck("provider", server.ProviderHealthChecker(a.provider.Name(), nil))

	srv := server.New(server.Config{
		Addr:            addr,
		DefaultK:        a.cfg.Retrieval.K,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	}, composer, health, metrics, a.log)

	serveCtx, cancel := context.WithCancel(ctx)
	shutdown := server.NewShutdownHandler(a.cfg.Server.ShutdownTimeout+5*time.Second, a.log)
	shutdown.RegisterHook("http", 10, func(context.Context) error {
		cancel()
		return nil
	})
	shutdown.RegisterHook("tracing", 80, func(c context.Context) error {
		return a.tracing.Shutdown(c)
	})
	shutdown.RegisterHook("store", 90, func(c context.Context) error {
		return a.store.Close(c)
	})
	shutdown.Start()

	err = srv.ListenAndServe(serveCtx)
	shutdown.Shutdown()
	shutdown.Wait()
	return err
}

func runBench(ctx context.Context, configPath string, opts bench.Options) error {
	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if opts.RandomQueries > 0 && opts.RandomDim == 0 {
		opts.RandomDim = a.cfg.Store.Dimension
	}

	runner := bench.NewRunner(a.batcher, a.store, a.log)
	report, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
