// Package main is the sqlpilot CLI entry point.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/cli"
	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/embedding"
	"github.com/sqlpilot/sqlpilot/internal/executor"
	"github.com/sqlpilot/sqlpilot/internal/ingest"
	"github.com/sqlpilot/sqlpilot/internal/knowledge"
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/schema"
	"github.com/sqlpilot/sqlpilot/internal/server"
	"github.com/sqlpilot/sqlpilot/internal/vector"
	"github.com/sqlpilot/sqlpilot/internal/workflow"
	"github.com/sqlpilot/sqlpilot/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/sqlpilot/config.yaml"

// loadConfig loads config from path. When path is the default, a
// config.yaml in the current directory wins, so running from the project
// dir picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("sqlpilot version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Knowledge.SeedDir != "" {
		if n, err := ingest.SeedFromDir(context.Background(), components.Store, cfg.Knowledge.SeedDir, logger); err != nil {
			logger.Warn("seeding failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("seeded examples", zap.Int("inserted", n))
		}
	}

	var watchCancel context.CancelFunc = func() {}
	if cfg.Knowledge.SeedDir != "" {
		watcher := ingest.NewWatcher(components.Store, cfg.Knowledge.SeedDir, logger)
		var watchCtx context.Context
		watchCtx, watchCancel = context.WithCancel(context.Background())
		if err := watcher.Start(watchCtx); err != nil {
			logger.Warn("seed watcher not started", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}
	defer watchCancel()

	srv := server.NewServer(components.Engine, components.Store, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if err := components.Store.Persist(); err != nil {
		logger.Warn("index persist failed", zap.Error(err))
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server instead of running locally")
	maxRetries := fs.Int("max-retries", 0, "override configured repair retries")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fmt.Println("Usage: sqlpilot ask [flags] <question>")
		os.Exit(1)
	}
	question := fs.Arg(0)
	for i := 1; i < fs.NArg(); i++ {
		question += " " + fs.Arg(i)
	}

	if *serverURL != "" {
		resp, err := askViaHTTP(*serverURL, question, *maxRetries)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteQueryResponse(os.Stdout, resp, cli.OutputFormat(*output))
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	st, err := components.Engine.Run(context.Background(), question, *maxRetries)
	if err != nil {
		fmt.Printf("Failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteQueryResponse(os.Stdout, &server.QueryResponse{
		Intent:       string(st.Intent),
		State:        string(st.CurrentState),
		Response:     st.Response,
		GeneratedSQL: st.GeneratedSQL,
		RetryCount:   st.RetryCount,
		Error:        st.Error,
	}, cli.OutputFormat(*output))
	if st.CurrentState == workflow.StateFailed {
		os.Exit(1)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fmt.Println("Usage: sqlpilot ingest [flags] <file-or-dir>")
		os.Exit(1)
	}
	target := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	info, err := os.Stat(target)
	if err != nil {
		fmt.Printf("Cannot read %s: %v\n", target, err)
		os.Exit(1)
	}

	var inserted int
	if info.IsDir() {
		inserted, err = ingest.SeedFromDir(context.Background(), components.Store, target, logger)
	} else {
		exs, loadErr := ingest.LoadFile(target)
		if loadErr != nil {
			fmt.Printf("Cannot parse %s: %v\n", target, loadErr)
			os.Exit(1)
		}
		ids, addErr := components.Store.Add(context.Background(), exs)
		if addErr == nil && len(ids) > 0 {
			addErr = components.Store.Persist()
		}
		inserted, err = len(ids), addErr
	}
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %d examples (%d total in store)\n", inserted, components.Store.Count())
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		fmt.Println(string(body))
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize components: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	fmt.Printf("examples:        %d\n", components.Store.Count())
	fmt.Printf("vector_backend:  %s\n", components.Store.Backend())
	fmt.Printf("index_dir:       %s\n", cfg.Knowledge.IndexDir)
	fmt.Printf("embedding:       %s (%d dims)\n", cfg.Embedding.Provider, cfg.Embedding.Dimensions)
	fmt.Printf("sandbox_driver:  %s\n", cfg.Sandbox.Driver)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server instead of running locally")
	limit := fs.Int("limit", 10, "maximum number of hits")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fmt.Println("Usage: sqlpilot search [flags] <keywords>")
		os.Exit(1)
	}
	query := fs.Arg(0)
	for i := 1; i < fs.NArg(); i++ {
		query += " " + fs.Arg(i)
	}

	var hits []cli.ExampleHit
	if *serverURL != "" {
		fetched, err := searchViaHTTP(*serverURL, query, *limit)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		hits = fetched
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		components, err := initializeComponents(cfg, zap.NewNop())
		if err != nil {
			fmt.Printf("Failed to initialize components: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()

		examples, scores, err := components.Store.SearchKeyword(query, *limit)
		if err != nil {
			fmt.Printf("Search failed: %v\n", err)
			os.Exit(1)
		}
		for i := range examples {
			hits = append(hits, cli.ExampleHit{Example: examples[i], Score: scores[i]})
		}
	}
	_ = cli.WriteExampleHits(os.Stdout, hits, cli.OutputFormat(*output))
}

func searchViaHTTP(serverURL, query string, limit int) ([]cli.ExampleHit, error) {
	u := fmt.Sprintf("%s/api/v1/examples/search?q=%s&limit=%d", serverURL, url.QueryEscape(query), limit)
	resp, err := http.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Hits []cli.ExampleHit `json:"hits"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return out.Hits, nil
}

func askViaHTTP(serverURL, question string, maxRetries int) (*server.QueryResponse, error) {
	payload, err := json.Marshal(server.QueryRequest{Query: question, MaxRetries: maxRetries})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out server.QueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return &out, nil
}

// Components holds the wired application parts so subcommands share one
// initialization path.
type Components struct {
	DB       *sql.DB
	Embedder embedding.Embedder
	Index    *vector.Index
	Lexical  *knowledge.LexicalIndex
	Store    *knowledge.Store
	Engine   *workflow.Engine
}

func (c *Components) Close() {
	if c.DB != nil {
		_ = c.DB.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Lexical != nil {
		_ = c.Lexical.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		// The configured backend (usually onnx) is unavailable on this
		// machine; the mock keeps retrieval deterministic and working.
		logger.Warn("embedding backend unavailable, using mock",
			zap.String("provider", cfg.Embedding.Provider),
			zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	index, err := vector.New(cfg.Embedding.Dimensions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	lexical, err := knowledge.NewLexicalIndex()
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to initialize lexical index: %w", err)
	}

	store := knowledge.NewStore(embedder, index, lexical, &cfg.Knowledge, logger)
	if err := store.Load(); err != nil {
		index.Close()
		lexical.Close()
		return nil, fmt.Errorf("failed to load knowledge store: %w", err)
	}

	db, err := sql.Open(cfg.Sandbox.Driver, cfg.Sandbox.DSN)
	if err != nil {
		index.Close()
		lexical.Close()
		return nil, fmt.Errorf("failed to open sandbox database: %w", err)
	}

	provider, err := llm.NewOpenAIProvider(&cfg.LLM)
	if err != nil {
		db.Close()
		index.Close()
		lexical.Close()
		return nil, fmt.Errorf("failed to initialize llm provider: %w", err)
	}

	introspector := schema.NewIntrospector(db, cfg.Sandbox.Driver)
	exec := executor.New(db, &cfg.Sandbox, logger)
	recorder := knowledge.NewFeedbackRecorder(store, logger)
	engine := workflow.NewEngine(provider, store, introspector, exec, recorder, &cfg.Workflow, logger)

	logger.Info("components initialized",
		zap.Int("examples", store.Count()),
		zap.String("vector_backend", store.Backend()),
		zap.String("sandbox_driver", cfg.Sandbox.Driver))

	return &Components{
		DB:       db,
		Embedder: embedder,
		Index:    index,
		Lexical:  lexical,
		Store:    store,
		Engine:   engine,
	}, nil
}

func printUsage() {
	fmt.Println(`sqlpilot - natural language to SQL with a self-improving example store

Usage:
  sqlpilot server [flags]              Start the HTTP server
  sqlpilot ask [flags] <question>      Ask a question (local or via --server)
  sqlpilot ingest [flags] <path>       Ingest seed examples from a file or directory
  sqlpilot search [flags] <keywords>   Keyword-search stored examples
  sqlpilot status [flags]              Show store and configuration status
  sqlpilot version                     Show version
  sqlpilot help                        Show this help

Flags:
  --config string       Config file path (default: /usr/local/etc/sqlpilot/config.yaml)
  --debug               Enable debug logging (server only)
  --server string       URL of a running sqlpilot server (ask, search, status)
  --output string       Output format: text or json (ask, search)
  --limit int           Maximum number of hits (search only)
  --max-retries int     Override configured repair retries (ask only)`)
}
