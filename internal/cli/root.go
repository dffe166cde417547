// Package cli implements the kgrag command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/anmolg1997/kg-rag/internal/db"
	"github.com/anmolg1997/kg-rag/internal/util"
	"github.com/anmolg1997/kg-rag/pkg/ai"
	"github.com/anmolg1997/kg-rag/pkg/ai/ollama"
	"github.com/anmolg1997/kg-rag/pkg/ai/openai"
	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/logger/console"
	"github.com/anmolg1997/kg-rag/pkg/schema"
	"github.com/anmolg1997/kg-rag/pkg/store/pgx"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

var rootCmd = &cobra.Command{
	Use:   "kgrag",
	Short: "Knowledge graph retrieval over documents",
	Long: `kgrag ingests documents into a knowledge graph backed by PostgreSQL
and answers questions over it by combining graph traversal with text,
keyword, and temporal search.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(console.New(console.Params{
			Debug: debugFlag || util.GetEnvBool("DEBUG", false),
		}))
	},
}

// debugFlag enables debug logging for all commands.
var debugFlag bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}

// Execute loads the environment and runs the CLI.
func Execute() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// services bundles everything a command may need. Commands call
// openServices lazily so commands like "strategy presets" never touch
// the database.
type services struct {
	pool       *pgxpool.Pool
	storage    *pgx.GraphDBStorage
	llm        ai.Client
	strategies *strategy.Manager
	sch        *schema.Schema
}

func (s *services) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func openServices(ctx context.Context) (*services, error) {
	pool, err := db.Connect(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	llm, err := newAIClient()
	if err != nil {
		pool.Close()
		return nil, err
	}

	strategies, err := strategy.NewManager(util.GetEnvString("STRATEGY_PRESET", strategy.PresetBalanced))
	if err != nil {
		pool.Close()
		return nil, err
	}

	// A persisted strategy file (written by "strategy use"/"save") wins over
	// the preset default.
	if path := strategyFilePath(); path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, err := strategies.LoadFile(path); err != nil {
				pool.Close()
				return nil, err
			}
		}
	}

	svc := &services{
		pool:       pool,
		storage:    pgx.NewGraphDBStorage(pool),
		llm:        llm,
		strategies: strategies,
	}

	if path := util.GetEnv("SCHEMA_PATH"); path != "" {
		sch, err := schema.Load(path)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		svc.sch = sch
	}

	return svc, nil
}

// newAIClient builds the model client selected by AI_ADAPTER. Defaults to
// the OpenAI-compatible adapter.
func newAIClient() (ai.Client, error) {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := ollama.NewClient(ollama.NewClientParams{
			AnalysisModel: util.GetEnv("AI_ANALYSIS_MODEL"),
			AnswerModel:   util.GetEnv("AI_ANSWER_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			APIKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvInt("AI_MAX_CONCURRENT", 1)),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil
	default:
		return openai.NewClient(openai.NewClientParams{
			AnalysisModel: util.GetEnv("AI_ANALYSIS_MODEL"),
			AnswerModel:   util.GetEnv("AI_ANSWER_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			APIKey:  util.GetEnv("AI_CHAT_KEY"),
		}), nil
	}
}
