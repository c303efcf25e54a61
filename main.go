package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rathore/earnings-agent/agent"
	"github.com/rathore/earnings-agent/config"
	"github.com/rathore/earnings-agent/docs"
	"github.com/rathore/earnings-agent/facts"
	"github.com/rathore/earnings-agent/llm"
	"github.com/rathore/earnings-agent/logging"
	"github.com/rathore/earnings-agent/rag"
	"github.com/rathore/earnings-agent/tools"
)

const version = "0.3.0"

// app holds what every command needs after configuration is loaded
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

var (
	cfgFile string
	current app
)

var rootCmd = &cobra.Command{
	Use:           "earnings-agent",
	Short:         "Ask an Ollama model questions about bank earnings using tools",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("model") {
			cfg.Model, _ = cmd.Flags().GetString("model")
		}
		if cmd.Flags().Changed("data") {
			cfg.DataFile, _ = cmd.Flags().GetString("data")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		current = app{cfg: cfg, log: logging.New(cfg.LogLevel, os.Stderr)}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./earnings.yaml)")
	rootCmd.PersistentFlags().String("model", "", "Ollama model to use")
	rootCmd.PersistentFlags().String("data", "", "CSV file with company facts")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(askCmd, chatCmd, extractCmd, fetchCmd, toolsCmd, mcpCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadTable reads the facts CSV. A missing file yields an empty table so the
// non-metric tools keep working.
func (a *app) loadTable() *facts.Table {
	table, err := facts.LoadFile(a.cfg.DataFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			a.log.Warn().Str("file", a.cfg.DataFile).Msg("facts file not found, run 'earnings-agent fetch' first")
		} else {
			a.log.Error().Err(err).Str("file", a.cfg.DataFile).Msg("failed to load facts")
		}
		return facts.NewTable()
	}
	a.log.Debug().Int("records", table.Len()).Str("file", a.cfg.DataFile).Msg("facts loaded")
	return table
}

// buildTools returns the built-in tool set
func (a *app) buildTools() ([]tools.Tool, error) {
	table := a.loadTable()
	completer, err := llm.NewClient(a.cfg.ExtractModel, a.cfg.OllamaHost)
	if err != nil {
		return nil, err
	}
	embedder, err := rag.NewOllamaEmbedder(a.cfg.EmbedModel, a.cfg.OllamaHost)
	if err != nil {
		return nil, err
	}
	loader := docs.NewLoader(a.cfg.DocsDir)
	// The report directory is embedded on the first search_reports call
	indexer := rag.NewIndexer(rag.DefaultConfig(), loader, embedder, a.log)
	return []tools.Tool{
		tools.NewAdd(),
		tools.NewMultiply(),
		tools.NewListMetrics(table),
		tools.NewCompareMetrics(table),
		tools.NewMetricTrend(table),
		tools.NewLoadDocument(loader),
		tools.NewExtractMetric(completer, 0),
		tools.NewSearchReports(indexer),
	}, nil
}

// newAgent builds an agent over the built-in tools
func (a *app) newAgent(output *agent.OutputContract, inline bool) (*agent.Agent, error) {
	toolList, err := a.buildTools()
	if err != nil {
		return nil, err
	}
	return agent.New(agent.Config{
		Model:           a.cfg.Model,
		Tools:           toolList,
		Output:          output,
		Endpoint:        a.cfg.Endpoint,
		Proxies:         a.cfg.Proxies,
		Timeout:         a.cfg.Timeout,
		MaxRetries:      a.cfg.MaxRetries,
		MaxIter:         a.cfg.MaxIter,
		InlineToolCalls: inline,
		Logger:          a.log,
	})
}
