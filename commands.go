package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/rathore/earnings-agent/agent"
	"github.com/rathore/earnings-agent/edgar"
	"github.com/rathore/earnings-agent/facts"
	"github.com/rathore/earnings-agent/tools"
)

var (
	faint   = color.New(color.Faint)
	cyan    = color.New(color.FgCyan)
	red     = color.New(color.FgRed)
	green   = color.New(color.FgGreen)
	boldHdr = color.New(color.Bold)
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send one prompt to the model and run the tools it calls",
	Long: `Sends the prompt with every built-in tool schema in a single request and
dispatches the tool calls in the answer. With --steps the tool results are fed
back to the model until it answers in plain text.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")
		steps, _ := cmd.Flags().GetBool("steps")
		inline, _ := cmd.Flags().GetBool("inline")
		schemaFile, _ := cmd.Flags().GetString("schema")
		repair, _ := cmd.Flags().GetBool("repair")

		var output *agent.OutputContract
		if schemaFile != "" {
			data, err := os.ReadFile(schemaFile)
			if err != nil {
				return fmt.Errorf("failed to read schema: %w", err)
			}
			output, err = agent.NewOutputContract(schemaFile, data)
			if err != nil {
				return err
			}
			output.Repair = repair
		}

		ag, err := current.newAgent(output, inline)
		if err != nil {
			return err
		}

		prompt := strings.Join(args, " ")
		var res *agent.InvocationResult
		if steps {
			res = ag.Run(cmd.Context(), prompt)
		} else {
			res = ag.Invoke(cmd.Context(), prompt)
		}
		return printResult(cmd.OutOrStdout(), res, jsonOut)
	},
}

// metricReport is the structured answer of the extract command
type metricReport struct {
	Bank    string `json:"bank" jsonschema:"description=Bank name or ticker"`
	Metric  string `json:"metric" jsonschema:"description=Metric that was extracted"`
	Value   string `json:"value" jsonschema:"description=Value with units, or 'not found'"`
	Period  string `json:"period,omitempty" jsonschema:"description=Reporting period, e.g. Q4 2024"`
	Context string `json:"context,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a metric from an earnings report file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		metric, _ := cmd.Flags().GetString("metric")
		bank, _ := cmd.Flags().GetString("bank")
		jsonOut, _ := cmd.Flags().GetBool("json")

		output, err := agent.ContractFor[metricReport]()
		if err != nil {
			return err
		}
		output.Repair = true

		ag, err := current.newAgent(output, true)
		if err != nil {
			return err
		}

		prompt := fmt.Sprintf(`Extract "%s" for %s from the earnings report at %s.
First call load_document with the file path, then extract_metric with the loaded text.
Answer with a JSON object with the fields bank, metric, value, period and context.`, metric, bank, file)
		res := ag.Run(cmd.Context(), prompt)
		return printResult(cmd.OutOrStdout(), res, jsonOut)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [tickers...]",
	Short: "Download company facts from SEC EDGAR into the facts CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := current.cfg
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.DataFile
		}
		years, _ := cmd.Flags().GetInt("years")
		if !cmd.Flags().Changed("years") {
			years = cfg.SEC.Years
		}

		tickers := args
		if len(tickers) == 0 {
			tickers = cfg.SEC.Tickers
		}
		if len(tickers) == 0 {
			tickers = edgar.DefaultTickers
		}

		client, err := edgar.NewClient(edgar.ClientConfig{
			UserAgent:  cfg.SEC.UserAgent,
			MaxRetries: cfg.SEC.MaxRetries,
			Logger:     current.log,
		})
		if err != nil {
			return fmt.Errorf("%w (set sec.user_agent or EARNINGS_SEC_USER_AGENT)", err)
		}

		opts := edgar.FlattenOptions{Since: time.Now().AddDate(-years, 0, 0)}
		if until, _ := cmd.Flags().GetString("until"); until != "" {
			opts.Until, err = time.Parse(facts.DateLayout, until)
			if err != nil {
				return fmt.Errorf("invalid --until date %q, expected YYYY-MM-DD", until)
			}
		}

		table, err := loadExisting(out)
		if err != nil {
			return err
		}
		before := table.Len()

		d := edgar.NewDownloader(client, opts, current.log)
		report, err := d.Download(cmd.Context(), table, tickers)
		if err != nil {
			return err
		}
		if err := table.SaveFile(out); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Saved %d records (%d new, %d derived) for %d companies to %s\n",
			table.Len(), table.Len()-before, report.Derived, len(report.Added), out)
		for ticker, ferr := range report.Failed {
			red.Fprintf(w, "  %s: %v\n", ticker, ferr)
		}
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool schemas sent to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		toolList, err := current.buildTools()
		if err != nil {
			return err
		}
		reg := tools.NewRegistry(toolList...)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tools.Definitions(reg.Specs()))
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the built-in tools over the Model Context Protocol (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		toolList, err := current.buildTools()
		if err != nil {
			return err
		}
		srv := tools.NewMCPServer("earnings-agent", version, tools.NewRegistry(toolList...))
		// stdout carries JSON-RPC; logs stay on stderr
		current.log.Info().Int("tools", len(toolList)).Msg("serving MCP over stdio")
		return server.ServeStdio(srv)
	},
}

func init() {
	askCmd.Flags().Bool("json", false, "print the result as JSON")
	askCmd.Flags().Bool("steps", false, "feed tool results back until the model answers")
	askCmd.Flags().Bool("inline", false, "accept tool calls written as JSON text (with --steps)")
	askCmd.Flags().String("schema", "", "JSON schema file the answer must match")
	askCmd.Flags().Bool("repair", false, "repair malformed JSON before validating against --schema")

	extractCmd.Flags().String("file", "", "earnings report file (html or text)")
	extractCmd.Flags().String("metric", "", "metric to extract, e.g. \"Net Interest Income\"")
	extractCmd.Flags().String("bank", "", "bank name")
	extractCmd.Flags().Bool("json", false, "print the result as JSON")
	_ = extractCmd.MarkFlagRequired("file")
	_ = extractCmd.MarkFlagRequired("metric")
	_ = extractCmd.MarkFlagRequired("bank")

	fetchCmd.Flags().String("out", "", "output CSV (default: data_file)")
	fetchCmd.Flags().Int("years", 10, "years of history to keep")
	fetchCmd.Flags().String("until", "", "drop periods ending after this date (YYYY-MM-DD)")
}

// printResult renders an invocation result as text or JSON
// loadExisting reads the facts file that fetch merges into, so that earlier
// downloads win for a period. Only a missing file starts an empty table; any
// other failure stops fetch before it overwrites the file.
func loadExisting(path string) (*facts.Table, error) {
	table, err := facts.LoadFile(path)
	if err == nil {
		return table, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return facts.NewTable(), nil
	}
	return nil, fmt.Errorf("refusing to overwrite %s: %w", path, err)
}

func printResult(w io.Writer, res *agent.InvocationResult, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		return nil
	}

	for _, tc := range res.ToolCalls {
		args, _ := json.Marshal(tc.Arguments)
		cyan.Fprintf(w, "[Tool Call] %s", tc.Tool)
		faint.Fprintf(w, " %s\n", args)
		if tc.Result.OK() {
			fmt.Fprintf(w, "[Tool Result] %s\n", truncate(tc.Result.String(), 500))
		} else {
			red.Fprintf(w, "[Tool Error] %s\n", tc.Result.String())
		}
	}
	if res.Message != "" {
		boldHdr.Fprintln(w, "\n[Answer]")
		fmt.Fprintln(w, res.Message)
	}
	if so := res.StructuredOutput; so != nil {
		if so.Error != "" {
			red.Fprintf(w, "[Structured Output] %s\n", so.Error)
		} else {
			data, _ := json.MarshalIndent(so.Value, "", "  ")
			green.Fprintf(w, "[Structured Output]\n%s\n", data)
		}
	}
	if res.Error != "" {
		return fmt.Errorf("%s", res.Error)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
