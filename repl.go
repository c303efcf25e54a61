package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rathore/earnings-agent/agent"
	"github.com/rathore/earnings-agent/logging"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session with conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		inline, _ := cmd.Flags().GetBool("inline")
		ag, err := current.newAgent(nil, inline)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Earnings Agent (model: %s)\n", current.cfg.Model)
		return repl(cmd.Context(), ag.NewConversation(), os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().Bool("inline", false, "accept tool calls written as JSON text")
}

// repl reads prompts line by line until EOF or /exit
func repl(ctx context.Context, conv *agent.Conversation, in io.Reader, out io.Writer) error {
	interactive := logging.IsTerminal(in)
	if interactive {
		fmt.Fprintln(out, "Type /help for commands")
		fmt.Fprintln(out, "---")
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "\n> ")
		}
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "/exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "clear", "/clear":
			conv.Clear()
			fmt.Fprintln(out, "History cleared.")
			continue
		case "/help":
			fmt.Fprintln(out, "Commands:")
			fmt.Fprintln(out, "  /help   - Show this help message")
			fmt.Fprintln(out, "  /clear  - Clear conversation history")
			fmt.Fprintln(out, "  /exit   - Exit the agent")
			fmt.Fprintln(out, "")
			fmt.Fprintln(out, "Anything else is sent to the model as a prompt.")
			continue
		}

		res := conv.Send(ctx, input)
		if err := printResult(out, res, false); err != nil {
			red.Fprintf(out, "\n[Error] %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	return nil
}
