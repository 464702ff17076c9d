// Command taskloom is a terminal front end for the agent: it wires the
// configured backend, memory store and builtin tools, then runs chat turns
// and renders their progress event streams.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskloom/taskloom"
	"github.com/taskloom/taskloom/config"
	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/tool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "taskloom",
		Short:         "Conversational agent with tool use and task planning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "taskloom.yaml", "path to configuration file")

	root.AddCommand(newChatCmd(&configPath))
	root.AddCommand(newToolsCmd(&configPath))

	return root
}

func buildLoom(configPath string) (*taskloom.Taskloom, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return taskloom.New(func(o *taskloom.Options) {
		o.Config = cfg
		o.Tools = []tool.Tool{
			tool.NewCurrentTimeTool(),
			tool.NewDatetimeInfoTool(),
			tool.NewWeatherTool(),
		}
	})
}

func newChatCmd(configPath *string) *cobra.Command {
	var chatID string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one turn, or an interactive session when no message is given",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loom, err := buildLoom(*configPath)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				return runTurn(cmd, loom, chatID, strings.Join(args, " "))
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(cmd.OutOrStdout(), "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if input == "/quit" || input == "/exit" {
					return nil
				}
				if input == "/clear" {
					if err := loom.ClearHistory(cmd.Context(), chatID); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
					continue
				}
				if err := runTurn(cmd, loom, chatID, input); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "cli", "conversation identity to load and persist history under")

	return cmd
}

// runTurn renders one turn's event stream: progress lines to stderr, answer
// fragments to stdout so the output composes in pipelines.
func runTurn(cmd *cobra.Command, loom *taskloom.Taskloom, chatID, input string) error {
	out := cmd.OutOrStdout()
	status := cmd.ErrOrStderr()

	streamed := false
	for ev := range loom.Chat(cmd.Context(), chatID, input) {
		switch ev.Type {
		case core.EventThinking, core.EventExecuting:
			fmt.Fprintln(status, "…", ev.Message)
		case core.EventPlanCreated:
			fmt.Fprintf(status, "… plan with %d task(s)\n", len(ev.Plan))
			for _, t := range ev.Plan {
				fmt.Fprintf(status, "    %s: %s %v\n", t.ID, t.Tool, t.Dependencies)
			}
		case core.EventToolUse:
			fmt.Fprintf(status, "… running %s\n", ev.Tool)
		case core.EventObservation:
			fmt.Fprintf(status, "… observed: %s\n", truncate(ev.Result, 120))
		case core.EventError:
			fmt.Fprintln(status, "!", ev.Message)
		case core.EventFinalStream:
			streamed = true
			fmt.Fprint(out, ev.Content)
		case core.EventFinal:
			if streamed {
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, ev.Content)
			}
		}
	}
	return cmd.Context().Err()
}

func newToolsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loom, err := buildLoom(*configPath)
			if err != nil {
				return err
			}
			for _, d := range loom.Tools() {
				async := ""
				if d.Async {
					async = " (async)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n    %s\n", d.Name, async, d.Description)
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
