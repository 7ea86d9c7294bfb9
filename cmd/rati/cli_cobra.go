package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "rati",
		Short: "Autonomous social agent with an action ledger and memory recall",
		Long: strings.TrimSpace(`rati is a decision-support runtime for an autonomous social agent.

It keeps a persistent ledger of attempted actions (cooldowns, duplicate
content, processed messages) and ranks stored memories against incoming
conversation to assemble grounded prompts.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newHistoryCommand())
	root.AddCommand(newRecallCommand())
	root.AddCommand(newReplCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.rati config and workspace",
		Long:    "Create default configuration, the workspace state directory, and an empty memory pool.",
		Example: "  rati onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard()
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and ledger readiness",
		Example: "  rati status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return statusCmd()
		},
	}
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history [limit]",
		Short: "Show recent ledger actions, oldest first",
		Args:  cobra.MaximumNArgs(1),
		Example: strings.Join([]string{
			"  rati history",
			"  rati history 5",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 0
			if len(args) == 1 {
				n, err := parseLimitArg(args[0])
				if err != nil {
					return err
				}
				limit = n
			}
			return historyCmd(limit)
		},
	}
}

func newRecallCommand() *cobra.Command {
	var (
		message string
		pool    string
	)

	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Rank stored memories against a message",
		Long:  "Score the memory pool against a message and print the synthesized context block.",
		Example: strings.Join([]string{
			"  rati recall -m \"gm farcaster, any art drops today?\"",
			"  rati recall -m \"mint it\" --pool ./memories.json",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("--message is required")
			}
			return recallCmd(message, pool)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Message to rank memories against")
	cmd.Flags().StringVarP(&pool, "pool", "p", "", "Path to memory pool JSON (default: workspace memories.json)")

	return cmd
}

func newReplCommand() *cobra.Command {
	var pool string

	cmd := &cobra.Command{
		Use:     "repl",
		Short:   "Interactive recall and prompt assembly session",
		Long:    "Read messages interactively, rank the memory pool against each, and print the assembled prompt.",
		Example: "  rati repl --pool ./memories.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return replCmd(pool)
		},
	}

	cmd.Flags().StringVarP(&pool, "pool", "p", "", "Path to memory pool JSON (default: workspace memories.json)")

	return cmd
}

func newRunCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the agent loop with heartbeat and action gating",
		Long:    "Start the message bus, heartbeat worker, and gated action consumer.",
		Example: "  rati run --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCmd(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  rati version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
