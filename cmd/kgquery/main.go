package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kgquery/internal/config"
	"kgquery/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kgquery",
	Short: "kgquery - query a people/company knowledge graph with SPARQL",
	Long: `kgquery builds a small synthetic knowledge graph of people and companies
and lets you query and modify it with SPARQL, ask questions in natural
language, and visualize the result.

SELECT queries run straight away. INSERT needs an explicit run, and
DELETE/UPDATE additionally need confirmation.

Run without arguments to start the interactive shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		// The shell logs to a file so log lines stay out of the prompt
		if cmd.Name() == "shell" || cmd == cmd.Root() {
			logger, err = logging.NewFile(cfg.Logging.Level, shellLogPath())
		} else {
			logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runShell,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "kgquery.yaml", "Config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd, shellCmd, mcpCmd, queryCmd, translateCmd, visualizeCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
