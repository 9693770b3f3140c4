package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kgquery/internal/cli"
	"kgquery/internal/mcp"
	"kgquery/internal/query"
	"kgquery/internal/server"
)

// sessionIdle is how long an unused browser session is kept
const sessionIdle = time.Hour

var (
	confirmFlag bool
	jsonFlag    bool
	runFlag     bool
	outputPath  string
)

// serveCmd runs the browser UI and JSON API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser UI and JSON API",
	Long: `Serves the query page and the JSON API. Each browser gets its own
session, identified by a cookie, with a private graph.

Set server.token (or KGQUERY_TOKEN) to require a bearer token on /api/ routes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// shellCmd starts the interactive shell
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive SPARQL shell",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

// mcpCmd serves the query tools over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as an MCP server for AI assistants (requires stdio connection)",
	Long: `Serves run_sparql, translate_question, rebuild_graph, graph_stats,
graph_network and export_graph over stdio. Logs go to stderr.

Example:
  kgquery mcp < /dev/null`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.RunMCPServer(newOperations(cfg, logger), logger)
	},
}

// queryCmd runs one query against a fresh graph
var queryCmd = &cobra.Command{
	Use:   "query [sparql]",
	Short: "Run one SPARQL query against a freshly built graph",
	Long: `Runs one query against a freshly built graph and prints the result.
DELETE/UPDATE queries are refused unless --confirm is given.

Example:
  kgquery query 'SELECT ?name WHERE { ?p foaf:name ?name }'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

// translateCmd turns a question into SPARQL
var translateCmd = &cobra.Command{
	Use:   "translate [question]",
	Short: "Translate a natural-language question into SPARQL",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTranslate,
}

// visualizeCmd writes the graph viewer page
var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Write an interactive HTML view of a freshly built graph",
	Args:  cobra.NoArgs,
	RunE:  runVisualize,
}

// exportCmd writes the graph as N-Triples
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a freshly built graph as N-Triples",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	queryCmd.Flags().BoolVar(&confirmFlag, "confirm", false, "Allow a DELETE/UPDATE query to modify the graph")
	queryCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the result envelope as JSON")
	translateCmd.Flags().BoolVar(&runFlag, "run", false, "Run the translated query")
	translateCmd.Flags().BoolVar(&confirmFlag, "confirm", false, "Allow a translated DELETE/UPDATE query to modify the graph")
	visualizeCmd.Flags().StringVarP(&outputPath, "output", "o", "kgquery-graph.html", "Output HTML file")
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ops := newOperations(cfg, logger)
	apiServer := server.NewServer(cfg.Server.Addr, cfg.Server.Token, ops, logger)
	apiServer.AllowOrigins(cfg.Server.AllowedOrigins...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	ticker := time.NewTicker(sessionIdle / 4)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			ops.Sessions.Prune(sessionIdle)
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("error stopping server: %w", err)
			}
			return <-errCh
		}
	}
}

func runShell(cmd *cobra.Command, args []string) error {
	shell, err := cli.NewCLI(newOperations(cfg, logger), logger)
	if err != nil {
		return err
	}
	return shell.Run(cmd.Context())
}

func runQuery(cmd *cobra.Command, args []string) error {
	ops := newOperations(cfg, logger)
	sess, err := ops.Sessions.Create()
	if err != nil {
		return err
	}

	act := query.Run
	if confirmFlag {
		act = query.Confirm
	}
	res := ops.Query.Submit(cmd.Context(), sess, args[0], act)
	return printOutcome(res.Outcome)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ops := newOperations(cfg, logger)
	sess, err := ops.Sessions.Create()
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	q, err := ops.Translate.Question(cmd.Context(), sess, question)
	if err != nil {
		return err
	}
	fmt.Println(q)
	if !runFlag {
		return nil
	}

	act := query.Run
	if confirmFlag {
		act = query.Confirm
	}
	fmt.Println()
	res := ops.Query.Submit(cmd.Context(), sess, q, act)
	return printOutcome(res.Outcome)
}

func runVisualize(cmd *cobra.Command, args []string) error {
	ops := newOperations(cfg, logger)
	sess, err := ops.Sessions.Create()
	if err != nil {
		return err
	}

	html, err := ops.Visual.Render(sess)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	logger.Info("visualization written", zap.String("path", outputPath))
	fmt.Println(cli.FormatSuccess("Graph visualization written to " + outputPath))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ops := newOperations(cfg, logger)
	sess, err := ops.Sessions.Create()
	if err != nil {
		return err
	}

	if outputPath == "" {
		return ops.Graph.Export(sess, os.Stdout)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	defer f.Close()
	return ops.Graph.Export(sess, f)
}

// printOutcome prints a one-shot result and turns refusals and failures into
// a non-zero exit
func printOutcome(out query.Outcome) error {
	switch out.Status {
	case query.NeedsConfirmation:
		return fmt.Errorf("%s query not executed: this will modify the graph, pass --confirm", out.Kind)
	case query.AwaitingRun:
		return fmt.Errorf("%s query not executed", out.Kind)
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out.Envelope); err != nil {
			return err
		}
	}

	switch env := out.Envelope.(type) {
	case *query.Failure:
		return env
	case *query.Success:
		if jsonFlag {
			return nil
		}
		if env.Info != "" {
			fmt.Println(cli.FormatSuccess(env.Info))
		}
		if len(env.Vars) > 0 {
			fmt.Println(cli.RenderTable(env))
		}
	}
	return nil
}
