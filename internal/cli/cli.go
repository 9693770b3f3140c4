package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"kgquery/internal/nl2sparql"
	"kgquery/internal/operations"
	"kgquery/internal/query"
)

const (
	prompt         = "sparql> "
	continuePrompt = "   ...> "
	defaultVizFile = "kgquery-graph.html"
)

// CLI provides the interactive SPARQL shell
type CLI struct {
	ops      *operations.Operations
	sess     *operations.Session
	logger   *zap.Logger
	readline *readline.Instance
	out      io.Writer
	buffer   []string
}

// NewCLI creates a shell with its own session
func NewCLI(ops *operations.Operations, logger *zap.Logger) (*CLI, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sess, err := ops.Sessions.Create()
	if err != nil {
		return nil, err
	}
	return &CLI{
		ops:    ops,
		sess:   sess,
		logger: logger.Named("cli"),
		out:    os.Stdout,
	}, nil
}

// SetOutput redirects everything the shell prints
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// Run starts the interactive session
func (c *CLI) Run(ctx context.Context) error {
	// Initialize readline with autocompletion
	config := &readline.Config{
		Prompt:            prompt,
		HistoryFile:       filepath.Join(os.TempDir(), ".kgquery_history"),
		AutoComplete:      c.buildAutoCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	c.readline = rl
	c.out = rl.Stdout()
	defer rl.Close()

	fmt.Fprintln(c.out, HeaderStyle.Render("Knowledge Graph with SPARQL"))
	fmt.Fprintln(c.out, "Type SPARQL and end it with a blank line, a lone ';' or /run. /help lists commands.")
	fmt.Fprintln(c.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 && len(c.buffer) == 0 {
				break
			}
			c.buffer = nil
			rl.SetPrompt(prompt)
			continue
		} else if errors.Is(err, io.EOF) {
			break
		}

		if quit := c.handleLine(ctx, line); quit {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}
		if len(c.buffer) > 0 {
			rl.SetPrompt(continuePrompt)
		} else {
			rl.SetPrompt(prompt)
		}
	}

	return nil
}

// handleLine feeds one input line to the shell and reports whether the user
// asked to leave
func (c *CLI) handleLine(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "/exit" || trimmed == "/quit" || trimmed == "/q":
		return true

	case (trimmed == "/run" || trimmed == "/r") && len(c.buffer) > 0:
		text := strings.Join(c.buffer, "\n")
		c.buffer = nil
		c.submit(ctx, text, query.Run)

	case strings.HasPrefix(trimmed, "/"):
		if err := c.processCommand(ctx, trimmed); err != nil {
			fmt.Fprintln(c.out, FormatError(err.Error()))
		}

	case trimmed == "" || trimmed == ";":
		// a ';' ending a longer line is a predicate list separator
		if len(c.buffer) > 0 {
			c.submitBuffer(ctx)
		}

	default:
		c.buffer = append(c.buffer, line)
	}
	return false
}

func (c *CLI) submitBuffer(ctx context.Context) {
	text := strings.Join(c.buffer, "\n")
	c.buffer = nil
	c.submit(ctx, text, query.Auto)
}

// buildAutoCompleter creates the autocompletion configuration
func (c *CLI) buildAutoCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("/help"),
		readline.PcItem("/run"),
		readline.PcItem("/confirm"),
		readline.PcItem("/ask"),
		readline.PcItem("/rebuild"),
		readline.PcItem("/show"),
		readline.PcItem("/sample"),
		readline.PcItem("/viz"),
		readline.PcItem("/export"),
		readline.PcItem("/explore"),
		readline.PcItem("/stats"),
		readline.PcItem("/prefixes"),
		readline.PcItem("/clear"),
		readline.PcItem("/exit"),
	)
}

// processCommand handles slash commands
func (c *CLI) processCommand(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	switch command {
	case "/help", "/h", "/?":
		c.showHelp()
	case "/run", "/r":
		text := rest
		if text == "" {
			text = c.ops.Query.Editor(c.sess)
		}
		c.submit(ctx, text, query.Run)
	case "/confirm":
		c.submit(ctx, c.ops.Query.Editor(c.sess), query.Confirm)
	case "/ask":
		if rest == "" {
			return fmt.Errorf("usage: /ask <question>")
		}
		return c.ask(ctx, rest)
	case "/rebuild":
		if len(args) != 2 {
			return fmt.Errorf("usage: /rebuild <people> <companies>")
		}
		return c.rebuild(args[0], args[1])
	case "/show", "/editor":
		fmt.Fprintln(c.out, CodeStyle.Render(c.ops.Query.Editor(c.sess)))
	case "/sample":
		c.ops.Query.Sample(c.sess)
		fmt.Fprintln(c.out, CodeStyle.Render(query.DefaultQuery))
		c.submit(ctx, query.DefaultQuery, query.Auto)
	case "/viz", "/visualize":
		path := defaultVizFile
		if len(args) > 0 {
			path = args[0]
		}
		return c.visualize(path)
	case "/export":
		if len(args) == 0 {
			return c.ops.Graph.Export(c.sess, c.out)
		}
		return c.export(args[0])
	case "/explore":
		last := c.ops.Query.Last(c.sess)
		if last == nil {
			return fmt.Errorf("no result to explore; run a query first")
		}
		res, ok := last.Envelope.(*query.Success)
		if !ok {
			return fmt.Errorf("the last query did not produce rows")
		}
		return c.ExploreResult(res)
	case "/stats":
		c.showStats()
	case "/prefixes":
		fmt.Fprint(c.out, DimStyle.Render(c.ops.Graph.Prefixes(c.sess)))
		fmt.Fprintln(c.out)
	case "/clear":
		fmt.Fprint(c.out, "\033[H\033[2J") // Clear screen
	default:
		return fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}

	return nil
}

// submit runs text through the workflow and prints the outcome
func (c *CLI) submit(ctx context.Context, text string, act query.Action) {
	res := c.ops.Query.Submit(ctx, c.sess, text, act)
	c.printOutcome(res.Outcome)
}

func (c *CLI) printOutcome(out query.Outcome) {
	fmt.Fprintf(c.out, "%s %s\n", DimStyle.Render("query type:"), FormatKind(out.Kind))

	switch out.Status {
	case query.AwaitingRun:
		fmt.Fprintln(c.out, FormatInfo("Not executed. Use /run to execute it."))
		return
	case query.NeedsConfirmation:
		fmt.Fprintln(c.out, FormatWarning("This will modify the graph! Use /confirm to execute it."))
		return
	}

	switch env := out.Envelope.(type) {
	case *query.Failure:
		fmt.Fprintln(c.out, FormatError(env.Message))
	case *query.Success:
		if env.Info != "" {
			fmt.Fprintln(c.out, FormatSuccess(env.Info))
		}
		if len(env.Vars) > 0 {
			fmt.Fprintln(c.out, RenderTable(env))
			fmt.Fprintln(c.out, DimStyle.Render(fmt.Sprintf("%d rows", len(env.Rows))))
		}
	}
}

func (c *CLI) ask(ctx context.Context, question string) error {
	q, err := c.ops.Translate.Question(ctx, c.sess, question)
	if err != nil {
		if errors.Is(err, nl2sparql.ErrEmptyQuestion) {
			fmt.Fprintln(c.out, FormatWarning("Please type a question."))
			return nil
		}
		return err
	}
	fmt.Fprintln(c.out, CodeStyle.Render(q))
	c.submit(ctx, q, query.Auto)
	return nil
}

func (c *CLI) rebuild(peopleArg, companiesArg string) error {
	people, err := strconv.Atoi(peopleArg)
	if err != nil {
		return fmt.Errorf("people must be a number: %w", err)
	}
	companies, err := strconv.Atoi(companiesArg)
	if err != nil {
		return fmt.Errorf("companies must be a number: %w", err)
	}

	stats, err := c.ops.Graph.Rebuild(c.sess, people, companies)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, FormatSuccess("Graph rebuilt!"))
	fmt.Fprintln(c.out, DimStyle.Render(fmt.Sprintf("%d triples, %d people, %d companies", stats.Triples, stats.People, stats.Companies)))
	return nil
}

func (c *CLI) showStats() {
	stats := c.ops.Graph.Stats(c.sess)
	fmt.Fprintln(c.out, HeaderStyle.Render("Graph"))
	fmt.Fprintf(c.out, "  Triples:    %d\n", stats.Triples)
	fmt.Fprintf(c.out, "  Subjects:   %d\n", stats.Subjects)
	fmt.Fprintf(c.out, "  Predicates: %d\n", stats.Predicates)
	fmt.Fprintf(c.out, "  People:     %d\n", stats.People)
	fmt.Fprintf(c.out, "  Companies:  %d\n", stats.Companies)
}

func (c *CLI) visualize(path string) error {
	html, err := c.ops.Visual.Render(c.sess)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(c.out, FormatSuccess("Graph visualization written to "+path))
	return nil
}

func (c *CLI) export(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := c.ops.Graph.Export(c.sess, f); err != nil {
		return err
	}
	fmt.Fprintln(c.out, FormatSuccess("Graph exported to "+path))
	return nil
}

// showHelp displays available commands
func (c *CLI) showHelp() {
	fmt.Fprintln(c.out, "\nAvailable Commands:")
	fmt.Fprintln(c.out, "  /run [query]                  - Execute the editor (or the given query)")
	fmt.Fprintln(c.out, "  /confirm                      - Confirm and execute a DELETE/UPDATE in the editor")
	fmt.Fprintln(c.out, "  /ask <question>               - Translate a question into SPARQL and submit it")
	fmt.Fprintln(c.out, "  /rebuild <people> <companies> - Replace the graph (people 2-30, companies 1-10)")
	fmt.Fprintln(c.out, "  /show                         - Print the editor")
	fmt.Fprintln(c.out, "  /sample                       - Load and run the sample query")
	fmt.Fprintln(c.out, "  /viz [file]                   - Write the graph visualization to an HTML file")
	fmt.Fprintln(c.out, "  /export [file]                - Print or save the graph as N-Triples")
	fmt.Fprintln(c.out, "  /explore                      - Browse the last result interactively")
	fmt.Fprintln(c.out, "  /stats                        - Show graph counts")
	fmt.Fprintln(c.out, "  /prefixes                     - Show the prefixes every query may use")
	fmt.Fprintln(c.out, "  /clear                        - Clear screen")
	fmt.Fprintln(c.out, "  /exit, /quit, /q              - Exit the program")
	fmt.Fprintln(c.out, "\nTips:")
	fmt.Fprintln(c.out, "  • SELECT executes automatically; INSERT/DELETE/UPDATE need /run")
	fmt.Fprintln(c.out, "  • DELETE/UPDATE additionally need /confirm")
	fmt.Fprintln(c.out, "  • After every update the current people table is shown")
	fmt.Fprintln(c.out)
}
