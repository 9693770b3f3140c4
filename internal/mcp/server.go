package mcp

import (
	"fmt"
	"os"

	mcp "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"go.uber.org/zap"

	"kgquery/internal/operations"
)

// RunMCPServer serves the query tools over stdio. The logger must not write
// to stdout, which carries the protocol.
func RunMCPServer(ops *operations.Operations, logger *zap.Logger) error {
	logger = logger.Named("mcp")

	if err := checkStdio(os.Stdin); err != nil {
		return err
	}

	tools, err := NewTools(ops)
	if err != nil {
		return err
	}
	logger.Info("session created for MCP client", zap.String("session", tools.sess.ID))

	// Create the MCP server with stdio transport
	server := mcp.NewServer(stdio.NewStdioServerTransport())

	if err := tools.Register(server); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	logger.Info("MCP server ready, serving requests")
	if err := server.Serve(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	// Block forever - the server runs in background goroutines
	select {}
}

// checkStdio fails when in is a terminal or cannot be inspected
func checkStdio(in *os.File) error {
	stat, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to inspect stdin: %w", err)
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return fmt.Errorf("MCP server mode requires stdin/stdout to be connected (not a terminal)")
	}
	return nil
}
