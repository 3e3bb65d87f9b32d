// Package mcpserver exposes the execution tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/execd/config"
	"github.com/isdmx/execd/sandbox"
	"github.com/isdmx/execd/version"
)

// Tool names, identical to the HTTP tool routes
const (
	ToolRunIPythonCell  = "run_ipython_cell"
	ToolRunShellCommand = "run_shell_command"
	defaultSplitOutput  = false
	serverName          = "execd"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	code      sandbox.CodeExecutor
	shell     sandbox.ShellExecutor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer with both execution tools registered
func New(cfg *config.Config, logger *zap.Logger, code sandbox.CodeExecutor, shell sandbox.ShellExecutor) *MCPServer {
	s := &MCPServer{
		config: cfg,
		logger: logger.Named("mcp"),
		code:   code,
		shell:  shell,
	}

	s.mcpServer = server.NewMCPServer(serverName, version.Version, server.WithToolCapabilities(false))

	s.registerRunIPythonCellTool()
	s.registerRunShellCommandTool()

	return s
}

func (s *MCPServer) registerRunIPythonCellTool() {
	tool := mcp.NewTool(ToolRunIPythonCell,
		mcp.WithDescription("Execute Python code in a persistent interpreter session. Variables and imports survive across calls."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Python source code of the cell"),
		),
		mcp.WithBoolean("split_output",
			mcp.Description("Return stdout and stderr as separate items instead of one combined output"),
		),
	)

	s.mcpServer.AddTool(tool, s.handleRunIPythonCell)
}

func (s *MCPServer) registerRunShellCommandTool() {
	tool := mcp.NewTool(ToolRunShellCommand,
		mcp.WithDescription(fmt.Sprintf("Execute a shell command in the workspace directory with a %d second deadline", s.config.Sandbox.CommandTimeoutSec)),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Command line interpreted by the shell"),
		),
		mcp.WithBoolean("split_output",
			mcp.Description("Return stdout and stderr as separate items instead of one combined output"),
		),
	)

	s.mcpServer.AddTool(tool, s.handleRunShellCommand)
}

func (s *MCPServer) handleRunIPythonCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code parameter is required"), nil
	}
	split := request.GetBool("split_output", defaultSplitOutput)

	s.logger.Info("code execution requested", zap.Bool("split_output", split))
	return toToolResult(s.code.RunCode(context.WithoutCancel(ctx), code, split)), nil
}

func (s *MCPServer) handleRunShellCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError("command parameter is required"), nil
	}
	split := request.GetBool("split_output", defaultSplitOutput)

	s.logger.Info("shell command requested", zap.Bool("split_output", split))
	return toToolResult(s.shell.RunCommand(context.WithoutCancel(ctx), command, split)), nil
}

// toToolResult maps an ExecutionResult to MCP: one text content per item, in
// order, with the full typed result attached as structured content.
func toToolResult(result sandbox.ExecutionResult) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(result.Content))
	for _, item := range result.Content {
		content = append(content, mcp.NewTextContent(item.Text))
	}
	return &mcp.CallToolResult{
		Content:           content,
		StructuredContent: result,
		IsError:           result.IsError,
	}
}

// Handler returns the streamable HTTP transport of the MCP server
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// ServeStdio serves the MCP server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
