// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the two execution tools, run_ipython_cell
// and run_shell_command, through the mark3labs/mcp-go library. The HTTP
// server mounts the streamable HTTP transport at /mcp behind the same access
// gate as the plain tool routes; ServeStdio is available for local use.
//
// Usage:
//
//	srv := mcpserver.New(cfg, logger, session, shellRunner)
//	router.Handle("/mcp", srv.Handler())
package mcpserver
