// Package main is the entry point for the execd sandbox server.
//
// execd is the code execution endpoint of a single sandbox container. It
// keeps one persistent Python interpreter session and runs shell commands in
// the container's workspace directory, exposing both over HTTP and,
// optionally, the Model Context Protocol.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging, viper for configuration and
// cobra for the command line.
package main
