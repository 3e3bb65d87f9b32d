// Package sandbox provides the code execution engine.
//
// The sandbox package implements two execution pathways that share one result
// contract. A Session owns a single persistent Python interpreter (a
// PythonKernel child process) whose variable bindings survive across calls. A
// ShellRunner runs one-shot shell commands in the same working directory with
// a hard deadline. Both return an ExecutionResult: an ordered list of typed
// content items plus an error flag. Neither pathway returns Go errors for
// failures of the executed code or of the engine itself.
//
// Usage:
//
//	session := sandbox.NewSession(logger, "/workspace",
//	    sandbox.NewPythonKernelFactory(logger, "python3"))
//	defer session.Close()
//	result := session.RunCode(ctx, "x = 5\nprint(x)", false)
//
//	shell := sandbox.NewShellRunner(logger, "/workspace")
//	result = shell.RunCommand(ctx, "ls -la | head", true)
package sandbox
