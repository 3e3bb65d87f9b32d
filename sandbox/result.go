package sandbox

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"time"
)

// ContentType labels a single fragment of an execution result
type ContentType string

// Content types emitted by the execution pathways
const (
	ContentStdout     ContentType = "stdout"
	ContentStderr     ContentType = "stderr"
	ContentOutput     ContentType = "output"
	ContentError      ContentType = "error"
	ContentReturnCode ContentType = "return_code"
)

// Descriptions attached to content items
const (
	DescStdout          = "Standard output"
	DescStderr          = "Standard error"
	DescExecutionOutput = "Execution output"
	DescCommandOutput   = "Command output"
	DescExecutionError  = "Execution error"
	DescReturnCode      = "Command return code"
	DescTimeout         = "Timeout error"
	DescPythonFailure   = "Python execution error"
	DescShellFailure    = "Shell execution error"
)

// ContentItem is one typed, ordered fragment of an ExecutionResult
type ContentItem struct {
	Type        ContentType `json:"type"`
	Text        string      `json:"text"`
	Description string      `json:"description,omitempty"`
}

// ExecutionResult is the uniform outcome of a code cell or a shell command.
// IsError reports whether the execution itself signaled failure, regardless
// of whether any output was produced.
type ExecutionResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"is_error"`
}

// NewResult returns a successful result with an empty, non-nil content list
func NewResult() ExecutionResult {
	return ExecutionResult{Content: []ContentItem{}}
}

// Append adds an item to the end of the result
func (r *ExecutionResult) Append(kind ContentType, text, description string) {
	r.Content = append(r.Content, ContentItem{Type: kind, Text: text, Description: description})
}

// Shape builds the output section of a result. In split mode stdout and
// stderr become separate items, each only when non-empty; otherwise they are
// concatenated into one output item that is omitted when both are empty.
func Shape(stdout, stderr string, splitOutput bool, combinedDescription string) ExecutionResult {
	result := NewResult()

	if splitOutput {
		if stdout != "" {
			result.Append(ContentStdout, stdout, DescStdout)
		}
		if stderr != "" {
			result.Append(ContentStderr, stderr, DescStderr)
		}
		return result
	}

	if combined := stdout + stderr; combined != "" {
		result.Append(ContentOutput, combined, combinedDescription)
	}
	return result
}

// ErrorResult returns a failed result holding a single error item
func ErrorResult(text, description string) ExecutionResult {
	result := NewResult()
	result.Append(ContentError, text, description)
	result.IsError = true
	return result
}

// TimeoutResult reports a command killed after exceeding its deadline
func TimeoutResult(timeout time.Duration) ExecutionResult {
	seconds := strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)
	return ErrorResult(fmt.Sprintf("Command timed out after %s seconds", seconds), DescTimeout)
}

// EngineFailure converts an internal fault into a failed result carrying the
// failure description and the goroutine stack at the point of conversion.
func EngineFailure(prefix string, err error, description string) ExecutionResult {
	return ErrorResult(fmt.Sprintf("%s: %v\n%s", prefix, err, debug.Stack()), description)
}
