package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/advisorhub/mira/pkg/models"
)

// Operation is a unit of tool work run under ExecuteSafely.
type Operation func(ctx context.Context) (interface{}, error)

// ExecuteSafely runs op with retry and folds both outcomes into a
// ToolResult. It never returns an error. A nil logger uses the global one;
// a nil retry uses DefaultRetryOptions.
func ExecuteSafely(ctx context.Context, toolName string, op Operation, args map[string]interface{}, logger *zerolog.Logger, retry *RetryOptions) models.ToolResult {
	if logger == nil {
		logger = &log.Logger
	}
	opts := DefaultRetryOptions()
	if retry != nil {
		opts = *retry
	}

	start := time.Now()
	data, err := WithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return guard(ctx, toolName, op, logger)
	}, opts)
	if err != nil {
		te := CategorizeError(err)
		logger.Warn().
			Err(err).
			Str("tool", toolName).
			Str("code", te.Code).
			Bool("retryable", te.Retryable).
			Interface("args", args).
			Dur("elapsed", time.Since(start)).
			Msg("Tool execution failed")
		return models.ToolResult{Success: false, Error: te}
	}

	logger.Debug().
		Str("tool", toolName).
		Dur("elapsed", time.Since(start)).
		Msg("Tool executed")
	return models.ToolResult{Success: true, Data: data}
}

// guard runs op and turns a panic into a non-retryable unknown_error.
func guard(ctx context.Context, toolName string, op Operation, logger *zerolog.Logger) (data interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if logger == nil {
				logger = &log.Logger
			}
			logger.Error().
				Str("tool", toolName).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("Tool panicked")
			data, err = nil, &ToolError{
				Code:    CodeUnknownError,
				Message: fmt.Sprintf("Tool %q failed unexpectedly: %v", toolName, rec),
			}
		}
	}()
	return op(ctx)
}

// ExecuteWithRetry runs a registered tool under ExecuteSafely.
func (r *Registry) ExecuteWithRetry(ctx context.Context, name string, in ExecuteInput, logger *zerolog.Logger, retry *RetryOptions) models.ToolResult {
	return ExecuteSafely(ctx, name, func(ctx context.Context) (interface{}, error) {
		return r.invoke(ctx, name, in)
	}, in.Args, logger, retry)
}
