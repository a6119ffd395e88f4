package errorutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// HandleError is a utility function for handling errors with logging
func HandleError(log zerolog.Logger, err error, msg string) {
	if err != nil {
		log.Error().Err(err).Msg(msg)
	}
}

// HandleContextError logs ctx's error instead of err when the context ended
// first, which is how a cancelled or timed out remote call shows up.
func HandleContextError(log zerolog.Logger, ctx context.Context, err error, timeoutMsg, errorMsg string) {
	if err == nil {
		return
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		log.Error().Err(ctxErr).Msg(timeoutMsg)
		return
	}
	log.Error().Err(err).Msg(errorMsg)
}

// WrapError wraps an error with additional context
func WrapError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
