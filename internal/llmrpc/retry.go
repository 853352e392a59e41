package llmrpc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxRetries and InitialBackoff mirror llmCompleteWithRetry: five
// attempts, starting at a 2s backoff and doubling on each retry.
const (
	MaxRetries     = 5
	InitialBackoff = 2 * time.Second
)

// SendWithRetry calls client.Send, retrying on ErrRateLimited or
// ErrTimeout with exponential backoff, and propagating immediately on
// any other error (including ErrFatalStatus). The backoff sleep honors
// ctx cancellation.
func SendWithRetry(ctx context.Context, client Client, req Request) (Response, error) {
	backoff := InitialBackoff
	var lastErr error

	for attempt := 0; attempt < MaxRetries; attempt++ {
		resp, err := client.Send(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return Response{}, err
		}
		if attempt == MaxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return Response{}, fmt.Errorf("llmrpc: exhausted %d retries: %w", MaxRetries, lastErr)
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}
