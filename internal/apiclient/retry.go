package apiclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/telemetry"
)

// request is the descriptor of one logical call. It carries its own retry count,
// so retries of independent calls never wait on each other.
type request struct {
	method     string
	path       string
	url        string
	body       []byte
	retryCount int
}

// maxRetries is the effective retry budget, zero when retries are disabled.
func (c *Client) maxRetries() int {
	return max(c.cfg.MaxRetries, 0)
}

// execute runs req, retrying transient failures up to MaxRetries times with a
// fixed delay before each retry.
func (c *Client) execute(ctx context.Context, req *request) ([]byte, error) {
	op := func() ([]byte, error) {
		data, err := c.attempt(ctx, req)
		if err == nil {
			return data, nil
		}

		var apiErr *Error
		if !errors.As(err, &apiErr) {
			return nil, backoff.Permanent(err)
		}
		apiErr.Retries = req.retryCount

		if apiErr.Kind != KindTransient {
			return nil, backoff.Permanent(apiErr)
		}

		return nil, apiErr
	}

	notify := func(err error, delay time.Duration) {
		req.retryCount++

		telemetry.GetMetrics().APIRetriesTotal.Add(ctx, 1)
		log.Warn().
			Err(err).
			Str("method", req.method).
			Str("path", req.path).
			Int("retry", req.retryCount).
			Int("max_retries", c.maxRetries()).
			Dur("delay", delay).
			Msg("Retrying request")
	}

	data, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(c.maxRetries()+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return data, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}

	// cancelled while waiting for the next attempt
	if cause := context.Cause(ctx); cause != nil && err == cause {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}

	return nil, err
}
