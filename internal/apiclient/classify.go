package apiclient

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
	"github.com/pscheid92/hashpulse/internal/platform/retry"
)

// ClassifyRetry retries transport failures and 5xx answers, backs off longer on 429 and
// stops on every other error, including caller cancellation.
func ClassifyRetry(err error) retry.Action {
	if errors.Is(err, context.Canceled) {
		return retry.Stop
	}

	var structured *apperrors.Error
	if !errors.As(err, &structured) {
		return retry.Stop
	}

	switch structured.Type {
	case apperrors.TypeTransport:
		return retry.Retry
	case apperrors.TypeAuth:
		switch {
		case structured.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case structured.StatusCode >= 500:
			return retry.Retry
		}
	}
	return retry.Stop
}
