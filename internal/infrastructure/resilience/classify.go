package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

// ClassifyTransport treats connection level failures and ErrTemporary as
// retryable. Caller cancellation is neither retried nor counted against the
// breaker.
func ClassifyTransport(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if IsTransient(err) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func IsTransient(err error) bool {
	if domain.IsKind(err, domain.ErrTemporary) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ClassifyWith builds a classifier that retries failures matched by
// transient and an open breaker. Cancellation and deadlines are neither
// retried nor recorded.
func ClassifyWith(transient func(error) bool) ErrorClassifier {
	return func(err error) ErrorClassification {
		switch {
		case err == nil:
			return ErrorClassification{}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ErrorClassification{}
		case IsCircuitOpen(err), transient(err):
			return ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return ErrorClassification{RecordFailure: true}
		}
	}
}

// MarkTemporary wraps err in domain.ErrTemporary when classifier would retry
// it or the breaker rejected the call.
func MarkTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || classifier(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
