package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/observability"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// Post-commit hook names, in execution order.
const (
	hookFarewell  = "farewell"
	hookLeave     = "leave-group"
	hookBroadcast = "broadcast"
)

// hook is a best-effort side effect that runs after a ticket write is durable.
type hook struct {
	name string
	run  func(ctx context.Context) error
}

// hookRunner executes post-commit hooks in order. Each hook gets its own
// deadline on a context detached from request cancellation, and a failing
// hook never stops the ones after it.
type hookRunner struct {
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

func (r hookRunner) run(ctx context.Context, ticketID int64, hooks ...hook) []error {
	base := context.WithoutCancel(ctx)

	var failures []error
	for _, h := range hooks {
		if err := r.runOne(base, h); err != nil {
			failures = append(failures, err)
			code := apperrors.CodeUpstreamUnavailable
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) {
				code = domainErr.Code
			}
			r.logger.Error("post-commit hook failed",
				zap.String("hook", h.name),
				zap.Int64("ticket_id", ticketID),
				zap.String("code", code),
				zap.Error(err))
			r.metrics.RecordHookFailure(h.name)
		}
	}
	return failures
}

func (r hookRunner) runOne(ctx context.Context, h hook) (err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = apperrors.NewUpstreamUnavailable(h.name, errors.New("hook panicked"))
		}
	}()

	if err := h.run(ctx); err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return err
		}
		return apperrors.NewUpstreamUnavailable(h.name, err)
	}
	return nil
}
