package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/observability"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

func TestHookRunnerContinuesAfterFailure(t *testing.T) {
	metrics := observability.NewMetrics()
	runner := hookRunner{timeout: time.Second, logger: zap.NewNop(), metrics: metrics}

	var order []string
	failures := runner.run(context.Background(), 1,
		hook{name: hookFarewell, run: func(context.Context) error {
			order = append(order, hookFarewell)
			return errors.New("gateway down")
		}},
		hook{name: hookLeave, run: func(context.Context) error {
			order = append(order, hookLeave)
			panic("boom")
		}},
		hook{name: hookBroadcast, run: func(context.Context) error {
			order = append(order, hookBroadcast)
			return nil
		}},
	)

	if len(order) != 3 || order[2] != hookBroadcast {
		t.Fatalf("order = %v, want every hook to run", order)
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %v, want 2", failures)
	}
	for _, err := range failures {
		if !apperrors.HasCode(err, apperrors.CodeUpstreamUnavailable) {
			t.Errorf("err = %v, want %s", err, apperrors.CodeUpstreamUnavailable)
		}
	}
	snapshot := metrics.Snapshot()
	if snapshot.HookFailures[hookFarewell] != 1 || snapshot.HookFailures[hookLeave] != 1 || snapshot.HookFailures[hookBroadcast] != 0 {
		t.Fatalf("hook failures = %v", snapshot.HookFailures)
	}
}

func TestHookRunnerDetachesFromRequestCancellation(t *testing.T) {
	runner := hookRunner{timeout: 50 * time.Millisecond, logger: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawCancel bool
	var deadline bool
	runner.run(ctx, 1, hook{name: hookBroadcast, run: func(hookCtx context.Context) error {
		sawCancel = hookCtx.Err() != nil
		_, deadline = hookCtx.Deadline()
		return nil
	}})

	if sawCancel {
		t.Fatal("hook context must survive request cancellation")
	}
	if !deadline {
		t.Fatal("hook context must carry its own deadline")
	}
}

func TestHookRunnerKeepsDomainErrorCode(t *testing.T) {
	runner := hookRunner{logger: zap.NewNop()}

	failures := runner.run(context.Background(), 1, hook{name: hookFarewell, run: func(context.Context) error {
		return apperrors.NewTicketNotFound(1)
	}})
	if len(failures) != 1 || !apperrors.HasCode(failures[0], apperrors.CodeTicketNotFound) {
		t.Fatalf("failures = %v", failures)
	}
}
