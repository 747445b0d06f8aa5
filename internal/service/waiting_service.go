package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// WaitingService backfills how long customers have been waiting for a reply.
type WaitingService struct {
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	maxLimit int
	logger   *zap.Logger
}

// WaitingDependencies bundles collaborators for the waiting service.
type WaitingDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	MaxLimit    int
	Logger      *zap.Logger
}

// WaitingBatchResult summarises one processed page. The id fields are
// omitted for an empty page.
type WaitingBatchResult struct {
	Count   int    `json:"count"`
	FirstID *int64 `json:"firstId,omitempty"`
	LastID  *int64 `json:"lastId,omitempty"`
	Updated int    `json:"updated"`
}

// NewWaitingService constructs the service.
func NewWaitingService(deps WaitingDependencies) *WaitingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitingService{
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		maxLimit: deps.MaxLimit,
		logger:   logger,
	}
}

// ParseBatchParams decodes a {"limit","offset"} body. Both fields are
// required non-negative integers.
func ParseBatchParams(body []byte) (offset, limit int, err error) {
	var raw struct {
		Limit  json.RawMessage `json:"limit"`
		Offset json.RawMessage `json:"offset"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&raw); err != nil {
		return 0, 0, apperrors.NewInvalidParams("limit and offset must be integers", nil)
	}

	limit, ok := nonNegativeInt(raw.Limit)
	if !ok {
		return 0, 0, apperrors.NewInvalidParams("limit must be a non-negative integer", map[string]any{"field": "limit"})
	}
	offset, ok = nonNegativeInt(raw.Offset)
	if !ok {
		return 0, 0, apperrors.NewInvalidParams("offset must be a non-negative integer", map[string]any{"field": "offset"})
	}
	return offset, limit, nil
}

// Run processes tickets [offset, offset+limit) ordered by id. Tickets that
// already have a waiting timestamp are left untouched, so re-running a page
// without new messages writes nothing.
func (s *WaitingService) Run(ctx context.Context, offset, limit int) (*WaitingBatchResult, error) {
	if offset < 0 || limit < 0 {
		return nil, apperrors.NewInvalidParams("limit and offset must be non-negative", map[string]any{"limit": limit, "offset": offset})
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		return nil, apperrors.NewInvalidParams("limit exceeds maximum batch size", map[string]any{"limit": limit, "max": s.maxLimit})
	}

	result := &WaitingBatchResult{}
	if limit == 0 {
		return result, nil
	}

	page, err := s.tickets.ListPage(ctx, offset, limit)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	result.Count = len(page)
	if len(page) == 0 {
		return result, nil
	}
	first, last := page[0].ID, page[len(page)-1].ID
	result.FirstID, result.LastID = &first, &last

	for _, ticket := range page {
		if ticket.BeenWaitingSinceTimestamp != nil {
			continue
		}
		msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, apperrors.NewPersistenceFailure(err)
		}
		since, waiting := waitingSince(msgs)
		if !waiting {
			continue
		}
		changed, err := s.tickets.SetBeenWaitingSince(ctx, ticket.ID, since)
		if err != nil {
			return nil, apperrors.NewPersistenceFailure(err)
		}
		if changed {
			result.Updated++
		}
	}

	s.logger.Info("waiting batch processed",
		zap.Int("offset", offset),
		zap.Int("count", result.Count),
		zap.Int("updated", result.Updated))
	return result, nil
}

// waitingSince returns the timestamp of the oldest inbound message in the
// trailing run of unanswered inbound messages. Messages must be ordered by
// timestamp ascending.
func waitingSince(msgs []domain.Message) (int64, bool) {
	if len(msgs) == 0 || msgs[len(msgs)-1].FromMe {
		return 0, false
	}
	i := len(msgs) - 1
	for i > 0 && !msgs[i-1].FromMe {
		i--
	}
	return msgs[i].Timestamp, true
}

// nonNegativeInt accepts a bare JSON integer; quoted numbers, fractions
// and null are rejected.
func nonNegativeInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
