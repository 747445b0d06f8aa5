package ticketquery

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// QueueRef is either a concrete queue or the "unassigned" variant that
// matches tickets without a queue.
type QueueRef struct {
	id         int64
	unassigned bool
}

// QueueID references a concrete queue.
func QueueID(id int64) QueueRef { return QueueRef{id: id} }

// Unassigned references tickets that have no queue.
func Unassigned() QueueRef { return QueueRef{unassigned: true} }

// IsUnassigned reports whether the reference is the unassigned variant.
func (r QueueRef) IsUnassigned() bool { return r.unassigned }

// ID returns the queue id; ok is false for the unassigned variant.
func (r QueueRef) ID() (id int64, ok bool) {
	if r.unassigned {
		return 0, false
	}
	return r.id, true
}

// MarshalJSON renders the unassigned variant as null, matching what clients send.
func (r QueueRef) MarshalJSON() ([]byte, error) {
	if r.unassigned {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

// QueueList is an optional set of queue references.
type QueueList struct {
	Present bool
	Refs    []QueueRef
}

// Empty reports whether no queue was requested, either by omission or by
// an explicitly empty list.
func (l QueueList) Empty() bool { return len(l.Refs) == 0 }

// UserLookup loads the requesting agent together with its queue assignments.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// ResolveScope computes the queues a user may list. An explicit, non-empty
// request always wins. With filterByUserQueue set and nothing requested,
// the user's own queues plus the unassigned variant are returned.
func ResolveScope(ctx context.Context, users UserLookup, userID int64, filterByUserQueue bool, requested QueueList) (QueueList, error) {
	if !filterByUserQueue || !requested.Empty() {
		return requested, nil
	}

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueList{}, apperrors.NewUserNotFound(userID)
		}
		return QueueList{}, apperrors.NewPersistenceFailure(err)
	}

	refs := make([]QueueRef, 0, len(user.QueueIDs)+1)
	for _, id := range user.QueueIDs {
		refs = append(refs, QueueID(id))
	}
	refs = append(refs, Unassigned())
	return QueueList{Present: true, Refs: refs}, nil
}
