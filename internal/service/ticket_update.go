package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// NullableID is an optional id field that distinguishes absent, null and set.
type NullableID struct {
	Set   bool
	Value *int64
}

// UnmarshalJSON records presence and accepts null or an integer.
func (n *NullableID) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// TicketUpdateInput is a partial ticket change plus post-commit flags.
// The flags never reach storage.
type TicketUpdateInput struct {
	Status     *domain.TicketStatus `json:"status"`
	UserID     NullableID           `json:"userId"`
	QueueID    NullableID           `json:"queueId"`
	WhatsappID *int64               `json:"whatsappId"`
	CategoryID NullableID           `json:"categoryId"`

	WithFarewellMessage Flag `json:"withFarewellMessage"`
	LeftGroup           Flag `json:"leftGroup"`
}

// Flag is an optional boolean. A supplied null reads as false.
type Flag struct {
	Set   bool
	Value bool
}

// UnmarshalJSON records presence and accepts null or a boolean.
func (f *Flag) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		f.Value = false
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// SendFarewell defaults to true when the flag is absent.
func (in TicketUpdateInput) SendFarewell() bool {
	return !in.WithFarewellMessage.Set || in.WithFarewellMessage.Value
}

// LeaveGroup defaults to false.
func (in TicketUpdateInput) LeaveGroup() bool {
	return in.LeftGroup.Set && in.LeftGroup.Value
}

// ParseTicketUpdate decodes a partial update body. Unknown fields, wrong
// types and trailing data are rejected.
func ParseTicketUpdate(body []byte) (TicketUpdateInput, error) {
	var input TicketUpdateInput
	if len(bytes.TrimSpace(body)) == 0 {
		return input, apperrors.NewMalformedPartialUpdate("empty update body", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return TicketUpdateInput{}, apperrors.NewMalformedPartialUpdate("invalid update payload", err)
	}
	if dec.More() {
		return TicketUpdateInput{}, apperrors.NewMalformedPartialUpdate("invalid update payload", errors.New("unexpected trailing data"))
	}
	if input.Status != nil && !input.Status.Valid() {
		return TicketUpdateInput{}, apperrors.NewMalformedPartialUpdate("invalid update payload", fmt.Errorf("unknown status %q", *input.Status))
	}
	return input, nil
}

// apply copies the set fields onto the ticket.
func (in TicketUpdateInput) apply(ticket *domain.Ticket) {
	if in.Status != nil {
		ticket.Status = *in.Status
	}
	if in.UserID.Set {
		ticket.UserID = in.UserID.Value
	}
	if in.QueueID.Set {
		ticket.QueueID = in.QueueID.Value
	}
	if in.WhatsappID != nil {
		ticket.WhatsappID = *in.WhatsappID
	}
	if in.CategoryID.Set {
		ticket.CategoryID = in.CategoryID.Value
	}
}
