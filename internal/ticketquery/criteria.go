// Package ticketquery turns raw listing parameters into typed criteria, an
// access scope and a deterministic query description for ticket storage.
package ticketquery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// Raw listing parameter names.
const (
	ParamSearch                 = "searchParam"
	ParamPageNumber             = "pageNumber"
	ParamStatus                 = "status"
	ParamDate                   = "date"
	ParamShowAll                = "showAll"
	ParamQueueIDs               = "queueIds"
	ParamWhatsappIDs            = "whatsappIds"
	ParamMarketingCampaignIDs   = "marketingCampaignIds"
	ParamTypeIDs                = "typeIds"
	ParamWithUnreadMessages     = "withUnreadMessages"
	ParamShowOnlyMyGroups       = "showOnlyMyGroups"
	ParamCategoryID             = "categoryId"
	ParamShowOnlyWaitingTickets = "showOnlyWaitingTickets"
	ParamFilterByUserQueue      = "filterByUserQueue"
)

// DateLayout is the accepted format of the date filter.
const DateLayout = "2006-01-02"

// TicketType values accepted in typeIds.
const (
	TicketTypeIndividual = "individual"
	TicketTypeGroup      = "group"
)

// IDList is an optional set of identifiers. A zero value means the
// parameter was absent; Present with no Values means an explicitly empty set.
type IDList struct {
	Present bool
	Values  []int64
}

// Restricts reports whether the list takes part in filtering.
func (l IDList) Restricts() bool { return l.Present }

// StringList is the string counterpart of IDList.
type StringList struct {
	Present bool
	Values  []string
}

// Criteria is the typed form of a listing request.
type Criteria struct {
	SearchParam            string
	PageNumber             int
	Status                 domain.TicketStatus
	Date                   *time.Time
	ShowAll                bool
	QueueIDs               QueueList
	WhatsappIDs            IDList
	MarketingCampaignIDs   IDList
	TypeIDs                StringList
	WithUnreadMessages     bool
	ShowOnlyMyGroups       bool
	CategoryID             *int64
	ShowOnlyWaitingTickets bool
	FilterByUserQueue      bool
}

// ParseCriteria builds Criteria from raw query parameters. An empty value
// counts as absent, so defaults apply.
func ParseCriteria(raw map[string]string) (Criteria, error) {
	criteria := Criteria{PageNumber: 1}

	if v, ok := raw[ParamSearch]; ok {
		criteria.SearchParam = strings.TrimSpace(v)
	}

	if v, ok := raw[ParamPageNumber]; ok && strings.TrimSpace(v) != "" {
		page, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || page < 1 {
			return Criteria{}, apperrors.NewInvalidPagination(v)
		}
		criteria.PageNumber = page
	}

	if v, ok := raw[ParamStatus]; ok && v != "" {
		status := domain.TicketStatus(v)
		if !status.Valid() {
			return Criteria{}, apperrors.NewMalformedFilter(ParamStatus, fmt.Errorf("unknown status %q", v))
		}
		criteria.Status = status
	}

	if v, ok := raw[ParamDate]; ok && v != "" {
		day, err := time.ParseInLocation(DateLayout, v, time.UTC)
		if err != nil {
			return Criteria{}, apperrors.NewMalformedFilter(ParamDate, err)
		}
		criteria.Date = &day
	}

	var err error
	bools := []struct {
		key    string
		target *bool
	}{
		{ParamShowAll, &criteria.ShowAll},
		{ParamWithUnreadMessages, &criteria.WithUnreadMessages},
		{ParamShowOnlyMyGroups, &criteria.ShowOnlyMyGroups},
		{ParamShowOnlyWaitingTickets, &criteria.ShowOnlyWaitingTickets},
		{ParamFilterByUserQueue, &criteria.FilterByUserQueue},
	}
	for _, b := range bools {
		if *b.target, err = parseBool(raw, b.key); err != nil {
			return Criteria{}, err
		}
	}

	if criteria.QueueIDs, err = parseQueueList(raw, ParamQueueIDs); err != nil {
		return Criteria{}, err
	}
	if criteria.WhatsappIDs, err = parseIDList(raw, ParamWhatsappIDs); err != nil {
		return Criteria{}, err
	}
	if criteria.MarketingCampaignIDs, err = parseIDList(raw, ParamMarketingCampaignIDs); err != nil {
		return Criteria{}, err
	}
	if criteria.TypeIDs, err = parseTypeList(raw, ParamTypeIDs); err != nil {
		return Criteria{}, err
	}

	if v, ok := raw[ParamCategoryID]; ok && v != "" {
		var id *int64
		if err := decodeStrict(v, &id); err != nil {
			return Criteria{}, apperrors.NewMalformedFilter(ParamCategoryID, err)
		}
		criteria.CategoryID = id
	}

	return criteria, nil
}

func parseBool(raw map[string]string, key string) (bool, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return false, nil
	}
	var parsed bool
	if err := decodeStrict(v, &parsed); err != nil {
		return false, apperrors.NewMalformedFilter(key, err)
	}
	return parsed, nil
}

func parseIDList(raw map[string]string, key string) (IDList, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return IDList{}, nil
	}
	var ids []int64
	if err := decodeStrict(v, &ids); err != nil {
		return IDList{}, apperrors.NewMalformedFilter(key, err)
	}
	if ids == nil {
		return IDList{}, apperrors.NewMalformedFilter(key, errors.New("expected a JSON array"))
	}
	return IDList{Present: true, Values: ids}, nil
}

func parseQueueList(raw map[string]string, key string) (QueueList, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return QueueList{}, nil
	}
	var ids []*int64
	if err := decodeStrict(v, &ids); err != nil {
		return QueueList{}, apperrors.NewMalformedFilter(key, err)
	}
	if ids == nil {
		return QueueList{}, apperrors.NewMalformedFilter(key, errors.New("expected a JSON array"))
	}
	refs := make([]QueueRef, 0, len(ids))
	for _, id := range ids {
		if id == nil {
			refs = append(refs, Unassigned())
			continue
		}
		refs = append(refs, QueueID(*id))
	}
	return QueueList{Present: true, Refs: refs}, nil
}

func parseTypeList(raw map[string]string, key string) (StringList, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return StringList{}, nil
	}
	var types []string
	if err := decodeStrict(v, &types); err != nil {
		return StringList{}, apperrors.NewMalformedFilter(key, err)
	}
	if types == nil {
		return StringList{}, apperrors.NewMalformedFilter(key, errors.New("expected a JSON array"))
	}
	for _, t := range types {
		if t != TicketTypeIndividual && t != TicketTypeGroup {
			return StringList{}, apperrors.NewMalformedFilter(key, fmt.Errorf("unknown ticket type %q", t))
		}
	}
	return StringList{Present: true, Values: types}, nil
}

// decodeStrict decodes a single JSON value and rejects trailing data.
func decodeStrict(v string, target any) error {
	dec := json.NewDecoder(bytes.NewBufferString(v))
	if err := dec.Decode(target); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}
