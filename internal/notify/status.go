// Package notify reads email delivery status from the emailer service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/rent-ledger/internal/term"
)

// Delivery is one email sent for a record.
type Delivery struct {
	SentTo   string    `json:"sent_to"`
	SentDate time.Time `json:"sent_date"`
}

// RecordStatus maps a template name to the emails sent with it.
type RecordStatus map[string][]Delivery

// Status maps a record (tenant) ID to its delivery status.
type Status map[string]RecordStatus

// StatusEntry is the emailer's wire format for one delivery.
type StatusEntry struct {
	RecordID     string    `json:"recordId"`
	TemplateName string    `json:"templateName"`
	SentTo       string    `json:"sentTo"`
	SentDate     time.Time `json:"sentDate"`
}

// Group folds flat status entries into a per-record, per-template map.
func Group(entries []StatusEntry) Status {
	out := make(Status)
	for _, e := range entries {
		rec, ok := out[e.RecordID]
		if !ok {
			rec = make(RecordStatus)
			out[e.RecordID] = rec
		}
		rec[e.TemplateName] = append(rec[e.TemplateName], Delivery{SentTo: e.SentTo, SentDate: e.SentDate})
	}
	return out
}

// RequestInfo carries the caller headers forwarded to the emailer.
type RequestInfo struct {
	Authorization  string
	OrganizationID string
	Locale         string
}

// StatusSource returns delivery status for a term range. end may be zero.
type StatusSource interface {
	Status(ctx context.Context, info RequestInfo, start, end term.Term) (Status, error)
}

// HTTPSource queries GET {baseURL}/status/{start}[/{end}].
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a status source for the emailer at baseURL.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Status implements StatusSource.
func (s *HTTPSource) Status(ctx context.Context, info RequestInfo, start, end term.Term) (Status, error) {
	url := fmt.Sprintf("%s/status/%s", s.baseURL, start)
	if end != 0 {
		url = fmt.Sprintf("%s/%s", url, end)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("Status: new request: %w", err)
	}
	if info.Authorization != "" {
		req.Header.Set("authorization", info.Authorization)
	}
	if info.OrganizationID != "" {
		req.Header.Set("organizationid", info.OrganizationID)
	}
	if info.Locale != "" {
		req.Header.Set("Accept-Language", info.Locale)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Status: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Status: emailer returned %d", resp.StatusCode)
	}

	var entries []StatusEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("Status: decode: %w", err)
	}
	return Group(entries), nil
}

// BestEffort returns the status from src, or an empty map when src is nil or fails.
func BestEffort(ctx context.Context, log zerolog.Logger, src StatusSource, info RequestInfo, start, end term.Term) Status {
	if src == nil {
		return Status{}
	}
	status, err := src.Status(ctx, info, start, end)
	if err != nil {
		log.Warn().Err(err).Str("start_term", start.String()).Msg("email status unavailable")
		return Status{}
	}
	return status
}
