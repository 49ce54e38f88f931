// Package fetcher retrieves a tenant's raw lead rows from the external
// spreadsheet provider and normalizes them for aggregation.
package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrSourceUnreachable covers network failures, timeouts and non-2xx
	// responses from the provider.
	ErrSourceUnreachable = errors.New("data source unreachable")
	// ErrSourceEmpty means the provider answered but returned no usable rows.
	ErrSourceEmpty = errors.New("data source empty")
	// ErrSourceMalformed means the tabular payload could not be parsed;
	// the wrapped message carries the offending row context.
	ErrSourceMalformed = errors.New("data source malformed")
)

// Lead is one normalized row. Missing source values become empty strings,
// and an unparseable timestamp becomes a nil ReceivedAt; no NaN-style
// sentinel ever crosses this boundary.
type Lead struct {
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	City       string     `json:"city"`
	Provider   string     `json:"provider"`
	Channel    string     `json:"channel"`
	ReceivedAt *time.Time `json:"received_at"`
}

// columnAliases maps source header names (English and Portuguese variants)
// to normalized fields.
var columnAliases = map[string]string{
	"name":             "name",
	"nome":             "name",
	"email":            "email",
	"phone":            "phone",
	"telefone":         "phone",
	"city":             "city",
	"cidade":           "city",
	"isp":              "provider",
	"provedor":         "provider",
	"utm_medium":       "channel",
	"canal":            "channel",
	"received_at":      "received_at",
	"data_recebimento": "received_at",
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
	"02/01/2006",
}

// Fetcher downloads CSV exports. It performs no retries; retry policy
// belongs to the caller.
type Fetcher struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// New builds a fetcher whose requests are bounded by timeout so one slow
// tenant cannot stall the workers serving others.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Fetch downloads and normalizes the rows for one data source id.
func (f *Fetcher) Fetch(ctx context.Context, sheetID string) ([]Lead, error) {
	url := fmt.Sprintf(f.baseURL, sheetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrSourceUnreachable, resp.StatusCode)
	}

	leads, err := parse(resp.Body)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched sheet",
		zap.String("sheet_id", sheetID),
		zap.Int("rows", len(leads)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return leads, nil
}

// parse reads the CSV payload and normalizes each row. Rows missing an
// identity field (name or email) are dropped.
func parse(r io.Reader) ([]Lead, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no header row", ErrSourceEmpty)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrSourceMalformed, err)
	}

	fields := make(map[int]string, len(header))
	seen := make(map[string]bool)
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if field, ok := columnAliases[name]; ok {
			fields[i] = field
			seen[field] = true
		}
	}
	for _, required := range []string{"name", "email"} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: required column %q not found in header", ErrSourceMalformed, required)
		}
	}

	var leads []Lead
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, fmt.Errorf("%w: line %d: %v", ErrSourceMalformed, pe.Line, pe.Err)
			}
			return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
		}
		rows++

		var lead Lead
		for i, value := range record {
			field, ok := fields[i]
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			switch field {
			case "name":
				lead.Name = value
			case "email":
				lead.Email = value
			case "phone":
				lead.Phone = value
			case "city":
				lead.City = value
			case "provider":
				lead.Provider = value
			case "channel":
				lead.Channel = value
			case "received_at":
				lead.ReceivedAt = parseTimestamp(value)
			}
		}

		if lead.Name == "" || lead.Email == "" {
			continue
		}
		leads = append(leads, lead)
	}

	if rows == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrSourceEmpty)
	}
	if len(leads) == 0 {
		return nil, fmt.Errorf("%w: no valid rows after normalization", ErrSourceEmpty)
	}
	return leads, nil
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}
