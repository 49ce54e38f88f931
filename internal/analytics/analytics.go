// Package analytics transforms normalized lead rows into the chart-ready
// views consumed by the dashboard frontend. Every function here is pure
// and safe to run concurrently for any number of tenants.
package analytics

import (
	"bytes"
	"encoding/csv"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leozw/leadboard/internal/fetcher"
)

const dateLayout = "2006-01-02"

// Filters restricts the rows feeding every aggregate. All criteria compose
// with AND semantics; dates are inclusive on both ends.
type Filters struct {
	StartDate string `form:"start_date" json:"start_date"`
	EndDate   string `form:"end_date" json:"end_date"`
	City      string `form:"city" json:"city"`
	Provider  string `form:"provider" json:"provider"`
}

// Canonical renders the filters in a fixed order with a sentinel for
// absent values, so {} and {city: ""} produce the same cache key.
func (f Filters) Canonical() string {
	norm := func(v string) string {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			return "-"
		}
		return v
	}
	return "start=" + norm(f.StartDate) +
		":end=" + norm(f.EndDate) +
		":city=" + norm(f.City) +
		":provider=" + norm(f.Provider)
}

// Active reports whether any filter is set.
func (f Filters) Active() bool {
	return f.StartDate != "" || f.EndDate != "" || f.City != "" || f.Provider != ""
}

type Overview struct {
	TotalLeads   int     `json:"total_leads"`
	DailyAverage float64 `json:"daily_average"`
	Growth       float64 `json:"growth_percent"`
	QualityRate  float64 `json:"quality_rate_percent"`
	DistinctDays int     `json:"distinct_days"`
}

type TimePoint struct {
	Date  string `json:"date"`
	Leads int    `json:"leads"`
}

type ChannelCount struct {
	Channel string  `json:"channel"`
	Leads   int     `json:"leads"`
	Percent float64 `json:"percent"`
}

type HourCount struct {
	Hour  int `json:"hour"`
	Leads int `json:"leads"`
}

type PlaceCount struct {
	Name    string  `json:"name"`
	Leads   int     `json:"leads"`
	Percent float64 `json:"percent"`
}

// LeadView is one filtered row with a stable positional id for frontend
// keying.
type LeadView struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	Provider string `json:"provider"`
	Channel  string `json:"channel"`
	Date     string `json:"date"`
}

// Dataset bundles the six chart views for one tenant and filter set. This
// is the unit stored in the per-domain cache.
type Dataset struct {
	Overview         Overview       `json:"overview"`
	TimeSeries       []TimePoint    `json:"time_series"`
	ChannelBreakdown []ChannelCount `json:"channel_breakdown"`
	HourlyHistogram  []HourCount    `json:"hourly_histogram"`
	TopCities        []PlaceCount   `json:"top_cities"`
	TopProviders     []PlaceCount   `json:"top_providers"`
	Leads            []LeadView     `json:"leads"`
	FiltersActive    bool           `json:"filters_active"`
}

// Aggregate computes all views over the filtered rows. Zero rows after
// filtering yields well-formed empty structures, never an error.
func Aggregate(rows []fetcher.Lead, filters Filters, topN int) *Dataset {
	filtered := applyFilters(rows, filters)

	return &Dataset{
		Overview:         buildOverview(filtered),
		TimeSeries:       buildTimeSeries(filtered),
		ChannelBreakdown: buildChannelBreakdown(filtered),
		HourlyHistogram:  buildHourlyHistogram(filtered),
		TopCities:        buildTopValues(filtered, func(l fetcher.Lead) string { return l.City }, topN),
		TopProviders:     buildTopValues(filtered, func(l fetcher.Lead) string { return l.Provider }, topN),
		Leads:            buildLeadList(filtered),
		FiltersActive:    filters.Active(),
	}
}

func applyFilters(rows []fetcher.Lead, filters Filters) []fetcher.Lead {
	start, hasStart := parseDate(filters.StartDate)
	end, hasEnd := parseDate(filters.EndDate)
	city := strings.ToLower(strings.TrimSpace(filters.City))
	provider := strings.ToLower(strings.TrimSpace(filters.Provider))

	out := make([]fetcher.Lead, 0, len(rows))
	for _, row := range rows {
		if hasStart || hasEnd {
			if row.ReceivedAt == nil {
				continue
			}
			day := dateOnly(*row.ReceivedAt)
			if hasStart && day.Before(start) {
				continue
			}
			if hasEnd && day.After(end) {
				continue
			}
		}
		if city != "" && strings.ToLower(row.City) != city {
			continue
		}
		if provider != "" && strings.ToLower(row.Provider) != provider {
			continue
		}
		out = append(out, row)
	}
	return out
}

func buildOverview(rows []fetcher.Lead) Overview {
	total := len(rows)
	if total == 0 {
		return Overview{}
	}

	days := make(map[string]int)
	var dates []string
	quality := 0
	for _, row := range rows {
		if row.ReceivedAt != nil {
			key := row.ReceivedAt.Format(dateLayout)
			if _, ok := days[key]; !ok {
				dates = append(dates, key)
			}
			days[key]++
		}
		if row.Email != "" && row.Phone != "" {
			quality++
		}
	}

	divisor := len(days)
	if divisor == 0 {
		divisor = 1
	}

	return Overview{
		TotalLeads:   total,
		DailyAverage: round1(float64(total) / float64(divisor)),
		Growth:       growth(dates, days),
		QualityRate:  round1(float64(quality) / float64(total) * 100),
		DistinctDays: len(days),
	}
}

// growth naively compares lead counts in the first and second half of the
// observed date range. Fewer than two distinct days is insufficient data.
func growth(dates []string, perDay map[string]int) float64 {
	if len(dates) < 2 {
		return 0
	}
	sort.Strings(dates)

	mid := len(dates) / 2
	first, second := 0, 0
	for _, d := range dates[:mid] {
		first += perDay[d]
	}
	for _, d := range dates[mid:] {
		second += perDay[d]
	}
	if first == 0 {
		return 0
	}
	return round1(float64(second-first) / float64(first) * 100)
}

func buildTimeSeries(rows []fetcher.Lead) []TimePoint {
	perDay := make(map[string]int)
	for _, row := range rows {
		if row.ReceivedAt == nil {
			continue
		}
		perDay[row.ReceivedAt.Format(dateLayout)]++
	}

	out := make([]TimePoint, 0, len(perDay))
	for date, count := range perDay {
		out = append(out, TimePoint{Date: date, Leads: count})
	}
	// Dates with zero leads are not synthesized; the frontend tolerates gaps.
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func buildChannelBreakdown(rows []fetcher.Lead) []ChannelCount {
	counts := make(map[string]int)
	var order []string
	for _, row := range rows {
		if row.Channel == "" {
			continue
		}
		if _, ok := counts[row.Channel]; !ok {
			order = append(order, row.Channel)
		}
		counts[row.Channel]++
	}

	total := len(rows)
	out := make([]ChannelCount, 0, len(order))
	for _, channel := range order {
		out = append(out, ChannelCount{
			Channel: channel,
			Leads:   counts[channel],
			Percent: percent(counts[channel], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Leads > out[j].Leads })
	return out
}

func buildHourlyHistogram(rows []fetcher.Lead) []HourCount {
	var buckets [24]int
	for _, row := range rows {
		if row.ReceivedAt == nil {
			continue
		}
		buckets[row.ReceivedAt.Hour()]++
	}

	out := make([]HourCount, 24)
	for hour, count := range buckets {
		out[hour] = HourCount{Hour: hour, Leads: count}
	}
	return out
}

// buildTopValues counts rows per distinct value of one dimension, sorted
// descending with ties kept in first-encountered order, truncated to topN.
// Rows with an empty value are excluded from both the list and the
// percentage denominator.
func buildTopValues(rows []fetcher.Lead, value func(fetcher.Lead) string, topN int) []PlaceCount {
	counts := make(map[string]int)
	var order []string
	total := 0
	for _, row := range rows {
		v := value(row)
		if v == "" {
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
		total++
	}

	out := make([]PlaceCount, 0, len(order))
	for _, name := range order {
		out = append(out, PlaceCount{
			Name:    name,
			Leads:   counts[name],
			Percent: percent(counts[name], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Leads > out[j].Leads })

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func buildLeadList(rows []fetcher.Lead) []LeadView {
	out := make([]LeadView, 0, len(rows))
	for i, row := range rows {
		date := ""
		if row.ReceivedAt != nil {
			date = row.ReceivedAt.Format(dateLayout)
		}
		out = append(out, LeadView{
			ID:       i + 1,
			Name:     row.Name,
			Email:    row.Email,
			Phone:    row.Phone,
			City:     row.City,
			Provider: row.Provider,
			Channel:  row.Channel,
			Date:     date,
		})
	}
	return out
}

// CSV renders the filtered lead list as a CSV document for export.
func CSV(leads []LeadView) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"id", "name", "email", "phone", "city", "provider", "channel", "date"}); err != nil {
		return nil, err
	}
	for _, lead := range leads {
		record := []string{
			strconv.Itoa(lead.ID),
			lead.Name,
			lead.Email,
			lead.Phone,
			lead.City,
			lead.Provider,
			lead.Channel,
			lead.Date,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(dateLayout, value)
	if err != nil {
		// Unparseable filter dates are ignored rather than failing the
		// request.
		return time.Time{}, false
	}
	return ts, true
}

func dateOnly(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
