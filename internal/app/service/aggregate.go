package service

import (
	"math"
	"sort"
	"time"

	"github.com/sifan077/linkpulse/internal/app/clientinfo"
	"github.com/sifan077/linkpulse/internal/app/model"
)

// Granularity selects the time series bucket width.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"

	hourBuckets = 24
	dayBuckets  = 7
)

// ParseGranularity accepts "hour" or "day"; empty means hour.
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case "", GranularityHour:
		return GranularityHour, true
	case GranularityDay:
		return GranularityDay, true
	default:
		return "", false
	}
}

// SummaryOptions narrows a summary. From is inclusive, To exclusive.
type SummaryOptions struct {
	From        *time.Time
	To          *time.Time
	Granularity Granularity
	// Location defines "today" and bucket boundaries. Defaults to UTC.
	Location *time.Location
}

// Bucket is one slot of the time series.
type Bucket struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"`
	Count int       `json:"count"`
}

// Count is one row of an ordered breakdown.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Summary is computed from the click log on demand.
type Summary struct {
	LinkID            string         `json:"link_id"`
	TotalClicks       int            `json:"total_clicks"`
	UniqueVisitors    int            `json:"unique_visitors"`
	UniqueCountries   int            `json:"unique_countries"`
	UniqueCities      int            `json:"unique_cities"`
	ClicksToday       int            `json:"clicks_today"`
	DeviceBreakdown   map[string]int `json:"device_breakdown"`
	BrowserBreakdown  map[string]int `json:"browser_breakdown"`
	OSBreakdown       map[string]int `json:"os_breakdown"`
	TopCountry        string         `json:"top_country,omitempty"`
	CountryBreakdown  []Count        `json:"country_breakdown"`
	ReferrerBreakdown []Count        `json:"referrer_breakdown"`
	Granularity       Granularity    `json:"granularity"`
	TimeSeries        []Bucket       `json:"time_series"`
	ClicksByDate      map[string]int `json:"clicks_by_date"`
	LastClickedAt     *time.Time     `json:"last_clicked_at,omitempty"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// Aggregate summarises events, which must already be filtered to the range
// and ordered by occurrence. It does no I/O.
func Aggregate(linkID string, events []model.ClickEvent, opts SummaryOptions, now time.Time) *Summary {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	granularity := opts.Granularity
	if granularity == "" {
		granularity = GranularityHour
	}
	now = now.In(loc)
	today := startOfDay(now)

	var (
		devices   = newTally()
		browsers  = newTally()
		systems   = newTally()
		countries = newTally()
		referrers = newTally()
		visitors  = make(map[string]struct{})
		cities    = make(map[string]struct{})
		byDate    = make(map[string]int)
		last      time.Time
		clicksDay int
	)

	for _, e := range events {
		at := e.OccurredAt.In(loc)

		devices.add(orDefault(e.Device, clientinfo.Unknown))
		browsers.add(orDefault(e.Browser, clientinfo.Unknown))
		systems.add(orDefault(e.OS, clientinfo.Unknown))
		referrers.add(orDefault(e.Referrer, model.DirectReferrer))
		if e.Country != "" {
			countries.add(e.Country)
		}
		if e.City != "" {
			cities[e.City] = struct{}{}
		}
		visitors[e.VisitorHash] = struct{}{}
		byDate[at.Format("2006-01-02")]++

		if !at.Before(today) {
			clicksDay++
		}
		if at.After(last) {
			last = at
		}
	}

	total := len(events)
	s := &Summary{
		LinkID:            linkID,
		TotalClicks:       total,
		UniqueVisitors:    len(visitors),
		UniqueCountries:   countries.distinct(),
		UniqueCities:      len(cities),
		ClicksToday:       clicksDay,
		DeviceBreakdown:   devices.percentages(total),
		BrowserBreakdown:  browsers.percentages(total),
		OSBreakdown:       systems.percentages(total),
		CountryBreakdown:  countries.ordered(),
		ReferrerBreakdown: referrers.ordered(),
		Granularity:       granularity,
		TimeSeries:        timeSeries(events, granularity, now, loc),
		ClicksByDate:      byDate,
		GeneratedAt:       now,
	}
	if len(s.CountryBreakdown) > 0 {
		s.TopCountry = s.CountryBreakdown[0].Value
	}
	if !last.IsZero() {
		s.LastClickedAt = &last
	}
	return s
}

func timeSeries(events []model.ClickEvent, granularity Granularity, now time.Time, loc *time.Location) []Bucket {
	var buckets []Bucket
	switch granularity {
	case GranularityDay:
		today := startOfDay(now)
		buckets = make([]Bucket, dayBuckets)
		for i := range buckets {
			start := today.AddDate(0, 0, i-(dayBuckets-1))
			buckets[i] = Bucket{Start: start, Label: start.Format("Mon")}
		}
	default:
		hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, loc)
		buckets = make([]Bucket, hourBuckets)
		for i := range buckets {
			start := hour.Add(time.Duration(i-(hourBuckets-1)) * time.Hour)
			buckets[i] = Bucket{Start: start, Label: start.Format("15:04")}
		}
	}

	for _, e := range events {
		at := e.OccurredAt.In(loc)
		// Buckets are few; a linear scan keeps DST boundaries correct.
		for i := len(buckets) - 1; i >= 0; i-- {
			if at.Before(buckets[i].Start) {
				continue
			}
			if i == len(buckets)-1 {
				if at.Before(bucketEnd(buckets[i].Start, granularity)) {
					buckets[i].Count++
				}
			} else {
				buckets[i].Count++
			}
			break
		}
	}
	return buckets
}

func bucketEnd(start time.Time, granularity Granularity) time.Time {
	if granularity == GranularityDay {
		return start.AddDate(0, 0, 1)
	}
	return start.Add(time.Hour)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// tally counts values while remembering first-seen order for tie breaks.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(v string) {
	if _, ok := t.counts[v]; !ok {
		t.order = append(t.order, v)
	}
	t.counts[v]++
}

func (t *tally) distinct() int {
	return len(t.order)
}

func (t *tally) ordered() []Count {
	out := make([]Count, 0, len(t.order))
	for _, v := range t.order {
		out = append(out, Count{Value: v, Count: t.counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// percentages rounds each share half-up on its own, so the values need not
// sum to exactly 100.
func (t *tally) percentages(total int) map[string]int {
	out := make(map[string]int, len(t.order))
	if total == 0 {
		return out
	}
	for v, n := range t.counts {
		out[v] = int(math.Floor(float64(n)*100/float64(total) + 0.5))
	}
	return out
}
