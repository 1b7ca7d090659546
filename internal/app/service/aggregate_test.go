package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aggregateNow = time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC) // a Wednesday

func click(at time.Time, device, country string) model.ClickEvent {
	return model.ClickEvent{
		ID:          fmt.Sprintf("evt-%d", at.UnixNano()),
		OccurredAt:  at,
		Device:      device,
		Browser:     "Chrome",
		OS:          "Android",
		Country:     country,
		Referrer:    model.DirectReferrer,
		VisitorHash: device + country,
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate("link", nil, SummaryOptions{}, aggregateNow)

	assert.Zero(t, s.TotalClicks)
	assert.Zero(t, s.UniqueVisitors)
	assert.Empty(t, s.DeviceBreakdown)
	assert.Empty(t, s.TopCountry)
	assert.Nil(t, s.LastClickedAt)
	assert.Equal(t, GranularityHour, s.Granularity)
	require.Len(t, s.TimeSeries, 24)
	for _, b := range s.TimeSeries {
		assert.Zero(t, b.Count)
	}
}

func TestAggregate_Breakdowns(t *testing.T) {
	events := []model.ClickEvent{
		click(aggregateNow.Add(-3*time.Hour), "Mobile", "Kenya"),
		click(aggregateNow.Add(-2*time.Hour), "Mobile", "Ghana"),
		click(aggregateNow.Add(-time.Hour), "Desktop", "Ghana"),
	}
	events[2].City = "Accra"

	s := Aggregate("link", events, SummaryOptions{}, aggregateNow)

	assert.Equal(t, 3, s.TotalClicks)
	assert.Equal(t, 3, s.UniqueVisitors)
	assert.Equal(t, 2, s.UniqueCountries)
	assert.Equal(t, 1, s.UniqueCities)
	assert.Equal(t, map[string]int{"Mobile": 67, "Desktop": 33}, s.DeviceBreakdown)
	assert.Equal(t, map[string]int{"Chrome": 100}, s.BrowserBreakdown)
	assert.Equal(t, "Ghana", s.TopCountry)
	assert.Equal(t, []Count{{"Ghana", 2}, {"Kenya", 1}}, s.CountryBreakdown)
	assert.Equal(t, []Count{{model.DirectReferrer, 3}}, s.ReferrerBreakdown)
	require.NotNil(t, s.LastClickedAt)
	assert.True(t, s.LastClickedAt.Equal(aggregateNow.Add(-time.Hour)))
	assert.Equal(t, map[string]int{"2026-03-11": 3}, s.ClicksByDate)
	assert.Equal(t, 3, s.ClicksToday)
}

func TestAggregate_PercentagesRoundIndependently(t *testing.T) {
	var events []model.ClickEvent
	for i, d := range []string{"Mobile", "Desktop", "Tablet"} {
		events = append(events, click(aggregateNow.Add(-time.Duration(i)*time.Minute), d, ""))
	}

	s := Aggregate("link", events, SummaryOptions{}, aggregateNow)
	assert.Equal(t, map[string]int{"Mobile": 33, "Desktop": 33, "Tablet": 33}, s.DeviceBreakdown)
}

func TestAggregate_CountryTieKeepsFirstSeen(t *testing.T) {
	events := []model.ClickEvent{
		click(aggregateNow.Add(-4*time.Minute), "Mobile", "Peru"),
		click(aggregateNow.Add(-3*time.Minute), "Mobile", "Chile"),
		click(aggregateNow.Add(-2*time.Minute), "Mobile", "Chile"),
		click(aggregateNow.Add(-time.Minute), "Mobile", "Peru"),
	}

	s := Aggregate("link", events, SummaryOptions{}, aggregateNow)
	assert.Equal(t, "Peru", s.TopCountry)
	assert.Equal(t, []Count{{"Peru", 2}, {"Chile", 2}}, s.CountryBreakdown)
}

func TestAggregate_HourlySeries(t *testing.T) {
	events := []model.ClickEvent{
		click(aggregateNow.Add(-30*time.Hour), "Mobile", ""), // outside the window
		click(aggregateNow.Add(-23*time.Hour), "Mobile", ""), // 16:30 yesterday → first bucket
		click(aggregateNow.Add(-10*time.Minute), "Mobile", ""),
		click(aggregateNow.Add(-5*time.Minute), "Mobile", ""),
	}

	s := Aggregate("link", events, SummaryOptions{Granularity: GranularityHour}, aggregateNow)

	require.Len(t, s.TimeSeries, 24)
	first, last := s.TimeSeries[0], s.TimeSeries[23]
	assert.Equal(t, "16:00", first.Label)
	assert.Equal(t, 1, first.Count)
	assert.Equal(t, "15:00", last.Label)
	assert.Equal(t, 2, last.Count)
	assert.True(t, last.Start.Equal(time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)))

	sum := 0
	for _, b := range s.TimeSeries {
		sum += b.Count
	}
	assert.Equal(t, 3, sum)
}

func TestAggregate_DailySeries(t *testing.T) {
	events := []model.ClickEvent{
		click(aggregateNow.AddDate(0, 0, -6), "Mobile", ""),
		click(aggregateNow.AddDate(0, 0, -1), "Mobile", ""),
		click(aggregateNow.AddDate(0, 0, -1).Add(time.Hour), "Mobile", ""),
		click(aggregateNow, "Mobile", ""),
		click(aggregateNow.AddDate(0, 0, -8), "Mobile", ""),
	}

	s := Aggregate("link", events, SummaryOptions{Granularity: GranularityDay}, aggregateNow)

	require.Len(t, s.TimeSeries, 7)
	labels := make([]string, 0, 7)
	counts := make([]int, 0, 7)
	for _, b := range s.TimeSeries {
		labels = append(labels, b.Label)
		counts = append(counts, b.Count)
	}
	assert.Equal(t, []string{"Thu", "Fri", "Sat", "Sun", "Mon", "Tue", "Wed"}, labels)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 2, 1}, counts)
	assert.Equal(t, 1, s.ClicksToday)
	assert.Len(t, s.ClicksByDate, 4)
}

func TestAggregate_Location(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:30 UTC on the 10th is already the 11th in UTC+3.
	events := []model.ClickEvent{click(time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC), "Mobile", "")}

	s := Aggregate("link", events, SummaryOptions{Location: loc}, aggregateNow)
	assert.Equal(t, map[string]int{"2026-03-11": 1}, s.ClicksByDate)
	assert.Equal(t, 1, s.ClicksToday)
}

func TestParseGranularity(t *testing.T) {
	g, ok := ParseGranularity("")
	assert.True(t, ok)
	assert.Equal(t, GranularityHour, g)

	g, ok = ParseGranularity("day")
	assert.True(t, ok)
	assert.Equal(t, GranularityDay, g)

	_, ok = ParseGranularity("week")
	assert.False(t, ok)
}
