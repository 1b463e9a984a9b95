package models

import (
	"slices"
	"strings"
	"time"
)

// SportTotals aggregates one sport within a summary window.
type SportTotals struct {
	SportType       string  `json:"sport_type"`
	Activities      int     `json:"activities"`
	DurationSeconds int     `json:"duration_seconds"`
	DistanceMeters  float64 `json:"distance_meters"`
	ElevationGain   float64 `json:"elevation_gain"`
}

// Summary is a plain aggregation of activities; it carries no training-load
// modelling.
type Summary struct {
	From            time.Time     `json:"from"`
	To              time.Time     `json:"to"`
	Activities      int           `json:"activities"`
	DurationSeconds int           `json:"duration_seconds"`
	DistanceMeters  float64       `json:"distance_meters"`
	ElevationGain   float64       `json:"elevation_gain"`
	BySport         []SportTotals `json:"by_sport"`
}

// Summarize totals the activities starting in [from, to).
func Summarize(activities []*Activity, from, to time.Time) Summary {
	sum := Summary{From: from, To: to, BySport: []SportTotals{}}
	bySport := map[string]*SportTotals{}
	for _, a := range activities {
		if a.StartDate.Before(from) || !a.StartDate.Before(to) {
			continue
		}
		sum.Activities++
		sum.DurationSeconds += a.DurationSeconds
		sum.DistanceMeters += a.DistanceMeters
		sum.ElevationGain += a.ElevationGain

		st, ok := bySport[a.SportType]
		if !ok {
			st = &SportTotals{SportType: a.SportType}
			bySport[a.SportType] = st
		}
		st.Activities++
		st.DurationSeconds += a.DurationSeconds
		st.DistanceMeters += a.DistanceMeters
		st.ElevationGain += a.ElevationGain
	}
	for _, st := range bySport {
		sum.BySport = append(sum.BySport, *st)
	}
	slices.SortFunc(sum.BySport, func(a, b SportTotals) int { return strings.Compare(a.SportType, b.SportType) })
	return sum
}
