package vrm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	"github.com/vrmsnap/vrmsnap/pkg/budget"
)

// VenusStats holds the per-series time-series data returned by the stats
// endpoint. Series that fail to decode simply come back empty; upstream data
// quality is too uneven to make that an error.
type VenusStats struct {
	records map[string]json.RawMessage
}

// VenusStats fetches the venus-type stats for a site.
func (c *Client) VenusStats(ctx context.Context, clock *budget.Clock, siteID int) (VenusStats, error) {
	var res struct {
		Records json.RawMessage `json:"records"`
	}
	params := url.Values{}
	params.Set("type", "venus")
	if err := c.get(ctx, clock, fmt.Sprintf("/installations/%d/stats", siteID), params, &res); err != nil {
		return VenusStats{}, err
	}

	records := map[string]json.RawMessage{}
	if len(res.Records) > 0 {
		// records is occasionally an empty list instead of an object;
		// tolerate any non-object shape by returning no series
		_ = json.Unmarshal(res.Records, &records)
	}
	return VenusStats{records: records}, nil
}

// Series returns the named raw series, or nil if absent or unparseable.
func (s VenusStats) Series(name string) []any {
	raw, ok := s.records[name]
	if !ok {
		return nil
	}
	var entries []any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

// LastPoint scans a series from the most recent entry backward and returns
// the first point with a numeric timestamp and a numeric, non-NaN value.
// Points are [ts, value] or [ts, avg, min, max]; malformed points are
// skipped, never errors. The bool is false when no valid point exists.
func LastPoint(entries []any, preferAvg bool) (int64, float64, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		pt, ok := entries[i].([]any)
		if !ok || len(pt) < 2 {
			continue
		}
		ts, ok := asNumber(pt[0])
		if !ok {
			continue
		}

		// TODO: preferAvg currently reads the same column (index 1) as
		// every other series; it was probably meant to select a different
		// column for averaged series like battery SOC. Confirm against
		// the VRM stats docs before changing which index is read.
		val, vok := asNumber(pt[1])
		if !vok || math.IsNaN(val) {
			continue
		}
		return int64(ts), val, true
	}
	return 0, 0, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
