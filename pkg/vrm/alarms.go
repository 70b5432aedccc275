package vrm

import (
	"context"
	"fmt"
	"net/url"

	"github.com/vrmsnap/vrmsnap/pkg/budget"
	"github.com/vrmsnap/vrmsnap/pkg/types"
)

// alarmEnvelopes lists, in precedence order, the places the alarm record
// list has been seen to live inside the response. The first shape that
// matches wins; new shapes get appended here rather than branching inline.
var alarmEnvelopes = []func(map[string]any) ([]any, bool){
	func(m map[string]any) ([]any, bool) { return listField(m, "records") },
	func(m map[string]any) ([]any, bool) { return nestedListField(m, "data", "records") },
	func(m map[string]any) ([]any, bool) { return listField(m, "alarms") },
	func(m map[string]any) ([]any, bool) { return nestedListField(m, "data", "alarms") },
}

// ActiveAlarms fetches the currently-active alarms for a site and normalizes
// them into uniform records. The endpoint's response shape varies, so the
// envelope and the per-record field names are all matched tolerantly.
func (c *Client) ActiveAlarms(ctx context.Context, clock *budget.Clock, siteID int) ([]types.Alarm, error) {
	var raw map[string]any
	params := url.Values{}
	params.Set("active", "true")
	if err := c.get(ctx, clock, fmt.Sprintf("/installations/%d/alarms", siteID), params, &raw); err != nil {
		return nil, err
	}
	return normalizeAlarms(raw), nil
}

func normalizeAlarms(raw map[string]any) []types.Alarm {
	var records []any
	for _, match := range alarmEnvelopes {
		if recs, ok := match(raw); ok {
			records = recs
			break
		}
	}

	out := []types.Alarm{}
	for _, r := range records {
		rec, ok := r.(map[string]any)
		if !ok || !alarmActive(rec) {
			continue
		}
		out = append(out, types.Alarm{
			Time:     firstField(rec, "startTime", "timestamp", "time"),
			Name:     asString(firstField(rec, "name", "title", "code")),
			Severity: rec["severity"],
			Message:  asString(firstField(rec, "message", "text")),
		})
	}
	return out
}

// alarmActive reports whether a raw record signals an ongoing alarm: a true
// "active" flag, a numeric 1, or a "state" of "active"/1/"1".
func alarmActive(rec map[string]any) bool {
	switch v := rec["active"].(type) {
	case bool:
		if v {
			return true
		}
	case float64:
		if v == 1 {
			return true
		}
	}
	switch s := rec["state"].(type) {
	case string:
		if s == "active" || s == "1" {
			return true
		}
	case float64:
		if s == 1 {
			return true
		}
	}
	return false
}

func listField(m map[string]any, key string) ([]any, bool) {
	l, ok := m[key].([]any)
	return l, ok
}

func nestedListField(m map[string]any, outer, key string) ([]any, bool) {
	inner, ok := m[outer].(map[string]any)
	if !ok {
		return nil, false
	}
	return listField(inner, key)
}

func firstField(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// some records carry numeric codes where a name should be
		return fmt.Sprintf("%v", s)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}
