package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/vrmsnap/vrmsnap/pkg/log"
)

// isoMillis renders ISO-8601 with millisecond precision (trailing zeros
// trimmed) and a literal Z for zero offset, never +00:00.
const isoMillis = "2006-01-02T15:04:05.999Z07:00"

// Candidate is one (timestamp, zone) pair observed by a subsystem. Zone may
// be empty when the site's time zone is unknown.
type Candidate struct {
	TSMillis int64
	Zone     string
}

// Reconcile picks the candidate with the maximum timestamp (first seen wins
// ties) and converts it to a UTC ISO-8601 string using the candidate's site
// zone. The bool is false when there are no candidates.
func Reconcile(ctx context.Context, candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.TSMillis > best.TSMillis {
			best = c
		}
	}
	return isoUTC(ctx, best.TSMillis, best.Zone), true
}

// isoUTC renders an epoch-milliseconds instant as UTC ISO-8601. The site
// zone is resolved first so an unknown zone name is surfaced in the logs,
// but an unresolvable or missing zone falls back to plain UTC
// interpretation.
func isoUTC(ctx context.Context, ms int64, zone string) string {
	t := time.UnixMilli(ms)
	if zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to load site location, defaulting to UTC",
				slog.String("zone", zone), slog.Any("error", err))
		} else {
			t = t.In(loc)
		}
	}
	return t.UTC().Format(isoMillis)
}

func utcNowISO() string {
	return time.Now().UTC().Format(isoMillis)
}
