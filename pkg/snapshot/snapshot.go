// Package snapshot assembles the consolidated report: it resolves the two
// named installations, pulls their latest stats and alarms through the
// budgeted VRM client, reconciles the data timestamps, and fills in notes
// for anything that degraded instead of failing the run.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/vrmsnap/vrmsnap/pkg/budget"
	"github.com/vrmsnap/vrmsnap/pkg/types"
	"github.com/vrmsnap/vrmsnap/pkg/vrm"
)

var (
	// ErrNoUser means the current-user identity could not be resolved.
	ErrNoUser = errors.New("could not resolve user id via /users/me")

	// ErrNoInstallations means the user owns no installations.
	ErrNoInstallations = errors.New("no installations in /users/{id}/installations")
)

// Assembler builds snapshots. Each Build starts a fresh budget clock, so one
// Assembler can serve both the one-shot CLI run and the HTTP serve mode.
type Assembler struct {
	client *vrm.Client

	genMatch    string
	conMatch    string
	totalBudget time.Duration
}

// Configured sets up flags for the assembler and returns the instance.
// It uses lflag to register command-line flags for configuration.
func Configured(c *vrm.Client) *Assembler {
	a := &Assembler{client: c}
	genMatch := lflag.String("generation-name", "Generacion", "Substring matched against installation names to find the generation site")
	conMatch := lflag.String("consumption-name", "Consumo", "Substring matched against installation names to find the consumption site")
	totalBudget := lflag.Duration("vrm-total-budget", 25*time.Second, "Overall wall-clock budget for one snapshot run")

	lflag.Do(func() {
		a.genMatch = *genMatch
		a.conMatch = *conMatch
		a.totalBudget = *totalBudget
	})

	return a
}

// Build produces one snapshot. Identity and installation-listing failures
// are returned as errors; everything recoverable degrades into the notes
// list so the run still produces output.
func (a *Assembler) Build(ctx context.Context) (*types.Snapshot, error) {
	clock := budget.NewClock(a.totalBudget)
	out := types.NewSnapshot(utcNowISO())

	userID, err := a.client.UserID(ctx, clock)
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, ErrNoUser
	}

	installs, err := a.client.Installations(ctx, clock, userID)
	if err != nil {
		return nil, err
	}
	if len(installs) == 0 {
		return nil, ErrNoInstallations
	}

	zones := vrm.SiteZones(installs)

	var candidates []Candidate

	if genID, ok := vrm.PickSite(installs, a.genMatch); ok {
		stats, err := a.client.VenusStats(ctx, clock, genID)
		if err != nil {
			return nil, err
		}
		zone := zones[genID]

		if ts, val, ok := vrm.LastPoint(stats.Series("solar_yield"), false); ok {
			out.Generation.Solar.PowerW = &val
			candidates = append(candidates, Candidate{TSMillis: ts, Zone: zone})
		}
		if ts, val, ok := vrm.LastPoint(stats.Series("from_to_grid"), false); ok {
			out.Generation.Grid.PowerW = &val
			candidates = append(candidates, Candidate{TSMillis: ts, Zone: zone})
		}
		if ts, val, ok := vrm.LastPoint(stats.Series("bs"), true); ok {
			out.Generation.Battery.SOCPct = &val
			candidates = append(candidates, Candidate{TSMillis: ts, Zone: zone})
		}

		alarms, note, err := a.activeAlarms(ctx, clock, genID, "generación")
		if err != nil {
			return nil, err
		}
		if note != "" {
			out.Notes = append(out.Notes, note)
		} else {
			out.Generation.Alarms = alarms
		}
	} else {
		out.Notes = append(out.Notes, fmt.Sprintf("No se encontró la instalación de generación (nombre contiene %q).", a.genMatch))
	}

	if conID, ok := vrm.PickSite(installs, a.conMatch); ok {
		stats, err := a.client.VenusStats(ctx, clock, conID)
		if err != nil {
			return nil, err
		}
		zone := zones[conID]

		if ts, val, ok := vrm.LastPoint(stats.Series("ac_loads"), false); ok {
			out.Consumption.PowerW = &val
			candidates = append(candidates, Candidate{TSMillis: ts, Zone: zone})
		}

		alarms, note, err := a.activeAlarms(ctx, clock, conID, "consumo")
		if err != nil {
			return nil, err
		}
		if note != "" {
			out.Notes = append(out.Notes, note)
		} else {
			out.Consumption.Alarms = alarms
		}
	} else {
		out.Notes = append(out.Notes, fmt.Sprintf("No se encontró la instalación de consumo (nombre contiene %q).", a.conMatch))
	}

	if iso, ok := Reconcile(ctx, candidates); ok {
		out.TimestampData = &iso
	}

	return out, nil
}

// activeAlarms fetches a site's active alarms, degrading failures into a
// note: alarms are best-effort and never fatal to the snapshot. Unauthorized
// and process interruption are the exceptions and abort the whole run.
func (a *Assembler) activeAlarms(ctx context.Context, clock *budget.Clock, siteID int, section string) ([]types.Alarm, string, error) {
	alarms, err := a.client.ActiveAlarms(ctx, clock, siteID)
	if err != nil {
		if errors.Is(err, vrm.ErrUnauthorized) || errors.Is(err, context.Canceled) {
			return nil, "", err
		}
		return nil, fmt.Sprintf("Error leyendo alarmas de %s: %v", section, err), nil
	}
	return alarms, "", nil
}
