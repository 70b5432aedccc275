package vrm

import (
	"context"
	"fmt"
	"strings"

	"github.com/vrmsnap/vrmsnap/pkg/budget"
)

// Installation is a remote site resource owned by the authenticated user.
// The API has used several keys for the time zone over the years, so all of
// them are decoded and Zone picks the first that is set.
type Installation struct {
	IDSite   int    `json:"idSite"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	TimeZone string `json:"timeZone"`
	TZ       string `json:"tz"`
}

// Zone returns the installation's IANA time-zone name, or "" if none is
// known.
func (i Installation) Zone() string {
	switch {
	case i.Timezone != "":
		return i.Timezone
	case i.TimeZone != "":
		return i.TimeZone
	}
	return i.TZ
}

type user struct {
	ID int `json:"id"`
}

type usersMeResponse struct {
	User *user `json:"user"`
}

// UserID resolves the authenticated user's id via /users/me. It returns 0
// without an error when the response carries no user object.
func (c *Client) UserID(ctx context.Context, clock *budget.Clock) (int, error) {
	var res usersMeResponse
	if err := c.get(ctx, clock, "/users/me", nil, &res); err != nil {
		return 0, err
	}
	if res.User == nil {
		return 0, nil
	}
	return res.User.ID, nil
}

// Installations lists the installations belonging to the given user.
func (c *Client) Installations(ctx context.Context, clock *budget.Clock, userID int) ([]Installation, error) {
	var res struct {
		Records []Installation `json:"records"`
	}
	if err := c.get(ctx, clock, fmt.Sprintf("/users/%d/installations", userID), nil, &res); err != nil {
		return nil, err
	}
	return res.Records, nil
}

// SiteZones builds the site-id to IANA zone lookup. Sites without a known
// zone are left out; callers fall back to UTC for them.
func SiteZones(installs []Installation) map[int]string {
	m := make(map[int]string, len(installs))
	for _, it := range installs {
		if it.IDSite != 0 && it.Zone() != "" {
			m[it.IDSite] = it.Zone()
		}
	}
	return m
}

// PickSite returns the id of the first installation whose display name
// contains wantContains, compared case- and accent-insensitively.
func PickSite(installs []Installation, wantContains string) (int, bool) {
	target := foldName(wantContains)
	for _, it := range installs {
		if strings.Contains(foldName(it.Name), target) {
			return it.IDSite, true
		}
	}
	return 0, false
}
