package types

// Alarm represents a single active alarm condition, normalized from the
// loosely-shaped records the VRM API returns. Time is kept as the raw value
// (epoch seconds/milliseconds or a preformatted string, depending on the
// record) and Severity as whatever scalar the API used.
type Alarm struct {
	Time     any    `json:"time"`
	Name     string `json:"name"`
	Severity any    `json:"severity"`
	Message  string `json:"message"`
}

// SolarStats holds the latest solar production reading.
type SolarStats struct {
	PowerW *float64 `json:"potencia_w"`
}

// GridStats holds the latest grid import/export reading.
type GridStats struct {
	PowerW *float64 `json:"potencia_w"`
}

// BatteryStats holds the latest battery state-of-charge reading.
type BatteryStats struct {
	SOCPct *float64 `json:"bateria_soc_pct"`
}

// Generation is the snapshot section for the generation installation.
type Generation struct {
	Solar   SolarStats   `json:"solar"`
	Grid    GridStats    `json:"red"`
	Battery BatteryStats `json:"bateria"`
	Alarms  []Alarm      `json:"alarmas"`
}

// Consumption is the snapshot section for the consumption installation.
type Consumption struct {
	PowerW *float64 `json:"potencia_w"`
	Alarms []Alarm  `json:"alarmas"`
}

// Snapshot is the consolidated report emitted on stdout. The JSON keys are
// part of the downstream consumer contract and must not change. It is built
// once per run and immutable afterwards.
type Snapshot struct {
	TimestampUTC  string      `json:"timestamp_utc"`
	TimestampData *string     `json:"timestamp_data"`
	Generation    Generation  `json:"generación"`
	Consumption   Consumption `json:"consumo"`
	Notes         []string    `json:"notes"`
}

// NewSnapshot returns a Snapshot with the list fields initialized so they
// marshal as [] instead of null.
func NewSnapshot(timestampUTC string) *Snapshot {
	return &Snapshot{
		TimestampUTC: timestampUTC,
		Generation:   Generation{Alarms: []Alarm{}},
		Consumption:  Consumption{Alarms: []Alarm{}},
		Notes:        []string{},
	}
}
