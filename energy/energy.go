// Package energy models the measurements produced by the metering
// subsystem. The session core consumes them read-only.
package energy

import (
	"sync"
	"time"
)

// Measurement is one energy snapshot. All electrical figures are in
// hundredths of their unit (centi-volt, centi-ampere, centi-kW, centi-kWh),
// the resolution the metering subsystem reports.
type Measurement struct {
	Tension   int       `json:"tension"`
	Current   int       `json:"current"`
	Power     int       `json:"power"`
	Session   int       `json:"session"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// Meter fabricates plausible measurements for the test harness and the
// mock-meter dev mode. The accumulated totals are owned by the instance, not
// package globals, so independent meters never bleed into each other.
type Meter struct {
	mu      sync.Mutex
	tension int
	current int
	power   int
	session int
	total   int
}

// NewMeter returns a meter idling at nominal mains tension.
func NewMeter() *Meter {
	return &Meter{tension: 23000}
}

// Charge simulates drawing the given current (hundredths of amp) for the
// given interval, accumulating session and lifetime energy.
func (m *Meter) Charge(current int, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = current
	m.power = m.tension * current / 100000 // centi-kW from centi-V x centi-A
	delta := int(float64(m.power) * interval.Hours())
	m.session += delta
	m.total += delta
}

// ResetSession zeroes the per-session energy register, keeping the lifetime
// total.
func (m *Meter) ResetSession() {
	m.mu.Lock()
	m.session = 0
	m.current = 0
	m.power = 0
	m.mu.Unlock()
}

// Read snapshots the current state as a timestamped measurement.
func (m *Meter) Read() Measurement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Measurement{
		Tension:   m.tension,
		Current:   m.current,
		Power:     m.power,
		Session:   m.session,
		Total:     m.total,
		Timestamp: time.Now(),
	}
}
