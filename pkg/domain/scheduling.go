package domain

import "time"

// SchedulingSettings configures how bookable slots of a service are generated.
// Zero values fall back to the defaults documented on each accessor.
type SchedulingSettings struct {
	SlotMinutes         int `json:"slotMinutes,omitempty" yaml:"slotMinutes,omitempty" validate:"gte=0"`
	BufferMinutes       int `json:"bufferMinutes,omitempty" yaml:"bufferMinutes,omitempty" validate:"gte=0"`
	SlotIntervalMinutes int `json:"slotIntervalMinutes,omitempty" yaml:"slotIntervalMinutes,omitempty" validate:"gte=0"`
	LeadTimeMinutes     int `json:"leadTimeMinutes,omitempty" yaml:"leadTimeMinutes,omitempty" validate:"gte=0"`
	MaxAdvanceDays      int `json:"maxAdvanceDays,omitempty" yaml:"maxAdvanceDays,omitempty" validate:"gte=0"`
}

// DefaultSlotMinutes is used when neither the settings nor the service give a length.
const DefaultSlotMinutes = 30

// SlotLength returns the appointment length. It falls back to the service
// duration and then to DefaultSlotMinutes.
func (s SchedulingSettings) SlotLength(serviceMinutes int) time.Duration {
	m := s.SlotMinutes
	if m <= 0 {
		m = serviceMinutes
	}
	if m <= 0 {
		m = DefaultSlotMinutes
	}
	return time.Duration(m) * time.Minute
}

// Buffer returns the gap required after each appointment.
func (s SchedulingSettings) Buffer() time.Duration {
	return time.Duration(s.BufferMinutes) * time.Minute
}

// Step returns the distance between two candidate slot starts.
// Defaults to slot length plus buffer.
func (s SchedulingSettings) Step(serviceMinutes int) time.Duration {
	if s.SlotIntervalMinutes > 0 {
		return time.Duration(s.SlotIntervalMinutes) * time.Minute
	}
	return s.SlotLength(serviceMinutes) + s.Buffer()
}

// LeadTime returns the minimum notice before a booking.
func (s SchedulingSettings) LeadTime() time.Duration {
	return time.Duration(s.LeadTimeMinutes) * time.Minute
}

// Horizon returns the latest bookable instant relative to now.
// The second result is false when the horizon is unlimited.
func (s SchedulingSettings) Horizon(now time.Time) (time.Time, bool) {
	if s.MaxAdvanceDays <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, s.MaxAdvanceDays), true
}
