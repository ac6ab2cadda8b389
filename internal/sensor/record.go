package sensor

import (
	"path/filepath"
	"time"
)

// Telemetry bundles the optional per-row flight and camera readings.
// A nil field means the log had no such column or the cell was empty.
type Telemetry struct {
	Altitude         *float64 `json:"altitude,omitempty"`
	RelativeAltitude *float64 `json:"relative_altitude,omitempty"`
	LightIntensity   *float64 `json:"light_intensity,omitempty"`
	UAVPitch         *float64 `json:"uav_pitch,omitempty"`
	UAVRoll          *float64 `json:"uav_roll,omitempty"`
	UAVYaw           *float64 `json:"uav_yaw,omitempty"`
	GimbalPitch      *float64 `json:"gimbal_pitch,omitempty"`
	GimbalRoll       *float64 `json:"gimbal_roll,omitempty"`
	GimbalYaw        *float64 `json:"gimbal_yaw,omitempty"`
	FocalLength      *float64 `json:"camera_focal_length,omitempty"`
	Zoom             *float64 `json:"camera_zoom,omitempty"`
}

// Record is one parsed sensor log row. Records are immutable once built.
type Record struct {
	Lat float64
	Lon float64
	PPM float64
	// Time is the zero value when the row had no parseable timestamp.
	Time    time.Time
	RawTime string
	// Photo is the base name of the referenced photo, if any.
	Photo     string
	LogPath   string
	Row       int
	Telemetry Telemetry
}

// HasTime reports whether the record can take part in timestamp joins.
func (r Record) HasTime() bool {
	return !r.Time.IsZero()
}

// LogName returns the base name of the log the record came from.
func (r Record) LogName() string {
	return filepath.Base(r.LogPath)
}
