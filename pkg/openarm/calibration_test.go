package openarm

import (
	"math"
	"testing"
)

func TestGripperCalibration_Normalize(t *testing.T) {
	cal := GripperCalibration{OpenPosition: 0.0, ClosedPosition: 0.8}

	tests := []struct {
		rad      float64
		expected float64
	}{
		{0.8, 0.0},  // closed endpoint -> 0
		{0.0, 1.0},  // open endpoint -> 1
		{0.4, 0.5},  // midpoint -> 0.5
		{0.6, 0.25}, // quarter open
		{1.2, 0.0},  // beyond closed -> clamped
		{-0.5, 1.0}, // beyond open -> clamped
	}

	for _, tt := range tests {
		got := cal.Normalize(tt.rad)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%f) = %f, want %f", tt.rad, got, tt.expected)
		}
	}
}

func TestGripperCalibration_Denormalize(t *testing.T) {
	cal := GripperCalibration{OpenPosition: 0.0, ClosedPosition: 0.8}

	tests := []struct {
		aperture float64
		expected float64
	}{
		{0.0, 0.8},
		{1.0, 0.0},
		{0.5, 0.4},
		{0.25, 0.6},
	}

	for _, tt := range tests {
		got := cal.Denormalize(tt.aperture)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Denormalize(%f) = %f, want %f", tt.aperture, got, tt.expected)
		}
	}
}

func TestGripperCalibration_RoundTrip(t *testing.T) {
	cal := GripperCalibration{OpenPosition: -0.3, ClosedPosition: 1.1}

	for a := 0.0; a <= 1.0; a += 0.05 {
		rad := cal.Denormalize(a)
		back := cal.Normalize(rad)
		if math.Abs(back-a) > 1e-9 {
			t.Errorf("round-trip failed: %f -> %f -> %f", a, rad, back)
		}
	}
}

func TestGripperCalibration_Valid(t *testing.T) {
	if (GripperCalibration{}).Valid() {
		t.Error("zero calibration should not be valid")
	}
	if !(GripperCalibration{OpenPosition: 0, ClosedPosition: 0.8}).Valid() {
		t.Error("calibration with travel should be valid")
	}
	// Degenerate span normalizes to zero instead of dividing by zero.
	if got := (GripperCalibration{}).Normalize(0.5); got != 0 {
		t.Errorf("degenerate Normalize = %f, want 0", got)
	}
}

func TestJointCalibration(t *testing.T) {
	cal := JointCalibration{RangeMin: -1.5, RangeMax: 1.5}

	if !cal.Contains(0) || !cal.Contains(-1.5) || !cal.Contains(1.5) {
		t.Error("Contains should accept in-range positions")
	}
	if cal.Contains(2) || cal.Contains(-2) {
		t.Error("Contains should reject out-of-range positions")
	}
	if got := cal.Clamp(2); got != 1.5 {
		t.Errorf("Clamp(2) = %f, want 1.5", got)
	}
	if got := cal.Clamp(-2); got != -1.5 {
		t.Errorf("Clamp(-2) = %f, want -1.5", got)
	}
	if got := cal.Clamp(0.7); got != 0.7 {
		t.Errorf("Clamp(0.7) = %f, want 0.7", got)
	}
}
