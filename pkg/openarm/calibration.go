package openarm

// GripperCalibration maps the gripper motor position to a normalized
// aperture. The endpoints are motor positions in radians recorded during
// setup; open and closed may sit in either order on the motor axis.
type GripperCalibration struct {
	OpenPosition   float64 `json:"open_position"`
	ClosedPosition float64 `json:"closed_position"`
}

// Valid reports whether the calibration has a usable travel span.
func (c GripperCalibration) Valid() bool {
	return c.OpenPosition != c.ClosedPosition
}

// Normalize converts a motor position in radians to an aperture in [0, 1],
// where 0 is closed and 1 is open. Positions outside the calibrated travel
// are clamped.
func (c GripperCalibration) Normalize(rad float64) float64 {
	span := c.OpenPosition - c.ClosedPosition
	if span == 0 {
		return 0
	}
	return clamp01((rad - c.ClosedPosition) / span)
}

// Denormalize converts an aperture in [0, 1] to a motor position in
// radians.
func (c GripperCalibration) Denormalize(aperture float64) float64 {
	return c.ClosedPosition + aperture*(c.OpenPosition-c.ClosedPosition)
}

// JointCalibration holds the soft limits for one arm joint.
type JointCalibration struct {
	RangeMin float64 `json:"range_min"` // rad
	RangeMax float64 `json:"range_max"` // rad
}

// Contains reports whether a position is within the joint's soft limits.
func (c JointCalibration) Contains(rad float64) bool {
	return rad >= c.RangeMin && rad <= c.RangeMax
}

// Clamp limits a target position to the joint's soft limits.
func (c JointCalibration) Clamp(rad float64) float64 {
	if rad < c.RangeMin {
		return c.RangeMin
	}
	if rad > c.RangeMax {
		return c.RangeMax
	}
	return rad
}
