package capture

import (
	"fmt"
	"strconv"
	"strings"
)

// Angle identifies one of the fixed camera vantage points.
type Angle int

const (
	// AngleMiddle is recorded walking around the object at eye level.
	AngleMiddle Angle = 1

	// AngleTop is recorded from above, looking down.
	AngleTop Angle = 2

	// AngleBottom is recorded from below, looking up.
	AngleBottom Angle = 3
)

// AngleCount is the number of angles a session must capture.
const AngleCount = 3

// AllAngles returns all angles in capture order.
func AllAngles() []Angle {
	return []Angle{AngleMiddle, AngleTop, AngleBottom}
}

// Valid reports whether a is one of the known angles.
func (a Angle) Valid() bool {
	return a >= AngleMiddle && a <= AngleBottom
}

// Last reports whether a is the final angle of a session.
func (a Angle) Last() bool {
	return a == AngleBottom
}

// Next returns the angle after a. Calling Next on the last angle returns an
// invalid angle.
func (a Angle) Next() Angle {
	return a + 1
}

func (a Angle) String() string {
	switch a {
	case AngleMiddle:
		return "middle"
	case AngleTop:
		return "top"
	case AngleBottom:
		return "bottom"
	default:
		return "angle(" + strconv.Itoa(int(a)) + ")"
	}
}

// Title returns the display title shown above the camera preview.
func (a Angle) Title() string {
	switch a {
	case AngleMiddle:
		return "Middle Angle"
	case AngleTop:
		return "Top Angle"
	case AngleBottom:
		return "Bottom Angle"
	default:
		return "Recording"
	}
}

// Instruction returns the short spoken/printed instruction for the angle.
func (a Angle) Instruction() string {
	switch a {
	case AngleMiddle:
		return "Walk 360° around the object"
	case AngleTop:
		return "Raise the camera and look down at 45°"
	case AngleBottom:
		return "Lower the camera and look up at 45°"
	default:
		return ""
	}
}

// ParseAngle accepts either the angle name ("top") or its index ("2").
func ParseAngle(s string) (Angle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range AllAngles() {
		if s == a.String() {
			return a, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Angle(n).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAngle, s)
	}
	return Angle(n), nil
}
