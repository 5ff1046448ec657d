package motiondriver

const (
	// ServoChannelCount is the number of servo channels driven through the PWM driver chip
	ServoChannelCount = 6
	// MotorCount is the number of DC motors sharing the driver standby line
	MotorCount = 6
	// LineBufferSize is the capacity of the command line buffer
	LineBufferSize = 64

	// LineEnding terminates every line the board writes
	LineEnding = "\r\n"
	// TelemetryPrefix starts every sweep telemetry line so hosts can tell it apart from replies
	TelemetryPrefix = "Servo "
)

// Direction is the sign of a sweep step or the polarity of a motor
type Direction int

const (
	DirectionForward Direction = iota
	DirectionBackward
)

func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "Forward"
	case DirectionBackward:
		return "Backward"
	default:
		return "Unknown"
	}
}

// Flip returns the opposite direction
func (d Direction) Flip() Direction {
	if d == DirectionForward {
		return DirectionBackward
	}
	return DirectionForward
}

// Sign converts the direction to +1 or -1 for arithmetic
func (d Direction) Sign() int32 {
	if d == DirectionBackward {
		return -1
	}
	return +1
}
