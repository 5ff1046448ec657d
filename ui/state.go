package ui

import (
	"math"
	"strconv"
	"strings"
)

type driveMode int

const (
	driveStop driveMode = iota
	driveStart
	driveForward
	driveBackward
)

func (m driveMode) String() string {
	switch m {
	case driveStop:
		return "Stop"
	case driveStart:
		return "Start"
	case driveForward:
		return "Forward"
	case driveBackward:
		return "Backward"
	default:
		return "Unknown"
	}
}

// running is true for modes that leave the motors driven
func (m driveMode) running() bool {
	return m != driveStop
}

// drives reports whether the command sent for speed leaves a motor driven.
// FORWARD and BACKWARD at a speed that formats to 0.00 stop the motor.
func (m driveMode) drives(speed float64) bool {
	switch m {
	case driveForward, driveBackward:
		return math.Round(speed*100) > 0
	}
	return m.running()
}

func (m driveMode) command(target string, speed float64) string {
	parts := []string{"MOTOR"}
	if target != "" && target != targetAll {
		parts = append(parts, target)
	}
	parts = append(parts, strings.ToUpper(m.String()))

	switch m {
	case driveForward, driveBackward:
		parts = append(parts, strconv.FormatFloat(speed, 'f', 2, 64))
	case driveStop, driveStart:
	default:
		return ""
	}
	return strings.Join(parts, " ")
}
