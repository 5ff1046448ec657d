package motor

import (
	"math"

	"github.com/calvinmclean/motiondriver"
)

const (
	ResolutionBits = 8
	// MaxDuty is the duty value at full speed
	MaxDuty     = 1<<ResolutionBits - 1
	FrequencyHz = 12000
)

// PWM writes a duty value to one output channel
type PWM interface {
	Set(channel uint8, value uint32)
}

// Pin is a digital output
type Pin interface {
	Set(high bool)
}

// Output is the pair of H-bridge inputs driving one motor. ChannelA is driven going forward
type Output struct {
	PWM      PWM
	ChannelA uint8
	ChannelB uint8
}

// State is a snapshot of one motor
type State struct {
	Direction motiondriver.Direction
	// TargetSpeed is the stored speed in [0, 1]
	TargetSpeed   float32
	OutputEnabled bool
}

// Controller drives every motor and the standby line they share
type Controller struct {
	standby Pin
	outputs [motiondriver.MotorCount]Output
	motors  [motiondriver.MotorCount]State

	initialized bool
}

func New(standby Pin, outputs [motiondriver.MotorCount]Output) *Controller {
	return &Controller{
		standby: standby,
		outputs: outputs,
	}
}

// Begin puts every motor in coast with the driver in standby
func (c *Controller) Begin() {
	c.initialized = true
	for i := range c.motors {
		c.motors[i] = State{Direction: motiondriver.DirectionForward}
		c.apply(i)
	}
	c.updateStandby()
}

// Count returns the number of motors
func (c *Controller) Count() int {
	return len(c.motors)
}

// Motor returns a snapshot of one motor
func (c *Controller) Motor(motor int) (State, bool) {
	if !c.valid(motor) {
		return State{}, false
	}
	return c.motors[motor], true
}

// Standby reports whether the standby line is driven high, which is the case exactly when
// some motor is enabled with a non-zero speed
func (c *Controller) Standby() bool {
	for _, m := range c.motors {
		if m.OutputEnabled && m.TargetSpeed > 0 {
			return true
		}
	}
	return false
}

// Run stores a direction and speed for one motor. The speed is clamped to [0, 1].
// A zero speed disables the output. When autoEnable is set a non-zero speed enables it
func (c *Controller) Run(motor int, dir motiondriver.Direction, speed float32, autoEnable bool) {
	if !c.initialized || !c.valid(motor) {
		return
	}
	c.run(motor, dir, speed, autoEnable)
	c.updateStandby()
}

// RunAll applies Run to every motor and updates the standby line once
func (c *Controller) RunAll(dir motiondriver.Direction, speed float32, autoEnable bool) {
	if !c.initialized {
		return
	}
	for i := range c.motors {
		c.run(i, dir, speed, autoEnable)
	}
	c.updateStandby()
}

// Start enables a motor at its stored speed. A motor with no stored speed stays disabled
func (c *Controller) Start(motor int) {
	if !c.initialized || !c.valid(motor) {
		return
	}
	c.setEnabled(motor, true)
	c.updateStandby()
}

func (c *Controller) StartAll() {
	if !c.initialized {
		return
	}
	for i := range c.motors {
		c.setEnabled(i, true)
	}
	c.updateStandby()
}

// Stop disables a motor's output and keeps its stored speed
func (c *Controller) Stop(motor int) {
	if !c.initialized || !c.valid(motor) {
		return
	}
	c.setEnabled(motor, false)
	c.updateStandby()
}

func (c *Controller) StopAll() {
	if !c.initialized {
		return
	}
	for i := range c.motors {
		c.setEnabled(i, false)
	}
	c.updateStandby()
}

func (c *Controller) run(motor int, dir motiondriver.Direction, speed float32, autoEnable bool) {
	m := &c.motors[motor]
	m.Direction = dir
	m.TargetSpeed = ClampSpeed(speed)
	switch {
	case m.TargetSpeed == 0:
		m.OutputEnabled = false
	case autoEnable:
		m.OutputEnabled = true
	}
	c.apply(motor)
}

func (c *Controller) setEnabled(motor int, enabled bool) {
	m := &c.motors[motor]
	m.OutputEnabled = enabled && m.TargetSpeed > 0
	c.apply(motor)
}

// apply writes a motor's duty to its bridge. The idle input is always written first
// so both inputs are never driven at the same time
func (c *Controller) apply(motor int) {
	m := c.motors[motor]
	out := c.outputs[motor]
	if out.PWM == nil {
		return
	}

	if !m.OutputEnabled {
		out.PWM.Set(out.ChannelA, 0)
		out.PWM.Set(out.ChannelB, 0)
		return
	}

	duty := Duty(m.TargetSpeed)
	if m.Direction == motiondriver.DirectionBackward {
		out.PWM.Set(out.ChannelA, 0)
		out.PWM.Set(out.ChannelB, duty)
		return
	}
	out.PWM.Set(out.ChannelB, 0)
	out.PWM.Set(out.ChannelA, duty)
}

func (c *Controller) updateStandby() {
	if c.standby != nil {
		c.standby.Set(c.Standby())
	}
}

func (c *Controller) valid(motor int) bool {
	return motor >= 0 && motor < len(c.motors)
}

// Duty converts a speed to a duty value, rounding to the nearest step
func Duty(speed float32) uint32 {
	return uint32(math.Round(float64(ClampSpeed(speed)) * MaxDuty))
}

// ClampSpeed limits speed to [0, 1]. NaN is treated as zero
func ClampSpeed(speed float32) float32 {
	switch {
	case math.IsNaN(float64(speed)), speed <= 0:
		return 0
	case speed >= 1:
		return 1
	default:
		return speed
	}
}
