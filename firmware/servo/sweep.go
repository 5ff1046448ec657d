package servo

import (
	"io"
	"strconv"

	"github.com/calvinmclean/motiondriver"
)

const (
	// Resolution is the number of ticks in one period of the PWM driver chip
	Resolution = 4096
	// PeriodUs is the servo carrier period (50Hz)
	PeriodUs = 20000

	DefaultMinPulseUs = 1000
	DefaultMaxPulseUs = 2000
	DefaultStepUs     = 10
	DefaultIntervalMs = 50

	// telemetryDecimation is the number of accepted sweep steps per telemetry line
	telemetryDecimation = 5
)

// PWM is the driver chip primitive. Set writes the high phase of a channel in ticks
type PWM interface {
	Set(channel uint8, value uint32)
}

// Channel is a snapshot of one servo channel
type Channel struct {
	Enabled    bool
	MinPulseUs uint16
	MaxPulseUs uint16
	StepUs     uint16
	IntervalMs uint32
	PulseUs    int32
	Direction  motiondriver.Direction
}

type channelState struct {
	Channel

	lastTickMs uint32
	// primed forces the next Tick to step regardless of lastTickMs
	primed       bool
	logDecimator uint8
}

// Controller runs an independent triangle-wave sweep on every servo channel
type Controller struct {
	pwm          PWM
	telemetryOut io.Writer

	channels       [motiondriver.ServoChannelCount]channelState
	defaultChannel int
	telemetry      bool
	initialized    bool
}

// New creates a Controller with every channel at the default range, centered, sweep disabled.
// Telemetry lines are written to telemetryOut, which may be nil
func New(pwm PWM, telemetryOut io.Writer) *Controller {
	c := &Controller{
		pwm:          pwm,
		telemetryOut: telemetryOut,
		telemetry:    true,
	}
	for i := range c.channels {
		c.channels[i].Channel = Channel{
			MinPulseUs: DefaultMinPulseUs,
			MaxPulseUs: DefaultMaxPulseUs,
			StepUs:     DefaultStepUs,
			IntervalMs: DefaultIntervalMs,
			PulseUs:    DefaultMinPulseUs + (DefaultMaxPulseUs-DefaultMinPulseUs)/2,
			Direction:  motiondriver.DirectionForward,
		}
	}
	return c
}

// Begin writes the starting position of every channel and starts accepting position commands.
// It is called once the driver chip is known to be reachable
func (c *Controller) Begin(nowMs uint32) {
	c.initialized = true
	for i := range c.channels {
		ch := &c.channels[i]
		ch.Enabled = false
		ch.lastTickMs = nowMs
		ch.PulseUs = clampPulse(ch.PulseUs, ch.MinPulseUs, ch.MaxPulseUs)
		c.write(i)
	}
}

// ChannelCount returns the number of servo channels
func (c *Controller) ChannelCount() int {
	return len(c.channels)
}

// Channel returns a snapshot of a channel's state
func (c *Controller) Channel(channel int) (Channel, bool) {
	ch, ok := c.channel(channel)
	if !ok {
		return Channel{}, false
	}
	return ch.Channel, true
}

// SetAbsolute disables the sweep on channel and moves it to pulseUs, clamped to the channel's range
func (c *Controller) SetAbsolute(channel int, pulseUs int32) {
	ch, ok := c.channel(channel)
	if !ok || !c.initialized {
		return
	}

	ch.Enabled = false
	ch.PulseUs = clampPulse(pulseUs, ch.MinPulseUs, ch.MaxPulseUs)
	c.write(channel)
}

// SetSweepEnabled starts or stops the sweep on one channel
func (c *Controller) SetSweepEnabled(channel int, enabled bool) {
	ch, ok := c.channel(channel)
	if !ok {
		return
	}

	ch.Enabled = enabled
	if !enabled {
		return
	}

	ch.primed = true
	ch.PulseUs = clampPulse(ch.PulseUs, ch.MinPulseUs, ch.MaxPulseUs)
	if c.initialized {
		c.write(channel)
	}
}

// SetSweepRangeEnabled starts or stops the sweep on channels start through end inclusive.
// A reversed range is reordered. Nothing changes if either end is out of range
func (c *Controller) SetSweepRangeEnabled(start, end int, enabled bool) {
	if start > end {
		start, end = end, start
	}
	if _, ok := c.channel(start); !ok {
		return
	}
	if _, ok := c.channel(end); !ok {
		return
	}

	for i := start; i <= end; i++ {
		c.SetSweepEnabled(i, enabled)
	}
}

// SetSweepAllEnabled starts or stops the sweep on every channel
func (c *Controller) SetSweepAllEnabled(enabled bool) {
	c.SetSweepRangeEnabled(0, len(c.channels)-1, enabled)
}

// DefaultChannel is the channel addressed by a sweep command without a target
func (c *Controller) DefaultChannel() int {
	return c.defaultChannel
}

// SetDefaultChannel changes the channel addressed by a sweep command without a target
func (c *Controller) SetDefaultChannel(channel int) {
	if _, ok := c.channel(channel); !ok {
		return
	}
	c.defaultChannel = channel
}

// ConfigureRange sets the pulse bounds of a channel, swapping them if reversed.
// A position outside the new bounds is clamped and rewritten immediately
func (c *Controller) ConfigureRange(channel int, minPulseUs, maxPulseUs uint16) {
	ch, ok := c.channel(channel)
	if !ok {
		return
	}

	if minPulseUs > maxPulseUs {
		minPulseUs, maxPulseUs = maxPulseUs, minPulseUs
	}
	ch.MinPulseUs = minPulseUs
	ch.MaxPulseUs = maxPulseUs

	if ch.PulseUs < int32(minPulseUs) || ch.PulseUs > int32(maxPulseUs) {
		ch.PulseUs = clampPulse(ch.PulseUs, minPulseUs, maxPulseUs)
		if c.initialized {
			c.write(channel)
		}
	}
}

// ConfigureStep sets the sweep increment and the minimum time between increments of a channel
func (c *Controller) ConfigureStep(channel int, stepUs uint16, intervalMs uint32) {
	ch, ok := c.channel(channel)
	if !ok {
		return
	}
	ch.StepUs = stepUs
	ch.IntervalMs = intervalMs
}

// SetTelemetry turns sweep telemetry lines on or off
func (c *Controller) SetTelemetry(enabled bool) {
	c.telemetry = enabled
}

// Telemetry reports whether sweep telemetry lines are written
func (c *Controller) Telemetry() bool {
	return c.telemetry
}

// Tick advances every sweeping channel whose interval has elapsed since its last step.
// nowMs is a wrapping millisecond clock
func (c *Controller) Tick(nowMs uint32) {
	if !c.initialized {
		return
	}

	for i := range c.channels {
		ch := &c.channels[i]
		if !ch.Enabled {
			continue
		}
		if !ch.primed && nowMs-ch.lastTickMs < ch.IntervalMs {
			continue
		}

		ch.primed = false
		ch.lastTickMs = nowMs

		next := ch.PulseUs + ch.Direction.Sign()*int32(ch.StepUs)
		switch ch.Direction {
		case motiondriver.DirectionForward:
			if next >= int32(ch.MaxPulseUs) {
				next = int32(ch.MaxPulseUs)
				ch.Direction = ch.Direction.Flip()
			}
		case motiondriver.DirectionBackward:
			if next <= int32(ch.MinPulseUs) {
				next = int32(ch.MinPulseUs)
				ch.Direction = ch.Direction.Flip()
			}
		}
		ch.PulseUs = clampPulse(next, ch.MinPulseUs, ch.MaxPulseUs)

		c.write(i)
		c.report(i)
	}
}

func (c *Controller) channel(channel int) (*channelState, bool) {
	if channel < 0 || channel >= len(c.channels) {
		return nil, false
	}
	return &c.channels[channel], true
}

// write sends the channel's position to the driver chip
func (c *Controller) write(channel int) {
	ch := &c.channels[channel]
	pulse := clampPulse(ch.PulseUs, ch.MinPulseUs, ch.MaxPulseUs)
	c.pwm.Set(uint8(channel), uint32(PulseToTicks(uint16(pulse))))
}

// report writes a telemetry line on every telemetryDecimation-th step
func (c *Controller) report(channel int) {
	if !c.telemetry || c.telemetryOut == nil {
		return
	}

	ch := &c.channels[channel]
	ch.logDecimator++
	if ch.logDecimator < telemetryDecimation {
		return
	}
	ch.logDecimator = 0

	line := motiondriver.TelemetryPrefix + strconv.Itoa(channel) +
		" pulse: " + strconv.Itoa(int(ch.PulseUs)) + " us" + motiondriver.LineEnding
	_, _ = io.WriteString(c.telemetryOut, line)
}

// PulseToTicks converts a pulse width to driver chip ticks, rounding to the nearest tick
// and saturating at Resolution-1
func PulseToTicks(pulseUs uint16) uint16 {
	ticks := (uint32(pulseUs)*Resolution + PeriodUs/2) / PeriodUs
	if ticks > Resolution-1 {
		ticks = Resolution - 1
	}
	return uint16(ticks)
}

func clampPulse(pulseUs int32, minUs, maxUs uint16) int32 {
	if pulseUs < int32(minUs) {
		return int32(minUs)
	}
	if pulseUs > int32(maxUs) {
		return int32(maxUs)
	}
	return pulseUs
}
