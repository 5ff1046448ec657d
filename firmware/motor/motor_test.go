package motor

import (
	"math"
	"testing"

	"github.com/calvinmclean/motiondriver"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeBridge puts motor i on channels 2i and 2i+1 and records any moment both were driven
type fakeBridge struct {
	values  map[uint8]uint32
	writes  int
	shorted bool
}

func (b *fakeBridge) Set(channel uint8, value uint32) {
	b.values[channel] = value
	b.writes++
	pair := channel &^ 1
	if b.values[pair] != 0 && b.values[pair+1] != 0 {
		b.shorted = true
	}
}

type fakePin struct {
	high   bool
	writes int
}

func (p *fakePin) Set(high bool) {
	p.high = high
	p.writes++
}

func newTestController() (*Controller, *fakeBridge, *fakePin) {
	bridge := &fakeBridge{values: map[uint8]uint32{}}
	standby := &fakePin{}

	var outputs [motiondriver.MotorCount]Output
	for i := range outputs {
		outputs[i] = Output{PWM: bridge, ChannelA: uint8(2 * i), ChannelB: uint8(2*i + 1)}
	}
	return New(standby, outputs), bridge, standby
}

func TestDuty(t *testing.T) {
	Convey("speed converts to a rounded duty", t, func() {
		So(Duty(0), ShouldEqual, uint32(0))
		So(Duty(0.5), ShouldEqual, uint32(128))
		So(Duty(1), ShouldEqual, uint32(MaxDuty))
		So(Duty(3), ShouldEqual, uint32(MaxDuty))
		So(Duty(-1), ShouldEqual, uint32(0))
		So(Duty(float32(math.NaN())), ShouldEqual, uint32(0))
	})
}

func TestBegin(t *testing.T) {
	Convey("a new controller", t, func() {
		c, bridge, standby := newTestController()

		Convey("ignores commands until it has begun", func() {
			c.Run(0, motiondriver.DirectionForward, 1, true)
			c.StartAll()
			So(bridge.writes, ShouldEqual, 0)
			So(standby.writes, ShouldEqual, 0)
		})

		Convey("coasts every motor with the driver in standby", func() {
			c.Begin()
			So(standby.high, ShouldBeFalse)
			So(bridge.writes, ShouldEqual, 2*motiondriver.MotorCount)
			for ch, v := range bridge.values {
				So(v, ShouldEqual, uint32(0))
				So(ch, ShouldBeLessThan, uint8(2*motiondriver.MotorCount))
			}
			for i := 0; i < c.Count(); i++ {
				m, ok := c.Motor(i)
				So(ok, ShouldBeTrue)
				So(m.OutputEnabled, ShouldBeFalse)
			}
		})
	})
}

func TestRun(t *testing.T) {
	Convey("running a motor", t, func() {
		c, bridge, standby := newTestController()
		c.Begin()

		Convey("forward drives only the first input", func() {
			c.Run(1, motiondriver.DirectionForward, 0.5, true)
			So(bridge.values[2], ShouldEqual, uint32(128))
			So(bridge.values[3], ShouldEqual, uint32(0))
			So(standby.high, ShouldBeTrue)
			So(c.Standby(), ShouldBeTrue)
		})

		Convey("backward drives only the second input", func() {
			c.Run(1, motiondriver.DirectionBackward, 1, true)
			So(bridge.values[2], ShouldEqual, uint32(0))
			So(bridge.values[3], ShouldEqual, uint32(MaxDuty))
		})

		Convey("clamps the speed", func() {
			c.Run(0, motiondriver.DirectionForward, 3, true)
			m, _ := c.Motor(0)
			So(m.TargetSpeed, ShouldEqual, float32(1))
			So(m.OutputEnabled, ShouldBeTrue)

			c.Run(0, motiondriver.DirectionForward, -2, true)
			m, _ = c.Motor(0)
			So(m.TargetSpeed, ShouldEqual, float32(0))
			So(m.OutputEnabled, ShouldBeFalse)
			So(standby.high, ShouldBeFalse)
		})

		Convey("at zero speed disables the output", func() {
			c.Run(0, motiondriver.DirectionForward, 0.7, true)
			c.Run(0, motiondriver.DirectionBackward, 0, true)
			m, _ := c.Motor(0)
			So(m.OutputEnabled, ShouldBeFalse)
			So(m.Direction, ShouldEqual, motiondriver.DirectionBackward)
			So(bridge.values[0], ShouldEqual, uint32(0))
			So(bridge.values[1], ShouldEqual, uint32(0))
		})

		Convey("without autoEnable keeps a stopped motor stopped", func() {
			c.Run(0, motiondriver.DirectionForward, 0.5, false)
			m, _ := c.Motor(0)
			So(m.OutputEnabled, ShouldBeFalse)
			So(m.TargetSpeed, ShouldEqual, float32(0.5))
			So(bridge.values[0], ShouldEqual, uint32(0))
			So(standby.high, ShouldBeFalse)

			c.Start(0)
			So(bridge.values[0], ShouldEqual, uint32(128))
			So(standby.high, ShouldBeTrue)
		})

		Convey("reversing never drives both inputs", func() {
			for i := 0; i < 10; i++ {
				dir := motiondriver.DirectionForward
				if i%2 == 1 {
					dir = motiondriver.DirectionBackward
				}
				c.Run(2, dir, 1, true)
				c.RunAll(dir.Flip(), 0.25, true)
			}
			So(bridge.shorted, ShouldBeFalse)
		})

		Convey("ignores out of range motors", func() {
			writes, pinWrites := bridge.writes, standby.writes
			c.Run(motiondriver.MotorCount, motiondriver.DirectionForward, 1, true)
			c.Run(-1, motiondriver.DirectionForward, 1, true)
			c.Start(motiondriver.MotorCount)
			c.Stop(-1)
			So(bridge.writes, ShouldEqual, writes)
			So(standby.writes, ShouldEqual, pinWrites)

			_, ok := c.Motor(motiondriver.MotorCount)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestStartStop(t *testing.T) {
	Convey("with two motors running", t, func() {
		c, bridge, standby := newTestController()
		c.Begin()
		c.Run(0, motiondriver.DirectionForward, 1, true)
		c.Run(4, motiondriver.DirectionBackward, 0.5, true)
		So(standby.high, ShouldBeTrue)

		Convey("the standby line stays high until both stop", func() {
			c.Stop(0)
			So(standby.high, ShouldBeTrue)
			c.Stop(4)
			So(standby.high, ShouldBeFalse)
		})

		Convey("stopping keeps the stored speed for a restart", func() {
			c.Stop(4)
			m, _ := c.Motor(4)
			So(m.OutputEnabled, ShouldBeFalse)
			So(m.TargetSpeed, ShouldEqual, float32(0.5))
			So(bridge.values[9], ShouldEqual, uint32(0))

			c.Start(4)
			m, _ = c.Motor(4)
			So(m.OutputEnabled, ShouldBeTrue)
			So(m.Direction, ShouldEqual, motiondriver.DirectionBackward)
			So(bridge.values[9], ShouldEqual, uint32(128))
		})

		Convey("StopAll is idempotent", func() {
			c.StopAll()
			So(standby.high, ShouldBeFalse)
			c.StopAll()
			So(standby.high, ShouldBeFalse)
			for _, v := range bridge.values {
				So(v, ShouldEqual, uint32(0))
			}
		})

		Convey("StartAll only enables motors with a stored speed", func() {
			c.StopAll()
			c.StartAll()
			for i := 0; i < c.Count(); i++ {
				m, _ := c.Motor(i)
				So(m.OutputEnabled, ShouldEqual, i == 0 || i == 4)
			}
			So(standby.high, ShouldBeTrue)
		})

		Convey("RunAll updates the standby line once", func() {
			writes := standby.writes
			c.RunAll(motiondriver.DirectionForward, 0, true)
			So(standby.writes, ShouldEqual, writes+1)
			So(standby.high, ShouldBeFalse)
		})
	})
}
