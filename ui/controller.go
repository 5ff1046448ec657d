package ui

import (
	"fmt"
	"io"
	"time"
)

type controllerWrapper struct {
	writer    io.Writer
	driveTime *timer
}

func (c *controllerWrapper) SetServo(channel int, value float64) {
	fmt.Fprintf(c.writer, "S %d %.0f\n", channel, value)
}

func (c *controllerWrapper) SetSweep(channel int, enabled bool) {
	fmt.Fprintf(c.writer, "SWEEP %s %d\n", onOff(enabled), channel)
}

func (c *controllerWrapper) SetLog(enabled bool) {
	fmt.Fprintf(c.writer, "LOG %s\n", onOff(enabled))
}

func (c *controllerWrapper) Drive(target string, m driveMode, speed float64) {
	cmd := m.command(target, speed)
	if cmd == "" {
		return
	}

	if m.drives(speed) {
		c.driveTime.Set(time.Now())
	} else {
		c.driveTime.Reset()
	}
	fmt.Fprintf(c.writer, "%s\n", cmd)
}

func (c *controllerWrapper) Ping() {
	fmt.Fprintln(c.writer, "PING")
}

func onOff(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}
