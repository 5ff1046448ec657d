package controller

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/calvinmclean/motiondriver"
	"github.com/calvinmclean/motiondriver/profile"
	"github.com/calvinmclean/motiondriver/sim"
)

func newTestController(t *testing.T) (*Controller, *sim.Board, *bytes.Buffer) {
	t.Helper()
	board := sim.New()
	c := NewWithPort(board, Config{Timeout: 200 * time.Millisecond, LogTraffic: true})

	var log bytes.Buffer
	c.SetLogOutput(&log)
	t.Cleanup(func() { _ = c.Close() })
	return c, board, &log
}

// silentPort never replies
type silentPort struct {
	written bytes.Buffer
	timeout time.Duration
}

func (p *silentPort) Read([]byte) (int, error) {
	time.Sleep(p.timeout)
	return 0, nil
}

func (p *silentPort) Write(b []byte) (int, error) {
	return p.written.Write(b)
}

func (p *silentPort) Close() error {
	return nil
}

func (p *silentPort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func TestSend(t *testing.T) {
	tests := []struct {
		name          string
		command       string
		expectedReply string
		expectedErr   string
	}{
		{"Ping", "PING", "PONG", ""},
		{"Servo", "S 2 1500", "OK", ""},
		{"TrimsSpace", "  S 2 1500  ", "OK", ""},
		{"Rejected", "S 9 1500", "", `command "S 9 1500" rejected: Servo channel`},
		{"Unknown", "JUMP", "", `command "JUMP" rejected: Unknown command`},
		{"LineBreak", "PING\nPING", "", "contains a line break"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestController(t)

			resp, err := c.Send(tt.command)
			if tt.expectedErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.expectedErr) {
					t.Errorf("expected error containing %q, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Reply != tt.expectedReply {
				t.Errorf("expected=%q, got=%q", tt.expectedReply, resp.Reply)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	c, _, _ := newTestController(t)

	err := c.SetServo(0, 1500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = c.MotorRun("", motiondriver.DirectionForward, 2)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.Reply != "ERR MOTOR speed" || cmdErr.Reason() != "MOTOR speed" {
		t.Errorf("unexpected error reply %q", cmdErr.Reply)
	}
}

func TestTimeout(t *testing.T) {
	port := &silentPort{}
	c := NewWithPort(port, Config{Timeout: 20 * time.Millisecond})

	_, err := c.Send("PING")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if port.written.String() != "PING\n" {
		t.Errorf("unexpected bytes written: %q", port.written.String())
	}
}

func TestBridge(t *testing.T) {
	c, board, log := newTestController(t)

	err := c.Ping()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(log.String(), "-> PING\n<- PONG\n") {
		t.Errorf("unexpected traffic log: %q", log.String())
	}

	steps := []func() error{
		func() error { return c.SetServo(1, 1200) },
		func() error { return c.SetSweep(true, "2-3") },
		func() error { return c.SetLog(false) },
		func() error { return c.MotorRun("4", motiondriver.DirectionBackward, 0.5) },
		func() error { return c.MotorRun("", motiondriver.DirectionForward, 0.25) },
		func() error { return c.MotorStop("5") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
	}

	board.Do(func(b *sim.Board) {
		ch, _ := b.Servos.Channel(1)
		if ch.PulseUs != 1200 {
			t.Errorf("expected channel 1 at 1200, got %d", ch.PulseUs)
		}
		for i, expected := range []bool{false, false, true, true, false, false} {
			ch, _ := b.Servos.Channel(i)
			if ch.Enabled != expected {
				t.Errorf("channel %d: expected sweep enabled=%v", i, expected)
			}
		}
		if b.Servos.Telemetry() {
			t.Error("expected telemetry off")
		}

		m, _ := b.Motors.Motor(4)
		if m.Direction != motiondriver.DirectionForward || m.TargetSpeed != 0.25 {
			t.Errorf("unexpected motor 4 state: %+v", m)
		}
		m, _ = b.Motors.Motor(5)
		if m.OutputEnabled {
			t.Error("expected motor 5 stopped")
		}
	})

	err = c.MotorStart("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !board.Standby.High() {
		t.Error("expected standby line high")
	}
}

func TestHelp(t *testing.T) {
	c, _, _ := newTestController(t)

	lines, err := c.Help()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) == 0 || lines[0] != "Available Commands:" {
		t.Errorf("unexpected help lines: %q", lines)
	}
}

func TestTelemetry(t *testing.T) {
	c, board, _ := newTestController(t)

	var telemetry []string
	c.OnTelemetry = func(line string) {
		telemetry = append(telemetry, line)
	}

	err := c.SetSweep(true, "0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	board.Advance(200 * time.Millisecond)

	err = c.Ping()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(telemetry) != 1 || telemetry[0] != "Servo 0 pulse: 1550 us" {
		t.Errorf("unexpected telemetry: %q", telemetry)
	}

	board.Advance(250 * time.Millisecond)
	err = c.Flush()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(telemetry) != 2 || telemetry[1] != "Servo 0 pulse: 1600 us" {
		t.Errorf("unexpected telemetry: %q", telemetry)
	}
}

func TestConfigure(t *testing.T) {
	c, board, _ := newTestController(t)

	channel := 3
	err := c.Configure(profile.Profile{
		DefaultChannel: &channel,
		Channels: []profile.ChannelProfile{
			{Channel: 3, MinUs: 1100, MaxUs: 1900, StepUs: 5, IntervalMs: 10},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	board.Do(func(b *sim.Board) {
		if b.Servos.DefaultChannel() != 3 {
			t.Errorf("expected default channel 3, got %d", b.Servos.DefaultChannel())
		}
		ch, _ := b.Servos.Channel(3)
		if ch.MinPulseUs != 1100 || ch.MaxPulseUs != 1900 || ch.StepUs != 5 || ch.IntervalMs != 10 {
			t.Errorf("unexpected channel config: %+v", ch)
		}
	})
}

func TestRun(t *testing.T) {
	c, _, _ := newTestController(t)

	in := strings.NewReader("PING\n\nS 9 1500\nS 0 1500\n")
	var out bytes.Buffer
	err := c.Run(context.Background(), in, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "PONG\nERR Servo channel\nOK\n"
	if out.String() != expected {
		t.Errorf("expected=%q, got=%q", expected, out.String())
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := ConfigFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.SerialPort != SerialPortAuto || cfg.BaudRate != "115200" || cfg.Timeout != time.Second || !cfg.LogTraffic {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("MOTIONDRIVER_SERIAL_PORT", "/dev/ttyACM0")
		t.Setenv("MOTIONDRIVER_SERIAL_BAUDRATE", "9600")
		t.Setenv("MOTIONDRIVER_SERIAL_TIMEOUT", "250ms")
		t.Setenv("MOTIONDRIVER_DRY_RUN", "true")

		cfg, err := ConfigFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		port, err := cfg.EffectivePort()
		if err != nil || port != "/dev/ttyACM0" {
			t.Errorf("unexpected port %q: %v", port, err)
		}
		baud, err := cfg.Baud()
		if err != nil || baud != 9600 {
			t.Errorf("unexpected baud %d: %v", baud, err)
		}
		if cfg.Timeout != 250*time.Millisecond || !cfg.Simulated() {
			t.Errorf("unexpected config: %+v", cfg)
		}
	})

	t.Run("InvalidBaud", func(t *testing.T) {
		_, err := Config{BaudRate: "fast"}.Baud()
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestNewSimulated(t *testing.T) {
	c, err := New(Config{SerialPort: SerialPortNone, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	err = c.Ping()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
