package main_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
)

// portEnv names the serial port of a connected board. The tests are skipped without it
const portEnv = "MOTIONDRIVER_TEST_PORT"

func sendSerial(t *testing.T, in string, expectedLen int) string {
	t.Helper()
	mode := &serial.Mode{
		BaudRate: 115200,
	}

	port, err := serial.Open(os.Getenv(portEnv), mode)
	if err != nil {
		t.Errorf("unexpected error opening serial connection: %v", err)
		return ""
	}
	defer port.Close()

	_, err = port.Write([]byte(in))
	if err != nil {
		t.Errorf("unexpected error writing serial: %v", err)
		return ""
	}
	time.Sleep(100 * time.Millisecond)

	buf := make([]byte, expectedLen)
	total := 0
	port.SetReadTimeout(1 * time.Second)
	deadline := time.Now().Add(1 * time.Second)
	for total < expectedLen && time.Now().Before(deadline) {
		n, err := port.Read(buf[total:])
		if err != nil {
			t.Errorf("unexpected error reading serial: %v", err)
			return ""
		}
		total += n
	}
	return string(buf[:total])
}

func TestSerial(t *testing.T) {
	if os.Getenv(portEnv) == "" {
		t.Skipf("%s is not set", portEnv)
	}

	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{
			"Ping",
			"LOG OFF\nPING\n",
			`OK
PONG
`,
		},
		{
			"ServoAndErrors",
			"LOG OFF\nS 0 1500\nS 9 1500\nPING\n",
			`OK
OK
ERR Servo channel
PONG
`,
		},
		{
			"LineTooLong",
			"LOG OFF\n" + strings.Repeat("a", 100) + "\nPING\n",
			`OK
ERR Line too long
PONG
`,
		},
		{
			"Motors",
			"LOG OFF\nMOTOR FORWARD 2.0\nMOTOR 1 FORWARD 0.2\nMOTOR STOP\n",
			`OK
ERR MOTOR speed
OK
OK
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := strings.ReplaceAll(tt.expected, "\n", "\r\n")
			out := sendSerial(t, tt.in, len(expected))
			clean := strings.Trim(out, "\x00")
			if clean != expected {
				t.Errorf("expected=%q, got=%q", expected, clean)
			}
		})
	}
}
