package controller

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/calvinmclean/motiondriver"
	"github.com/calvinmclean/motiondriver/firmware/commands"
	"github.com/calvinmclean/motiondriver/profile"
	"github.com/calvinmclean/motiondriver/sim"
)

var ErrTimeout = errors.New("timed out waiting for reply")

// pollInterval bounds each read so the reply deadline is checked regularly
const pollInterval = 50 * time.Millisecond

// Port is the serial connection to a board
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

var (
	_ Port = serial.Port(nil)
	_ Port = (*sim.Board)(nil)
)

// CommandError is returned when the board rejects a command
type CommandError struct {
	Command string
	// Reply is the raw ERR line
	Reply string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q rejected: %s", e.Command, e.Reason())
}

// Reason is the reply without the ERR prefix
func (e *CommandError) Reason() string {
	return strings.TrimPrefix(e.Reply, commands.ErrPrefix)
}

// Response is a successful reply and any lines the board wrote before it
type Response struct {
	Reply string
	Lines []string
}

// Controller sends commands to a board and waits for each reply
type Controller struct {
	cfg  Config
	port Port

	mtx     sync.Mutex
	pending []byte
	logOut  io.Writer

	// OnTelemetry receives sweep telemetry lines read from the board
	OnTelemetry func(line string)

	stopSim context.CancelFunc
}

// New opens the configured port, or an in-memory board when Config.Simulated. If a profile
// is configured it is sent before returning
func New(cfg Config) (*Controller, error) {
	var c *Controller
	if cfg.Simulated() {
		board := sim.New()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			_ = board.Run(ctx)
		}()

		c = NewWithPort(board, cfg)
		c.stopSim = cancel
	} else {
		portName, err := cfg.EffectivePort()
		if err != nil {
			return nil, err
		}
		baud, err := cfg.Baud()
		if err != nil {
			return nil, err
		}

		port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("error opening serial port %q: %w", portName, err)
		}
		c = NewWithPort(port, cfg)
	}

	if cfg.ProfileFile != "" {
		p, err := profile.Load(cfg.ProfileFile)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		err = c.Configure(p)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("error applying profile: %w", err)
		}
	}

	return c, nil
}

// NewFromEnv creates a Controller using ConfigFromEnv
func NewFromEnv() (*Controller, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// NewWithPort uses an already open port
func NewWithPort(port Port, cfg Config) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	return &Controller{
		cfg:    cfg,
		port:   port,
		logOut: os.Stderr,
	}
}

// SetLogOutput changes where traffic is logged
func (c *Controller) SetLogOutput(w io.Writer) {
	c.mtx.Lock()
	c.logOut = w
	c.mtx.Unlock()
}

func (c *Controller) Close() error {
	if c.stopSim != nil {
		c.stopSim()
	}
	return c.port.Close()
}

// Send writes one command line and waits for its reply. Lines written before the reply,
// like HELP text, are returned in Response.Lines
func (c *Controller) Send(command string) (Response, error) {
	command = strings.TrimSpace(command)
	if strings.ContainsAny(command, "\r\n") {
		return Response{}, fmt.Errorf("command %q contains a line break", command)
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.logf("-> %s\n", command)
	_, err := io.WriteString(c.port, command+"\n")
	if err != nil {
		return Response{}, fmt.Errorf("error writing command: %w", err)
	}

	var resp Response
	deadline := time.Now().Add(c.cfg.Timeout)
	for {
		line, err := c.readLine(deadline)
		if err != nil {
			return Response{}, err
		}

		switch {
		case strings.HasPrefix(line, motiondriver.TelemetryPrefix):
			c.telemetry(line)
		case strings.HasPrefix(line, commands.ErrPrefix):
			c.logf("<- %s\n", line)
			return Response{}, &CommandError{Command: command, Reply: line}
		case line == commands.ReplyOK || line == commands.ReplyPong:
			c.logf("<- %s\n", line)
			resp.Reply = line
			return resp, nil
		default:
			c.logf("<- %s\n", line)
			resp.Lines = append(resp.Lines, line)
		}
	}
}

// Flush reads whatever the board has written since the last reply, passing telemetry
// to OnTelemetry and logging anything else
func (c *Controller) Flush() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	deadline := time.Now().Add(pollInterval)
	for {
		line, err := c.readLine(deadline)
		if errors.Is(err, ErrTimeout) {
			return nil
		}
		if err != nil {
			return err
		}

		if strings.HasPrefix(line, motiondriver.TelemetryPrefix) {
			c.telemetry(line)
			continue
		}
		c.logf("<- %s\n", line)
	}
}

// readLine returns the next line without its terminator
func (c *Controller) readLine(deadline time.Time) (string, error) {
	buf := make([]byte, 128)
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := strings.TrimRight(string(c.pending[:i]), "\r")
			c.pending = c.pending[i+1:]
			return line, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrTimeout
		}

		err := c.port.SetReadTimeout(min(remaining, pollInterval))
		if err != nil {
			return "", fmt.Errorf("error setting read timeout: %w", err)
		}

		n, err := c.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("error reading reply: %w", err)
		}
		c.pending = append(c.pending, buf[:n]...)
	}
}

func (c *Controller) telemetry(line string) {
	if c.OnTelemetry != nil {
		c.OnTelemetry(line)
		return
	}
	c.logf("<- %s\n", line)
}

func (c *Controller) logf(format string, args ...any) {
	if !c.cfg.LogTraffic || c.logOut == nil {
		return
	}
	fmt.Fprintf(c.logOut, format, args...)
}

// exec sends a command that replies OK
func (c *Controller) exec(command string) error {
	_, err := c.Send(command)
	return err
}

// Ping checks that the board answers
func (c *Controller) Ping() error {
	resp, err := c.Send("PING")
	if err != nil {
		return err
	}
	if resp.Reply != commands.ReplyPong {
		return fmt.Errorf("unexpected reply to PING: %q", resp.Reply)
	}
	return nil
}

// Help returns the board's command reference
func (c *Controller) Help() ([]string, error) {
	resp, err := c.Send("HELP")
	if err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// SetServo moves a servo channel to a pulse width and stops its sweep
func (c *Controller) SetServo(channel int, pulseUs int) error {
	return c.exec(fmt.Sprintf("S %d %d", channel, pulseUs))
}

// SetSweep starts or stops the sweep. target is a channel, a start-end range, ALL,
// or empty for the board's default channel
func (c *Controller) SetSweep(enabled bool, target string) error {
	return c.exec(joinCommand("SWEEP", onOff(enabled), target))
}

// SetLog turns sweep telemetry on or off
func (c *Controller) SetLog(enabled bool) error {
	return c.exec(joinCommand("LOG", onOff(enabled)))
}

// MotorRun drives motors in a direction at a speed in [0, 1]. An empty target drives every motor
func (c *Controller) MotorRun(target string, dir motiondriver.Direction, speed float64) error {
	mode := "FORWARD"
	if dir == motiondriver.DirectionBackward {
		mode = "BACKWARD"
	}
	return c.exec(joinCommand("MOTOR", target, mode, strconv.FormatFloat(speed, 'f', -1, 32)))
}

// MotorStart re-enables motors at their last speed
func (c *Controller) MotorStart(target string) error {
	return c.exec(joinCommand("MOTOR", target, "START"))
}

// MotorStop coasts motors
func (c *Controller) MotorStop(target string) error {
	return c.exec(joinCommand("MOTOR", target, "STOP"))
}

// Configure sends every CFG command of a profile, stopping at the first rejected one
func (c *Controller) Configure(p profile.Profile) error {
	for _, cmd := range p.Commands() {
		err := c.exec(cmd)
		if err != nil {
			return err
		}
	}
	return nil
}

// Run sends every line read from in and writes the replies to out until in is exhausted or
// ctx is done. Rejected commands are written to out and do not stop the loop
func (c *Controller) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	ticker := time.NewTicker(4 * pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := c.Flush()
			if err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}

			resp, err := c.Send(line)
			var cmdErr *CommandError
			switch {
			case errors.As(err, &cmdErr):
				fmt.Fprintln(out, cmdErr.Reply)
			case errors.Is(err, ErrTimeout):
				fmt.Fprintf(out, "no reply to %q\n", line)
			case err != nil:
				return err
			default:
				for _, l := range resp.Lines {
					fmt.Fprintln(out, l)
				}
				fmt.Fprintln(out, resp.Reply)
			}
		}
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}

func joinCommand(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
