package commands

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/calvinmclean/motiondriver"
)

// Error is a reason reported to the host as "ERR <reason>"
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrLineTooLong    Error = "Line too long"
	ErrUnknownCommand Error = "Unknown command"

	ErrPingSyntax Error = "PING cmd syntax"
	ErrHelpSyntax Error = "HELP cmd syntax"

	ErrServoSyntax  Error = "S cmd syntax"
	ErrServoChannel Error = "Servo channel"
	ErrServoPulse   Error = "Servo pulse"

	ErrSweepSyntax Error = "SWEEP cmd syntax"
	ErrSweepArg    Error = "SWEEP arg"
	ErrSweepRange  Error = "SWEEP range"

	ErrLogSyntax Error = "LOG cmd syntax"
	ErrLogArg    Error = "LOG arg"

	ErrMotorSyntax Error = "MOTOR cmd syntax"
	ErrMotorArg    Error = "MOTOR arg"
	ErrMotorTarget Error = "MOTOR target"
	ErrMotorSpeed  Error = "MOTOR speed"

	ErrConfigSyntax  Error = "CFG cmd syntax"
	ErrConfigArg     Error = "CFG arg"
	ErrConfigChannel Error = "CFG channel"
	ErrConfigValue   Error = "CFG value"
)

const (
	helpUsage       = "HELP | ?"
	helpDescription = "Show all available commands and their descriptions."
)

const (
	ReplyOK   = "OK"
	ReplyPong = "PONG"
	ErrPrefix = "ERR "
)

// Command is one keyword of the line protocol. Run validates every argument before changing
// any state and returns the reply line, or an error reported as ERR
type Command struct {
	Keyword     string
	Aliases     []string
	Usage       string
	Description string
	Run         func(in *Interpreter, args [][]byte) (string, error)
}

func (cmd *Command) matches(keyword []byte) bool {
	if equalFold(keyword, cmd.Keyword) {
		return true
	}
	for _, alias := range cmd.Aliases {
		if equalFold(keyword, alias) {
			return true
		}
	}
	return false
}

var (
	PingCommand = &Command{
		Keyword:     "PING",
		Usage:       "PING",
		Description: "Check the link. Replies PONG.",
		Run: func(in *Interpreter, args [][]byte) (string, error) {
			if len(args) != 0 {
				return "", ErrPingSyntax
			}
			return ReplyPong, nil
		},
	}
	ServoCommand = &Command{
		Keyword:     "S",
		Usage:       "S <channel> <pulseUs>",
		Description: "Stop the sweep on a channel and move it to a pulse width, clamped to its range.",
		Run: func(in *Interpreter, args [][]byte) (string, error) {
			if len(args) != 2 {
				return "", ErrServoSyntax
			}

			channel, err := parseIndex(args[0], in.servos.ChannelCount())
			if err != nil {
				return "", ErrServoChannel
			}
			pulse, err := parsePulse(args[1])
			if err != nil {
				return "", ErrServoPulse
			}

			in.servos.SetAbsolute(channel, pulse)
			return ReplyOK, nil
		},
	}
	SweepCommand = &Command{
		Keyword:     "SWEEP",
		Usage:       "SWEEP ON|OFF [channel|start-end|ALL]",
		Description: "Start or stop the sweep. Without a target the default channel is used.",
		Run: func(in *Interpreter, args [][]byte) (string, error) {
			if len(args) < 1 || len(args) > 2 {
				return "", ErrSweepSyntax
			}

			enabled, ok := parseState(args[0])
			if !ok {
				return "", ErrSweepArg
			}

			t := target{start: in.servos.DefaultChannel(), end: in.servos.DefaultChannel()}
			if len(args) == 2 {
				var err error
				t, err = parseTarget(args[1], in.servos.ChannelCount())
				if err != nil {
					return "", ErrSweepRange
				}
			}

			if t.all {
				in.servos.SetSweepAllEnabled(enabled)
			} else {
				in.servos.SetSweepRangeEnabled(t.start, t.end, enabled)
			}
			return ReplyOK, nil
		},
	}
	LogCommand = &Command{
		Keyword:     "LOG",
		Usage:       "LOG ON|OFF",
		Description: "Turn sweep telemetry on or off.",
		Run: func(in *Interpreter, args [][]byte) (string, error) {
			if len(args) != 1 {
				return "", ErrLogSyntax
			}

			enabled, ok := parseState(args[0])
			if !ok {
				return "", ErrLogArg
			}

			in.servos.SetTelemetry(enabled)
			return ReplyOK, nil
		},
	}
	MotorCommand = &Command{
		Keyword:     "MOTOR",
		Usage:       "MOTOR [motor|ALL] STOP|START|FORWARD|BACKWARD [speed]",
		Description: "Drive motors. Without a target every motor is driven. Speed is 0.0 to 1.0, default 1.0.",
		Run: func(in *Interpreter, args [][]byte) (string, error) {
			if len(args) == 0 {
				return "", ErrMotorSyntax
			}

			t := target{all: true}
			mode, ok := parseMotorMode(args[0])
			if ok {
				args = args[1:]
			} else {
				if len(args) < 2 {
					return "", ErrMotorArg
				}

				var err error
				t, err = parseTarget(args[0], in.motors.Count())
				if err != nil {
					return "", ErrMotorTarget
				}
				mode, ok = parseMotorMode(args[1])
				if !ok {
					return "", ErrMotorArg
				}
				args = args[2:]
			}

			speed := float32(1)
			switch mode {
			case motorStop, motorStart:
				if len(args) != 0 {
					return "", ErrMotorSyntax
				}
			default:
				if len(args) > 1 {
					return "", ErrMotorSyntax
				}
				if len(args) == 1 {
					var err error
					speed, err = parseSpeed(args[0])
					if err != nil {
						return "", ErrMotorSpeed
					}
				}
			}

			if t.all {
				switch mode {
				case motorStop:
					in.motors.StopAll()
				case motorStart:
					in.motors.StartAll()
				default:
					in.motors.RunAll(mode.direction(), speed, true)
				}
				return ReplyOK, nil
			}

			for motor := t.start; motor <= t.end; motor++ {
				switch mode {
				case motorStop:
					in.motors.Stop(motor)
				case motorStart:
					in.motors.Start(motor)
				default:
					in.motors.Run(motor, mode.direction(), speed, true)
				}
			}
			return ReplyOK, nil
		},
	}
	ConfigCommand = &Command{
		Keyword: "CFG",
		Usage:   "CFG CHANNEL <ch> | CFG RANGE <ch> <minUs> <maxUs> | CFG STEP <ch> <stepUs> <intervalMs>",
		Description: "Set the default sweep channel, the pulse range of a channel, or its sweep step and interval. " +
			"Settings last until power off.",
		Run: func(in *Interpreter, args [][]byte) (string, error) {
			if len(args) == 0 {
				return "", ErrConfigSyntax
			}

			sub := args[0]
			args = args[1:]
			switch {
			case equalFold(sub, "CHANNEL"):
				if len(args) != 1 {
					return "", ErrConfigSyntax
				}
				channel, err := parseIndex(args[0], in.servos.ChannelCount())
				if err != nil {
					return "", ErrConfigChannel
				}
				in.servos.SetDefaultChannel(channel)
			case equalFold(sub, "RANGE"):
				if len(args) != 3 {
					return "", ErrConfigSyntax
				}
				channel, err := parseIndex(args[0], in.servos.ChannelCount())
				if err != nil {
					return "", ErrConfigChannel
				}
				minUs, err := parseUint(args[1], 16)
				if err != nil {
					return "", ErrConfigValue
				}
				maxUs, err := parseUint(args[2], 16)
				if err != nil {
					return "", ErrConfigValue
				}
				in.servos.ConfigureRange(channel, uint16(minUs), uint16(maxUs))
			case equalFold(sub, "STEP"):
				if len(args) != 3 {
					return "", ErrConfigSyntax
				}
				channel, err := parseIndex(args[0], in.servos.ChannelCount())
				if err != nil {
					return "", ErrConfigChannel
				}
				stepUs, err := parseUint(args[1], 16)
				if err != nil || stepUs == 0 {
					return "", ErrConfigValue
				}
				intervalMs, err := parseUint(args[2], 32)
				if err != nil {
					return "", ErrConfigValue
				}
				in.servos.ConfigureStep(channel, uint16(stepUs), uint32(intervalMs))
			default:
				return "", ErrConfigArg
			}
			return ReplyOK, nil
		},
	}
	HelpCommand = &Command{
		Keyword:     "HELP",
		Aliases:     []string{"?"},
		Usage:       helpUsage,
		Description: helpDescription,
		Run: func(in *Interpreter, args [][]byte) (string, error) {
			if len(args) != 0 {
				return "", ErrHelpSyntax
			}

			in.println("Available Commands:")
			for _, cmd := range commands {
				in.println("  " + cmd.Usage)
				in.println("      " + cmd.Description)
			}
			in.println("  " + helpUsage)
			in.println("      " + helpDescription)
			return ReplyOK, nil
		},
	}
)

var commands = []*Command{
	PingCommand,
	ServoCommand,
	SweepCommand,
	LogCommand,
	MotorCommand,
	ConfigCommand,
}

// Lookup finds the command for a keyword, ignoring case
func Lookup(keyword []byte) (*Command, bool) {
	if HelpCommand.matches(keyword) {
		return HelpCommand, true
	}
	for _, cmd := range commands {
		if cmd.matches(keyword) {
			return cmd, true
		}
	}
	return nil, false
}

type motorMode int

const (
	motorStop motorMode = iota
	motorStart
	motorForward
	motorBackward
)

func (m motorMode) direction() motiondriver.Direction {
	if m == motorBackward {
		return motiondriver.DirectionBackward
	}
	return motiondriver.DirectionForward
}

func parseMotorMode(token []byte) (motorMode, bool) {
	switch {
	case equalFold(token, "STOP"):
		return motorStop, true
	case equalFold(token, "START"):
		return motorStart, true
	case equalFold(token, "FORWARD"):
		return motorForward, true
	case equalFold(token, "BACKWARD"):
		return motorBackward, true
	default:
		return 0, false
	}
}

func parseState(token []byte) (enabled bool, ok bool) {
	switch {
	case equalFold(token, "ON"):
		return true, true
	case equalFold(token, "OFF"):
		return false, true
	default:
		return false, false
	}
}

// target is an inclusive index range or every index
type target struct {
	start, end int
	all        bool
}

// parseTarget accepts an index, an inclusive start-end range in either order, or ALL
func parseTarget(token []byte, count int) (target, error) {
	if equalFold(token, "ALL") || equalFold(token, "[ALL]") {
		return target{start: 0, end: count - 1, all: true}, nil
	}

	// a leading '-' is a sign, not a separator
	if sep := bytes.IndexByte(token, '-'); sep > 0 {
		start, err := parseIndex(token[:sep], count)
		if err != nil {
			return target{}, err
		}
		end, err := parseIndex(token[sep+1:], count)
		if err != nil {
			return target{}, err
		}
		if start > end {
			start, end = end, start
		}
		return target{start: start, end: end}, nil
	}

	index, err := parseIndex(token, count)
	if err != nil {
		return target{}, err
	}
	return target{start: index, end: index}, nil
}

var errOutOfRange = errors.New("out of range")

// parseIndex parses a whole base 10 token in [0, count)
func parseIndex(token []byte, count int) (int, error) {
	v, err := strconv.ParseInt(string(token), 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v >= int64(count) {
		return 0, errOutOfRange
	}
	return int(v), nil
}

// parsePulse parses a whole base 10 token of any magnitude. Values beyond int32 saturate
func parsePulse(token []byte) (int32, error) {
	v, err := strconv.ParseInt(string(token), 10, 32)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return int32(v), nil
}

func parseUint(token []byte, bitSize int) (uint64, error) {
	return strconv.ParseUint(string(token), 10, bitSize)
}

// parseSpeed parses a whole float token in [0, 1]. The range is checked
// before narrowing so values just outside it are not rounded in.
func parseSpeed(token []byte) (float32, error) {
	v, err := strconv.ParseFloat(string(token), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, errOutOfRange
	}
	return float32(v), nil
}

func equalFold(token []byte, word string) bool {
	return len(token) == len(word) && strings.EqualFold(string(token), word)
}

// Reply renders a command result as the line written to the host
func Reply(reply string, err error) string {
	if err != nil {
		return ErrPrefix + err.Error()
	}
	return reply
}
