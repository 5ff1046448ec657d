package commands

import (
	"io"
	"iter"

	"github.com/calvinmclean/motiondriver"
)

// Servos is the servo sweep engine as seen by the command line
type Servos interface {
	ChannelCount() int
	SetAbsolute(channel int, pulseUs int32)
	SetSweepEnabled(channel int, enabled bool)
	SetSweepRangeEnabled(start, end int, enabled bool)
	SetSweepAllEnabled(enabled bool)
	DefaultChannel() int
	SetDefaultChannel(channel int)
	ConfigureRange(channel int, minPulseUs, maxPulseUs uint16)
	ConfigureStep(channel int, stepUs uint16, intervalMs uint32)
	SetTelemetry(enabled bool)
}

// Motors is the motor drive engine as seen by the command line
type Motors interface {
	Count() int
	Run(motor int, dir motiondriver.Direction, speed float32, autoEnable bool)
	RunAll(dir motiondriver.Direction, speed float32, autoEnable bool)
	Start(motor int)
	StartAll()
	Stop(motor int)
	StopAll()
}

// Transport is the serial link. ReadByte returns an error when no byte is available
type Transport interface {
	io.ByteReader
	io.Writer
}

// Interpreter assembles lines from the transport and runs one command per line
type Interpreter struct {
	transport Transport
	servos    Servos
	motors    Motors

	buf [motiondriver.LineBufferSize]byte
	n   int
	// discarding is set after an overflow until the rest of the line has been dropped
	discarding bool

	args [motiondriver.LineBufferSize / 2][]byte
}

func New(transport Transport, servos Servos, motors Motors) *Interpreter {
	return &Interpreter{
		transport: transport,
		servos:    servos,
		motors:    motors,
	}
}

// Poll consumes every byte currently available on the transport and returns when none remain
func (in *Interpreter) Poll() {
	for {
		b, err := in.transport.ReadByte()
		if err != nil {
			return
		}
		in.Consume(b)
	}
}

// Consume adds one byte to the current line, running the line when b terminates it
func (in *Interpreter) Consume(b byte) {
	switch {
	case b == '\r':
	case b == '\n':
		if !in.discarding && in.n > 0 {
			in.HandleLine(in.buf[:in.n])
		}
		in.n = 0
		in.discarding = false
	case in.discarding:
	case in.n >= len(in.buf):
		in.println(ErrPrefix + ErrLineTooLong.Error())
		in.n = 0
		in.discarding = true
	default:
		in.buf[in.n] = b
		in.n++
	}
}

// Buffered returns the length of the unterminated line
func (in *Interpreter) Buffered() int {
	return in.n
}

// HandleLine runs one complete line without its terminator. A blank line writes nothing
func (in *Interpreter) HandleLine(line []byte) {
	args := in.args[:0]
	for field := range Fields(line) {
		if len(args) == cap(args) {
			break
		}
		args = append(args, field)
	}
	if len(args) == 0 {
		return
	}

	cmd, ok := Lookup(args[0])
	if !ok {
		in.println(Reply("", ErrUnknownCommand))
		return
	}

	in.println(Reply(cmd.Run(in, args[1:])))
}

func (in *Interpreter) println(line string) {
	_, _ = io.WriteString(in.transport, line+motiondriver.LineEnding)
}

// Fields yields the runs of line separated by spaces and tabs
func Fields(line []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		start := -1
		for i, b := range line {
			if b == ' ' || b == '\t' {
				if start >= 0 {
					if !yield(line[start:i:i]) {
						return
					}
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			yield(line[start:len(line):len(line)])
		}
	}
}
