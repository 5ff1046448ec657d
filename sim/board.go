// Package sim runs the board firmware in memory so the host tools work without hardware
package sim

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/calvinmclean/motiondriver"
	"github.com/calvinmclean/motiondriver/firmware/commands"
	"github.com/calvinmclean/motiondriver/firmware/motor"
	"github.com/calvinmclean/motiondriver/firmware/servo"
	"github.com/calvinmclean/motiondriver/profile"
)

var ErrClosed = errors.New("board is closed")

// PWM records the last value written to every channel
type PWM struct {
	values map[uint8]uint32
}

func NewPWM() *PWM {
	return &PWM{values: map[uint8]uint32{}}
}

func (p *PWM) Set(channel uint8, value uint32) {
	p.values[channel] = value
}

// Value returns the last value written to channel
func (p *PWM) Value(channel uint8) uint32 {
	return p.values[channel]
}

// Pin records the last level written
type Pin struct {
	high bool
}

func (p *Pin) Set(high bool) {
	p.high = high
}

func (p *Pin) High() bool {
	return p.high
}

// Board is the firmware wired to simulated outputs. The host side is an io.ReadWriteCloser:
// bytes written are consumed by the command interpreter and replies are read back
type Board struct {
	mu sync.Mutex

	ServoPWM *PWM
	MotorPWM *PWM
	Standby  *Pin

	Servos      *servo.Controller
	Motors      *motor.Controller
	Interpreter *commands.Interpreter

	// rx holds bytes from the host, tx holds bytes for the host
	rx bytes.Buffer
	tx bytes.Buffer

	ready       chan struct{}
	readTimeout time.Duration
	nowMs       uint32
	closed      bool
}

// New creates a Board that has completed bring-up
func New() *Board {
	b := &Board{
		ServoPWM:    NewPWM(),
		MotorPWM:    NewPWM(),
		Standby:     &Pin{},
		ready:       make(chan struct{}, 1),
		readTimeout: time.Second,
	}

	var outputs [motiondriver.MotorCount]motor.Output
	for i := range outputs {
		outputs[i] = motor.Output{
			PWM:      b.MotorPWM,
			ChannelA: uint8(2 * i),
			ChannelB: uint8(2*i + 1),
		}
	}

	link := &boardSide{b}
	b.Servos = servo.New(b.ServoPWM, link)
	b.Motors = motor.New(b.Standby, outputs)
	b.Interpreter = commands.New(link, b.Servos, b.Motors)

	b.Servos.Begin(b.nowMs)
	b.Motors.Begin()
	return b
}

// Write delivers bytes to the board and runs one loop iteration
func (b *Board) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}

	b.rx.Write(p)
	b.loop()
	return len(p), nil
}

// Read returns bytes written by the board. Like a serial port with a read timeout it
// returns 0 bytes and no error when nothing arrives in time
func (b *Board) Read(p []byte) (int, error) {
	b.mu.Lock()
	n, err := b.read(p)
	timeout := b.readTimeout
	b.mu.Unlock()
	if n > 0 || err != nil {
		return n, err
	}

	select {
	case <-b.ready:
	case <-time.After(timeout):
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read(p)
}

func (b *Board) read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if b.tx.Len() == 0 {
		return 0, nil
	}
	return b.tx.Read(p)
}

// SetReadTimeout sets how long Read waits for data
func (b *Board) SetReadTimeout(t time.Duration) error {
	b.mu.Lock()
	b.readTimeout = t
	b.mu.Unlock()
	return nil
}

func (b *Board) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Advance moves the board clock forward, running one loop iteration per millisecond
func (b *Board) Advance(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for range d.Milliseconds() {
		b.nowMs++
		b.loop()
	}
}

// Run advances the board clock in real time until ctx is done
func (b *Board) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Advance(time.Millisecond)
		}
	}
}

// Apply configures the servo engine directly, as if the profile's CFG commands had been sent
func (b *Board) Apply(p profile.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.ApplyTo(b.Servos)
}

// Do runs f with exclusive access to the board, for reading engine state
func (b *Board) Do(f func(*Board)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(b)
}

// loop is one iteration of the firmware control loop
func (b *Board) loop() {
	b.Interpreter.Poll()
	b.Servos.Tick(b.nowMs)
}

// boardSide is the firmware's end of the link
type boardSide struct {
	b *Board
}

func (s *boardSide) ReadByte() (byte, error) {
	return s.b.rx.ReadByte()
}

func (s *boardSide) Write(p []byte) (int, error) {
	n, err := s.b.tx.Write(p)
	select {
	case s.b.ready <- struct{}{}:
	default:
	}
	return n, err
}
