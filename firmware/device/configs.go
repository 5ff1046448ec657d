//go:build rp2040

package device

import (
	"machine"

	tinygopwm "github.com/ralvarezdev/tinygo-pwm"

	"github.com/calvinmclean/motiondriver"
)

// ServoConfig has the bus and pins of the PCA9685 servo driver
type ServoConfig struct {
	I2C       *machine.I2C
	SDA       machine.Pin
	SCL       machine.Pin
	Frequency uint32
	Address   uint8
	// OutputEnable is the active low OE pin of the driver, held high until positions are written
	OutputEnable machine.Pin
}

// MotorOutputConfig is one H-bridge. PinA is driven going forward, PinB going backward.
// Both pins must be on the same PWM slice
type MotorOutputConfig struct {
	PWM  tinygopwm.PWM
	PinA machine.Pin
	PinB machine.Pin
}

// MotorConfig has the H-bridge pins of every motor and the standby pin they share
type MotorConfig struct {
	Standby machine.Pin
	Outputs [motiondriver.MotorCount]MotorOutputConfig
}

// DefaultServoConfig is the servo wiring of the rp2040 board
func DefaultServoConfig() ServoConfig {
	return ServoConfig{
		I2C:          machine.I2C1,
		SDA:          machine.GP14,
		SCL:          machine.GP15,
		Frequency:    400 * machine.KHz,
		Address:      0x40,
		OutputEnable: machine.GP17,
	}
}

// DefaultMotorConfig is the motor wiring of the rp2040 board: motor i uses GP(2i) and GP(2i+1) on PWM slice i
func DefaultMotorConfig() MotorConfig {
	return MotorConfig{
		Standby: machine.GP16,
		Outputs: [motiondriver.MotorCount]MotorOutputConfig{
			{PWM: machine.PWM0, PinA: machine.GP0, PinB: machine.GP1},
			{PWM: machine.PWM1, PinA: machine.GP2, PinB: machine.GP3},
			{PWM: machine.PWM2, PinA: machine.GP4, PinB: machine.GP5},
			{PWM: machine.PWM3, PinA: machine.GP6, PinB: machine.GP7},
			{PWM: machine.PWM4, PinA: machine.GP8, PinB: machine.GP9},
			{PWM: machine.PWM5, PinA: machine.GP10, PinB: machine.GP11},
		},
	}
}
