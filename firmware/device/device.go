//go:build rp2040

package device

import (
	"io"
	"machine"
	"time"

	tinygoerrors "github.com/ralvarezdev/tinygo-errors"
	tinygopwm "github.com/ralvarezdev/tinygo-pwm"
	"tinygo.org/x/drivers/pca9685"

	"github.com/calvinmclean/motiondriver"
	"github.com/calvinmclean/motiondriver/firmware/motor"
	"github.com/calvinmclean/motiondriver/firmware/servo"
)

var bootTime = time.Now()

// Millis is the wrapping millisecond clock used by the engines
func Millis() uint32 {
	return uint32(time.Since(bootTime).Milliseconds())
}

// digitalPin adapts a machine.Pin to the engines' pin interface
type digitalPin machine.Pin

func (p digitalPin) Set(high bool) {
	machine.Pin(p).Set(high)
}

// motorPWM writes 8-bit duty values to a PWM slice
type motorPWM struct {
	pwm tinygopwm.PWM
}

func (m motorPWM) Set(channel uint8, duty uint32) {
	tinygopwm.SetDuty(m.pwm, channel, duty, motor.MaxDuty)
}

// NewServos brings up the PCA9685 and returns a servo engine that has written its starting
// positions. Telemetry lines are written to telemetry
func NewServos(cfg ServoConfig, telemetry io.Writer) (*servo.Controller, tinygoerrors.ErrorCode) {
	oe := cfg.OutputEnable
	oe.Configure(machine.PinConfig{Mode: machine.PinOutput})
	oe.High()

	err := cfg.I2C.Configure(machine.I2CConfig{
		SDA:       cfg.SDA,
		SCL:       cfg.SCL,
		Frequency: cfg.Frequency,
	})
	if err != nil {
		return nil, ErrorCodeDeviceFailedToConfigureI2C
	}

	driver := pca9685.New(cfg.I2C, cfg.Address)
	if code := checkServoDriver(driver); code != tinygoerrors.ErrorCodeNil {
		return nil, code
	}

	err = driver.Configure(pca9685.PWMConfig{
		Period: uint64(servo.PeriodUs) * uint64(time.Microsecond),
	})
	if err != nil {
		return nil, ErrorCodeDeviceFailedToConfigureServoDriver
	}

	servos := servo.New(driver, telemetry)
	servos.Begin(Millis())
	oe.Low()

	println("servo driver ready at", cfg.Address)
	return servos, tinygoerrors.ErrorCodeNil
}

// NewMotors configures every motor PWM slice and the standby pin and returns a motor engine
// with every motor coasting
func NewMotors(cfg MotorConfig) (*motor.Controller, tinygoerrors.ErrorCode) {
	standby := cfg.Standby
	standby.Configure(machine.PinConfig{Mode: machine.PinOutput})
	standby.Low()

	var outputs [motiondriver.MotorCount]motor.Output
	for i, out := range cfg.Outputs {
		err := out.PWM.Configure(machine.PWMConfig{
			Period: uint64(time.Second) / motor.FrequencyHz,
		})
		if err != nil {
			return nil, ErrorCodeDeviceFailedToConfigureMotorPWM
		}

		channelA, err := out.PWM.Channel(out.PinA)
		if err != nil {
			return nil, ErrorCodeDeviceFailedToGetMotorPWMChannel
		}
		channelB, err := out.PWM.Channel(out.PinB)
		if err != nil {
			return nil, ErrorCodeDeviceFailedToGetMotorPWMChannel
		}

		outputs[i] = motor.Output{
			PWM:      motorPWM{out.PWM},
			ChannelA: channelA,
			ChannelB: channelB,
		}
	}

	motors := motor.New(digitalPin(standby), outputs)
	motors.Begin()

	println("motor driver ready,", len(outputs), "motors")
	return motors, tinygoerrors.ErrorCodeNil
}
