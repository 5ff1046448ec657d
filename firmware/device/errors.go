package device

import (
	tinygoerrors "github.com/ralvarezdev/tinygo-errors"
)

const (
	// ErrorCodeDeviceStartNumber is the starting number for bring-up error codes
	ErrorCodeDeviceStartNumber uint16 = 5400
)

const (
	ErrorCodeDeviceFailedToConfigureI2C tinygoerrors.ErrorCode = tinygoerrors.ErrorCode(iota + ErrorCodeDeviceStartNumber)
	ErrorCodeDeviceServoDriverNotFound
	ErrorCodeDeviceFailedToConfigureServoDriver
	ErrorCodeDeviceFailedToConfigureMotorPWM
	ErrorCodeDeviceFailedToGetMotorPWMChannel
)

// servoDriver is the part of the PCA9685 driver used to detect the chip on the bus
type servoDriver interface {
	IsConnected() error
}

func checkServoDriver(d servoDriver) tinygoerrors.ErrorCode {
	if err := d.IsConnected(); err != nil {
		return ErrorCodeDeviceServoDriverNotFound
	}
	return tinygoerrors.ErrorCodeNil
}
