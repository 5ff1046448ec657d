//go:build rp2040

package main

import (
	"machine"
	"time"

	tinygoerrors "github.com/ralvarezdev/tinygo-errors"

	"github.com/calvinmclean/motiondriver/firmware/commands"
	"github.com/calvinmclean/motiondriver/firmware/device"
)

const baudRate = 115200

func main() {
	serial := machine.Serial
	err := serial.Configure(machine.UARTConfig{BaudRate: baudRate})
	if err != nil {
		halt("serial init failed")
	}

	// give the host time to open the port before the banner
	time.Sleep(500 * time.Millisecond)
	println("motion driver bring-up")

	servos, code := device.NewServos(device.DefaultServoConfig(), serial)
	if code != tinygoerrors.ErrorCodeNil {
		println("servo controller init failed, code", uint16(code))
		halt("servo controller init failed")
	}

	motors, code := device.NewMotors(device.DefaultMotorConfig())
	if code != tinygoerrors.ErrorCodeNil {
		println("motor controller init failed, code", uint16(code))
		halt("motor controller init failed")
	}

	println("servo controller ready. Sweep disabled (use 'SWEEP ON').")
	println("motor controller ready. Use 'MOTOR' commands to drive the motors.")

	interpreter := commands.New(serial, servos, motors)
	for {
		interpreter.Poll()
		servos.Tick(device.Millis())
	}
}

// halt stops the board after a failed bring-up, repeating the reason
func halt(reason string) {
	for {
		println(reason + ". Halting.")
		time.Sleep(time.Second)
	}
}
