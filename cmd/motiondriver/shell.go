package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/calvinmclean/motiondriver"
	"github.com/calvinmclean/motiondriver/controller"
	"github.com/calvinmclean/motiondriver/profile"
)

func runShell(cfg controller.Config) {
	c, err := controller.New(cfg)
	if err != nil {
		panic(err)
	}
	defer c.Close()

	shell := ishell.New()
	shell.Println("Motion driver shell")

	c.OnTelemetry = func(line string) {
		shell.Println(line)
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "ping",
		Help: "ping",
		Func: func(ctx *ishell.Context) {
			err := c.Ping()
			if err != nil {
				ctx.Err(err)
				return
			}
			ctx.Println("PONG")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "servo",
		Help: "servo <channel> <pulseUs>",
		Func: func(ctx *ishell.Context) {
			if len(ctx.Args) != 2 {
				ctx.Println(ctx.Cmd.Help)
				return
			}
			channel, err := strconv.Atoi(ctx.Args[0])
			if err != nil {
				ctx.Err(err)
				return
			}
			pulse, err := strconv.Atoi(ctx.Args[1])
			if err != nil {
				ctx.Err(err)
				return
			}
			report(ctx, c.SetServo(channel, pulse))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "sweep",
		Help: "sweep on|off [channel|start-end|all]",
		Func: func(ctx *ishell.Context) {
			if len(ctx.Args) < 1 || len(ctx.Args) > 2 {
				ctx.Println(ctx.Cmd.Help)
				return
			}
			target := ""
			if len(ctx.Args) == 2 {
				target = ctx.Args[1]
			}
			enabled, err := parseOnOff(ctx.Args[0])
			if err != nil {
				ctx.Err(err)
				return
			}
			report(ctx, c.SetSweep(enabled, target))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "log",
		Help: "log on|off",
		Func: func(ctx *ishell.Context) {
			if len(ctx.Args) != 1 {
				ctx.Println(ctx.Cmd.Help)
				return
			}
			enabled, err := parseOnOff(ctx.Args[0])
			if err != nil {
				ctx.Err(err)
				return
			}
			report(ctx, c.SetLog(enabled))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "motor",
		Help: "motor [motor|all] forward|backward|start|stop [speed]",
		Func: func(ctx *ishell.Context) {
			args := ctx.Args
			target := ""
			if len(args) > 0 {
				if _, err := strconv.Atoi(args[0]); err == nil || strings.EqualFold(args[0], "all") {
					target, args = args[0], args[1:]
				}
			}
			if len(args) == 0 {
				ctx.Println(ctx.Cmd.Help)
				return
			}

			speed := 1.0
			if len(args) > 1 {
				var err error
				speed, err = strconv.ParseFloat(args[1], 64)
				if err != nil {
					ctx.Err(err)
					return
				}
			}

			switch strings.ToLower(args[0]) {
			case "forward":
				report(ctx, c.MotorRun(target, motiondriver.DirectionForward, speed))
			case "backward":
				report(ctx, c.MotorRun(target, motiondriver.DirectionBackward, speed))
			case "start":
				report(ctx, c.MotorStart(target))
			case "stop":
				report(ctx, c.MotorStop(target))
			default:
				ctx.Println(ctx.Cmd.Help)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "profile",
		Help: "profile <file.yaml>",
		Func: func(ctx *ishell.Context) {
			if len(ctx.Args) != 1 {
				ctx.Println(ctx.Cmd.Help)
				return
			}
			p, err := profile.Load(ctx.Args[0])
			if err != nil {
				ctx.Err(err)
				return
			}
			report(ctx, c.Configure(p))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "raw",
		Help: "raw <command line>",
		Func: func(ctx *ishell.Context) {
			resp, err := c.Send(strings.Join(ctx.Args, " "))
			if err != nil {
				ctx.Err(err)
				return
			}
			for _, line := range resp.Lines {
				ctx.Println(line)
			}
			ctx.Println(resp.Reply)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "board-help",
		Help: "show the board's command reference",
		Func: func(ctx *ishell.Context) {
			lines, err := c.Help()
			if err != nil {
				ctx.Err(err)
				return
			}
			for _, line := range lines {
				ctx.Println(line)
			}
		},
	})

	shell.Run()
}

// parseOnOff accepts the same ON/OFF words as the board
func parseOnOff(arg string) (bool, error) {
	switch {
	case strings.EqualFold(arg, "on"):
		return true, nil
	case strings.EqualFold(arg, "off"):
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", arg)
}

func report(ctx *ishell.Context, err error) {
	if err != nil {
		ctx.Err(err)
		return
	}
	ctx.Println("OK")
}
