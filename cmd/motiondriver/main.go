package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/calvinmclean/motiondriver/controller"
	"github.com/calvinmclean/motiondriver/ui"
)

func main() {
	cfg, err := controller.ConfigFromEnv()
	if err != nil {
		panic(err)
	}

	var shell bool
	flag.StringVar(&cfg.SerialPort, "port", cfg.SerialPort, "Serial port of the board, \"auto\" for the first USB port or \"None\" for a simulated board")
	flag.StringVar(&cfg.BaudRate, "baud", cfg.BaudRate, "Serial baud rate")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Time to wait for each reply")
	flag.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Use a simulated board")
	flag.BoolVar(&cfg.LogTraffic, "log-traffic", cfg.LogTraffic, "Log commands and replies to stderr")
	flag.StringVar(&cfg.ProfileFile, "profile", cfg.ProfileFile, "YAML profile applied after connecting")
	flag.BoolVar(&shell, "shell", false, "Run an interactive shell")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch {
	case os.Getenv("ENABLE_UI") == "true":
		runUI(ctx, cfg)
	case shell:
		runShell(cfg)
	default:
		runCLI(ctx, cfg)
	}
}

func runUI(ctx context.Context, cfg controller.Config) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	panel := ui.NewControlPanel()

	var c *controller.Controller
	start := func(cfg controller.Config) (io.Writer, error) {
		var err error
		c, err = controller.New(cfg)
		if err != nil {
			return nil, err
		}
		c.SetLogOutput(io.MultiWriter(os.Stderr, panel))

		r, w := io.Pipe()

		// read from Stdin also
		go func() {
			_, _ = io.Copy(w, os.Stdin)
		}()

		go func() {
			err := c.Run(ctx, r, io.MultiWriter(os.Stdout, panel))
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				cancel()
			}
		}()

		return w, nil
	}

	panel.Run(ctx, cfg, start)
	cancel()
	if c != nil {
		_ = c.Close()
	}
}

func runCLI(ctx context.Context, cfg controller.Config) {
	c, err := controller.New(cfg)
	if err != nil {
		panic(err)
	}
	defer c.Close()

	c.OnTelemetry = func(line string) {
		fmt.Println(line)
	}

	err = c.Run(ctx, os.Stdin, os.Stdout)
	if err != nil {
		panic(err)
	}
}
