package ui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/calvinmclean/motiondriver"
	"github.com/calvinmclean/motiondriver/controller"
	"github.com/calvinmclean/motiondriver/firmware/servo"
)

const (
	appID     = "com.calvinmclean.motiondriver"
	targetAll = "ALL"

	maxLogLines = 200
)

// StartFunc connects to the board and returns the writer that commands are sent to
type StartFunc func(cfg controller.Config) (io.Writer, error)

func createServoRow(channel int, c *controllerWrapper) *fyne.Container {
	defaultValue := float64(servo.DefaultMinPulseUs+servo.DefaultMaxPulseUs) / 2
	valueLabel := widget.NewLabel(fmt.Sprintf("%.0f us", defaultValue))

	slider := widget.NewSlider(servo.DefaultMinPulseUs, servo.DefaultMaxPulseUs)
	slider.Step = servo.DefaultStepUs
	slider.SetValue(defaultValue)
	slider.OnChanged = func(value float64) {
		valueLabel.SetText(fmt.Sprintf("%.0f us", value))
	}

	sweepCheck := widget.NewCheck("Sweep", func(enabled bool) {
		c.SetSweep(channel, enabled)
	})

	// S stops the sweep on the board, so the check follows
	slider.OnChangeEnded = func(value float64) {
		sweepCheck.SetChecked(false)
		c.SetServo(channel, value)
	}

	return container.NewVBox(
		container.NewGridWithColumns(3,
			widget.NewLabel(fmt.Sprintf("Servo %d", channel)),
			valueLabel,
			sweepCheck,
		),
		slider,
	)
}

func createMotorControls(c *controllerWrapper) *fyne.Container {
	targets := []string{targetAll}
	for i := range motiondriver.MotorCount {
		targets = append(targets, strconv.Itoa(i))
	}
	targetSelect := widget.NewSelect(targets, nil)
	targetSelect.SetSelected(targetAll)

	speedLabel := widget.NewLabel("1.00")
	speedSlider := widget.NewSlider(0, 1)
	speedSlider.Step = 0.05
	speedSlider.SetValue(1)
	speedSlider.OnChanged = func(value float64) {
		speedLabel.SetText(fmt.Sprintf("%.2f", value))
	}

	driveButton := func(m driveMode) *widget.Button {
		return widget.NewButton(m.String(), func() {
			c.Drive(targetSelect.Selected, m, speedSlider.Value)
		})
	}

	return container.NewVBox(
		container.NewHBox(
			widget.NewLabel("Motor"),
			targetSelect,
			layout.NewSpacer(),
			container.NewPadded(c.driveTime.text),
		),
		container.NewGridWithColumns(2, widget.NewLabel("Speed"), speedLabel),
		speedSlider,
		container.NewGridWithColumns(4,
			driveButton(driveForward),
			driveButton(driveBackward),
			driveButton(driveStart),
			driveButton(driveStop),
		),
	)
}

// ControlPanel is the board's control window. It is an io.Writer so replies and telemetry
// can be shown in its log
type ControlPanel struct {
	mtx     sync.Mutex
	lines   []string
	logText *widget.Label
}

func NewControlPanel() *ControlPanel {
	return &ControlPanel{}
}

// Write adds complete lines to the log view
func (p *ControlPanel) Write(b []byte) (int, error) {
	p.mtx.Lock()
	for _, line := range strings.Split(strings.TrimRight(string(b), "\r\n"), "\n") {
		p.lines = append(p.lines, strings.TrimRight(line, "\r"))
	}
	if len(p.lines) > maxLogLines {
		p.lines = p.lines[len(p.lines)-maxLogLines:]
	}
	text := strings.Join(p.lines, "\n")
	label := p.logText
	p.mtx.Unlock()

	if label != nil {
		fyne.Do(func() {
			label.SetText(text)
		})
	}
	return len(b), nil
}

func (p *ControlPanel) createLogAccordion() *widget.Accordion {
	p.mtx.Lock()
	p.logText = widget.NewLabel(strings.Join(p.lines, "\n"))
	p.mtx.Unlock()

	logScroll := container.NewVScroll(p.logText)
	logScroll.SetMinSize(fyne.NewSize(300, 150))

	return widget.NewAccordion(
		widget.NewAccordionItem("Logs", logScroll),
	)
}

// Run shows the configuration window, then the control window once start has connected
func (p *ControlPanel) Run(ctx context.Context, cfg controller.Config, start StartFunc) {
	application := app.NewWithID(appID)

	cw := NewConfigWindow(application)
	cw.OnSubmit = func() {
		w, err := start(cfg)
		if err != nil {
			window := application.NewWindow("Motion Driver")
			window.Show()
			showError(application, window, err)
			return
		}
		p.showControls(application, w)
	}
	cw.Show(&cfg)

	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			application.Quit()
		})
	}()

	application.Run()
}

func (p *ControlPanel) showControls(application fyne.App, w io.Writer) {
	window := application.NewWindow("Motion Driver")

	driveTime := newTimer()
	driveTime.Go()
	window.SetOnClosed(driveTime.Stop)

	c := &controllerWrapper{writer: w, driveTime: driveTime}

	servoRows := container.NewVBox()
	for ch := range motiondriver.ServoChannelCount {
		servoRows.Add(createServoRow(ch, c))
	}

	logCheck := widget.NewCheck("Telemetry", c.SetLog)
	logCheck.SetChecked(true)

	contentContainer := container.NewVBox(
		container.NewHBox(
			widget.NewButton("Ping", c.Ping),
			widget.NewButton("Sweep All", func() {
				fmt.Fprintln(w, "SWEEP ON ALL")
			}),
			widget.NewButton("Stop Sweep", func() {
				fmt.Fprintln(w, "SWEEP OFF ALL")
			}),
			layout.NewSpacer(),
			logCheck,
		),
		widget.NewCard("Servos", "", servoRows),
		widget.NewCard("Motors", "", createMotorControls(c)),
		p.createLogAccordion(),
	)

	window.SetContent(container.NewVScroll(contentContainer))
	window.Resize(fyne.NewSize(480, 720))
	window.Show()
}
