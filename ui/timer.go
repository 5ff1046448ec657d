package ui

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

const timerIdleText = "--:--"

// timer shows the time since the motors were last driven
type timer struct {
	startTime time.Time
	mtx       *sync.Mutex
	text      *canvas.Text
	stop      chan struct{}
}

func newTimer() *timer {
	return &timer{
		mtx:  &sync.Mutex{},
		text: canvas.NewText(timerIdleText, nil),
		stop: make(chan struct{}),
	}
}

func (t *timer) Set(start time.Time) {
	t.mtx.Lock()
	t.startTime = start
	t.mtx.Unlock()
}

func (t *timer) Reset() {
	t.Set(time.Time{})
}

func (t *timer) Stop() {
	close(t.stop)
}

func (t *timer) Go() {
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
			}

			fyne.Do(func() {
				t.mtx.Lock()
				defer t.mtx.Unlock()

				if t.startTime.IsZero() {
					t.text.Text = timerIdleText
				} else {
					elapsed := time.Since(t.startTime)
					minutes := int(elapsed.Minutes())
					seconds := int(elapsed.Seconds()) % 60
					t.text.Text = fmt.Sprintf("%02d:%02d", minutes, seconds)
				}
				t.text.Refresh()
			})
		}
	}()
}
