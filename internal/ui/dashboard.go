package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// HistorySize is the number of readings the dashboard keeps per axis.
const HistorySize = 100

// Dashboard holds the live view state for `mr watch`: the latest reading
// and a bounded history per axis.
type Dashboard struct {
	latest  *model.Reading
	history [3][]float64
	count   int64
	started time.Time
}

// NewDashboard returns an empty dashboard.
func NewDashboard() *Dashboard {
	return &Dashboard{started: time.Now()}
}

// Push records a reading, evicting the oldest once HistorySize is reached.
func (d *Dashboard) Push(r *model.Reading) {
	d.latest = r
	d.count++
	for i, v := range [3]float64{r.X, r.Y, r.Z} {
		h := append(d.history[i], v)
		if len(h) > HistorySize {
			h = h[len(h)-HistorySize:]
		}
		d.history[i] = h
	}
}

// Len returns the number of readings currently held in history.
func (d *Dashboard) Len() int { return len(d.history[0]) }

// Render draws the dashboard for a terminal width columns wide. Lines are
// separated by "\r\n" so the output is correct in raw mode.
func (d *Dashboard) Render(width int) string {
	width = max(width, 40)
	barWidth := width - 32
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\r\n\r\n", RenderAccent("Motion Relay"),
		RenderMuted(fmt.Sprintf("%d readings  q to quit", d.count)))

	if d.latest == nil {
		b.WriteString(RenderMuted("waiting for readings...") + "\r\n")
		return b.String()
	}

	axes := [3]string{"x", "y", "z"}
	values := [3]float64{d.latest.X, d.latest.Y, d.latest.Z}
	for i, axis := range axes {
		b.WriteString(Gauge(axis, values[i], barWidth) + "\r\n")
	}

	b.WriteString("\r\n" + RenderMuted("history") + "\r\n")
	for i, axis := range axes {
		line := Sparkline(d.history[i], width-4, GaugeMin, GaugeMax)
		fmt.Fprintf(&b, "%s  %s\r\n", RenderAxis(axis, strings.ToUpper(axis)), RenderAxis(axis, line))
	}

	src := d.latest.Source
	if src == "" {
		src = "unknown"
	}
	fmt.Fprintf(&b, "\r\n%s\r\n", RenderMuted(fmt.Sprintf("last %s from %s at %s",
		d.latest.ID, src, d.latest.ReceivedAt.Local().Format("15:04:05.000"))))
	return b.String()
}
