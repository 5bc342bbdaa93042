package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/presence"
	"github.com/alfredjeanlab/motionrelay/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05.000"

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printReading(w io.Writer, r *model.Reading) {
	fmt.Fprintf(w, "ID:          %s\n", r.ID)
	fmt.Fprintf(w, "Sample:      %s\n", r.Sample())
	if r.Source != "" {
		fmt.Fprintf(w, "Source:      %s\n", r.Source)
	}
	if r.UserAgent != "" {
		fmt.Fprintf(w, "User Agent:  %s\n", r.UserAgent)
	}
	fmt.Fprintf(w, "Received At: %s\n", r.ReceivedAt.Local().Format(timeLayout))
}

// printReadingLine writes one reading in the relay's log format.
func printReadingLine(w io.Writer, r *model.Reading) {
	fmt.Fprintf(w, "%s  %s  %s\n",
		ui.RenderMuted(r.ReceivedAt.Local().Format("15:04:05.000")),
		r.Sample(),
		ui.RenderMuted(r.Source))
}

func printReadingsTable(readings []*model.Reading, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tX\tY\tZ\tSOURCE\tRECEIVED")
	for _, r := range readings {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			r.ID, r.X, r.Y, r.Z, r.Source, r.ReceivedAt.Local().Format(timeLayout))
	}
	w.Flush()
	if total > len(readings) {
		fmt.Printf("\n%d of %d readings\n", len(readings), total)
	}
}

func printStats(w io.Writer, st *model.Stats) {
	fmt.Fprintf(w, "Readings: %d\n", st.Count)
	if st.Count == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AXIS\tMIN\tMAX\tMEAN")
	for _, a := range []struct {
		name string
		s    model.AxisStats
	}{{"x", st.X}, {"y", st.Y}, {"z", st.Z}} {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\n", a.name, a.s.Min, a.s.Max, a.s.Mean)
	}
	tw.Flush()
	if st.First != nil && st.Last != nil {
		fmt.Fprintf(w, "Window:   %s to %s (%s)\n",
			st.First.Local().Format(timeLayout), st.Last.Local().Format(timeLayout),
			st.Last.Sub(*st.First).Round(time.Millisecond))
	}
}

func printReporters(w io.Writer, entries []presence.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no reporters")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATE\tSAMPLES\tRATE\tIDLE\tUSER AGENT")
	for _, e := range entries {
		state := "active"
		if e.Idle {
			state = "idle"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f/s\t%s\t%s\n",
			e.Source, state, e.Samples, e.RatePerSec,
			time.Duration(e.IdleSecs*float64(time.Second)).Round(time.Second).String(), e.UserAgent)
	}
	tw.Flush()
}
