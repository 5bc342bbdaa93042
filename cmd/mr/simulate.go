package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/reporter"
)

// standardGravity is the resting z reading of a device lying flat, in m/s².
const standardGravity = 9.81

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Short:   "Run a simulated device reporter against the relay",
	GroupID: "devices",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, _ := cmd.Flags().GetFloat64("rate")
		count, _ := cmd.Flags().GetInt("count")
		amplitude, _ := cmd.Flags().GetFloat64("amplitude")
		gapEvery, _ := cmd.Flags().GetInt("gap-every")
		gated, _ := cmd.Flags().GetBool("gated")
		verbose, _ := cmd.Flags().GetBool("verbose")

		if rate <= 0 {
			return fmt.Errorf("--rate must be positive, got %v", rate)
		}
		if count < 0 {
			return fmt.Errorf("--count must not be negative, got %d", count)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		platform := &reporter.SimulatedPlatform{Cap: model.CapabilityUngated}
		if gated {
			platform.Cap = model.CapabilityGated
			platform.Permission = "granted"
		}
		sender := reporter.NewHTTPSender(httpURL, &http.Client{
			Timeout:   10 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsConfig()},
		})
		view := newConsoleView(cmd.OutOrStdout(), verbose)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if verbose {
			logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		}
		r := reporter.New(platform, view, sender, reporter.WithLogger(logger))
		r.Initialize()
		r.RequestPermission(ctx)
		if !r.State().Listening {
			return fmt.Errorf("reporter is not listening: %s", r.State().Status)
		}

		ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
		defer ticker.Stop()
		emitted := 0
	loop:
		for count == 0 || emitted < count {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
			}
			acc := simulatedVector(emitted, rate, amplitude)
			if gapEvery > 0 && (emitted+1)%gapEvery == 0 {
				acc.Z = nil
			}
			platform.Emit(acc)
			emitted++
		}
		r.Wait()

		sent, failed := view.counts()
		fmt.Fprintf(cmd.OutOrStdout(), "emitted %d events: %d sent, %d failed\n", emitted, sent, failed)
		if failed > 0 {
			return fmt.Errorf("%d samples failed; last status: %s", failed, r.State().Status)
		}
		return nil
	},
}

// simulatedVector returns the i-th event of a device swaying side to side at
// 0.5 Hz while resting face up, with a little sensor noise.
func simulatedVector(i int, rate, amplitude float64) *model.Acceleration {
	t := float64(i) / rate
	phase := 2 * math.Pi * 0.5 * t
	noise := func() float64 { return (rand.Float64() - 0.5) * 0.1 }
	return model.Vector(
		amplitude*math.Sin(phase)+noise(),
		amplitude*0.5*math.Cos(phase)+noise(),
		standardGravity+noise(),
	)
}

// consoleView is a reporter.View for the terminal. It prints status changes
// and, when verbose, every rendered sample.
type consoleView struct {
	w       io.Writer
	verbose bool

	mu     sync.Mutex
	last   string
	sent   int
	failed int
}

func newConsoleView(w io.Writer, verbose bool) *consoleView {
	return &consoleView{w: w, verbose: verbose}
}

func (v *consoleView) SetAxes(x, y, z string) {
	if !v.verbose {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, "x=%s y=%s z=%s\n", x, y, z)
}

func (v *consoleView) SetStatus(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case msg == reporter.StatusSent:
		v.sent++
	case strings.HasPrefix(msg, reporter.StatusSendErr), strings.HasPrefix(msg, reporter.StatusFetchErr):
		v.failed++
	}
	if msg != v.last {
		fmt.Fprintln(v.w, msg)
		v.last = msg
	}
}

func (v *consoleView) HideControl() {}

func (v *consoleView) OnActivate(func()) {}

func (v *consoleView) counts() (sent, failed int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sent, v.failed
}

func init() {
	simulateCmd.Flags().Float64("rate", 10, "motion events per second")
	simulateCmd.Flags().IntP("count", "n", 0, "events to emit (0 = until interrupted)")
	simulateCmd.Flags().Float64("amplitude", 3, "sway amplitude in m/s²")
	simulateCmd.Flags().Int("gap-every", 0, "drop the z component from every Nth event (0 = never)")
	simulateCmd.Flags().Bool("gated", false, "simulate a platform that prompts for motion permission")
	simulateCmd.Flags().BoolP("verbose", "v", false, "print every sample and log send failures")
}
