package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/ui"
)

// frameInterval caps dashboard redraws at roughly 30 per second.
const frameInterval = 33 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Watch live readings as they arrive",
	GroupID: "readings",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		plain, _ := cmd.Flags().GetBool("plain")
		useNATS, _ := cmd.Flags().GetBool("nats")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		readings := make(chan *model.Reading, 64)
		errCh := make(chan error, 1)
		go func() {
			errCh <- streamReadings(ctx, useNATS, source, readings)
		}()

		if plain || jsonOutput || !ui.IsTerminal() || !term.IsTerminal(int(os.Stdin.Fd())) {
			return watchPlain(ctx, readings, errCh)
		}
		return watchDashboard(ctx, stop, readings, errCh)
	},
}

// streamReadings feeds readings from the relay, or straight from NATS when
// asked, until ctx is done.
func streamReadings(ctx context.Context, useNATS bool, source string, out chan<- *model.Reading) error {
	deliver := func(r *model.Reading) {
		select {
		case out <- r:
		case <-ctx.Done():
		}
	}
	if !useNATS {
		return motionClient.Watch(ctx, source, deliver)
	}

	natsURL := os.Getenv("MOTION_NATS_URL")
	if natsURL == "" {
		natsURL = activeRemoteNATSURL()
	}
	if natsURL == "" {
		return errors.New("--nats needs MOTION_NATS_URL or a remote with a NATS URL")
	}
	sub, err := events.NewNATSSubscriber(natsURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	ch, err := events.Readings(ctx, sub, source)
	if err != nil {
		return fmt.Errorf("subscribing to samples: %w", err)
	}
	for r := range ch {
		deliver(r)
	}
	return nil
}

func watchPlain(ctx context.Context, readings <-chan *model.Reading, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return watchErr(ctx, err)
		case r := <-readings:
			if jsonOutput {
				data, err := json.Marshal(r)
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				continue
			}
			printReadingLine(os.Stdout, r)
		}
	}
}

func watchDashboard(ctx context.Context, stop context.CancelFunc, readings <-chan *model.Reading, errCh <-chan error) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	// Alternate screen, hidden cursor.
	fmt.Print("\x1b[?1049h\x1b[?25l")
	defer func() {
		fmt.Print("\x1b[?25h\x1b[?1049l")
		term.Restore(fd, oldState)
	}()

	go readQuitKeys(stop)

	dash := ui.NewDashboard()
	draw := func() {
		fmt.Print("\x1b[H\x1b[2J" + dash.Render(ui.Width()))
	}
	draw()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	dirty := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return watchErr(ctx, err)
		case r := <-readings:
			dash.Push(r)
			dirty = true
		case <-ticker.C:
			if dirty {
				draw()
				dirty = false
			}
		}
	}
}

// readQuitKeys calls stop when q, Q or Ctrl-C is pressed. Raw mode swallows
// SIGINT so Ctrl-C arrives as a byte.
func readQuitKeys(stop context.CancelFunc) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			stop()
			return
		}
		if n == 1 && (buf[0] == 'q' || buf[0] == 'Q' || buf[0] == 0x03) {
			stop()
			return
		}
	}
}

func watchErr(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("watching readings: %w", err)
}

func init() {
	watchCmd.Flags().String("source", "", "only readings from this source address")
	watchCmd.Flags().Bool("plain", false, "print one line per reading instead of the dashboard")
	watchCmd.Flags().Bool("nats", false, "subscribe to NATS directly instead of the relay stream")
}
