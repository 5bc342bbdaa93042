package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

var sendCmd = &cobra.Command{
	Use:     "send <x> <y> <z>",
	Short:   "Report a single sample as a device would",
	GroupID: "devices",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sample, err := parseSample(args)
		if err != nil {
			return err
		}
		if err := motionClient.Send(context.Background(), sample); err != nil {
			return fmt.Errorf("sending sample: %w", err)
		}
		if jsonOutput {
			return printJSON(sample)
		}
		fmt.Printf("sent %s\n", sample)
		return nil
	},
}

// parseSample converts x, y and z arguments to a validated sample.
func parseSample(args []string) (model.MotionSample, error) {
	var v [3]float64
	for i, axis := range []string{"x", "y", "z"} {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return model.MotionSample{}, fmt.Errorf("invalid %s value %q: must be a number", axis, args[i])
		}
		v[i] = f
	}
	acc := model.Vector(v[0], v[1], v[2])
	if err := model.ValidateAcceleration(acc); err != nil {
		return model.MotionSample{}, err
	}
	return acc.Sample()
}
