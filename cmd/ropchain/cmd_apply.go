package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ib-77/ropchain/internal/imaging"
	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/chain"
	"github.com/ib-77/ropchain/pkg/rop/solo"
)

var applyFlags struct {
	image string
	level int
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Blur an image and save the result",
	Args:  cobra.NoArgs,
	RunE:  runApply,
}

func init() {
	f := applyCmd.Flags()
	f.StringVar(&applyFlags.image, "image", "", "Image locator: file:///abs/path or res://name (required)")
	f.IntVar(&applyFlags.level, "level", imaging.MinBlurLevel, "Blur level (1..3)")

	_ = applyCmd.MarkFlagRequired("image")
}

func runApply(cmd *cobra.Command, _ []string) error {
	a, err := openApp(rootFlags.config, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	c := a.newClient()
	defer c.Close()

	ctx := cmdContext(cmd)
	h, err := c.ApplyBlur(ctx, applyFlags.level, applyFlags.image)
	if err != nil {
		return err
	}
	outcome, err := h.Wait(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return solo.Finally(ctx, outcome,
		func(_ context.Context, b bundle.Bundle) error {
			uri, _, _ := b.GetString(imaging.KeyImageURI)
			fmt.Fprintf(out, "Chain:  %s\n", h.ID())
			fmt.Fprintf(out, "Saved:  %s\n", uri)
			return nil
		},
		func(_ context.Context, err error) error {
			fmt.Fprintf(out, "Chain:  %s\n", h.ID())
			if name, ok := chain.FailedStage(err); ok {
				fmt.Fprintf(out, "Failed: %s\n", name)
			}
			return errors.Wrap(err, "apply")
		})
}
