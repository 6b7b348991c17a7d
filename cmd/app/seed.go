package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the demo hotel data into the configured storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, bootOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if force {
				err = a.svc.Reset(ctx)
			} else {
				err = a.svc.Init(ctx)
			}
			if err != nil {
				return fmt.Errorf("seed storage: %w", err)
			}
			a.logger.Info("seed complete", "driver", a.cfg.StorageDriver, "force", force)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite collections that already hold data")
	return cmd
}
