package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whatsapp-pair",
		Short: "Link a WhatsApp account for guest notifications by scanning a QR code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, bootOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := a.openWhatsApp(ctx)
			if err != nil {
				return err
			}
			if err := client.Pair(ctx); err != nil {
				return fmt.Errorf("pair whatsapp: %w", err)
			}
			a.logger.Info("whatsapp pairing complete", "store", a.cfg.WhatsAppStorePath)
			return nil
		},
	}
}
