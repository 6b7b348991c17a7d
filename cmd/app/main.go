package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	return rootCmd().ExecuteContext(context.Background())
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "receptionist",
		Short:         "AI voice receptionist for the hotel front desk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), simulateCmd(), seedCmd(), pairCmd())
	return root
}
