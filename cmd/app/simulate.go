package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func simulateCmd() *cobra.Command {
	var (
		caller  string
		showXML bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Place a phone call to the receptionist from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return simulate(cmd, caller, showXML, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&caller, "from", "+256700123456", "caller phone number")
	cmd.Flags().BoolVar(&showXML, "xml", false, "print the provider XML for every reply")
	return cmd
}

func simulate(cmd *cobra.Command, caller string, showXML bool, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx, bootOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.Init(ctx); err != nil {
		return fmt.Errorf("init backend: %w", err)
	}
	model, err := a.gemini(ctx)
	if err != nil {
		return err
	}
	sim := a.simulator(model.Chat())

	agent := color.New(color.FgCyan, color.Bold)
	system := color.New(color.FgHiBlack)
	guest := color.New(color.FgGreen)

	sid, err := sim.StartSession(ctx, caller)
	if err != nil {
		return fmt.Errorf("start call: %w", err)
	}
	system.Fprintf(out, "Incoming call %s from %s. Type your lines, an empty line stays silent, Ctrl-D hangs up.\n", sid, caller)

	resp, err := sim.Welcome(ctx, sid)
	if err != nil {
		return err
	}
	agent.Fprintf(out, "Receptionist: %s\n", resp.Text)

	scanner := bufio.NewScanner(in)
	for {
		guest.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}
		resp, err = sim.SubmitTurn(ctx, sid, strings.TrimSpace(scanner.Text()))
		if err != nil {
			return fmt.Errorf("submit turn: %w", err)
		}
		agent.Fprintf(out, "Receptionist: %s\n", resp.Text)
		if showXML {
			system.Fprintln(out, resp.ProtocolResponse)
		}
		if resp.Ended {
			system.Fprintln(out, "The receptionist hung up.")
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if err := sim.EndSession(ctx, sid); err != nil {
		return err
	}
	system.Fprintln(out, "Call ended.")
	return nil
}
