package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	bugst "go.bug.st/serial"
)

func newPortsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the serial ports of this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := bugst.GetPortsList()
			if err != nil {
				return fmt.Errorf("failed to list serial ports: %w", err)
			}
			return printPorts(app.out, ports)
		},
	}
}

func printPorts(w io.Writer, ports []string) error {
	if len(ports) == 0 {
		_, err := fmt.Fprintln(w, "no serial ports found")
		return err
	}
	for _, p := range ports {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}
