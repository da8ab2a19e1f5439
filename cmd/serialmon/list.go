package main

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial/enumerator"
)

type portLister func() ([]*enumerator.PortDetails, error)

func listPorts(w io.Writer, list portLister) error {
	ports, err := list()
	if err != nil {
		return fmt.Errorf("enumerate ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return nil
	}

	fmt.Fprintln(w, "\nAvailable serial ports:")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, port := range ports {
		fmt.Fprintf(w, "  %s\n", port.Name)
		fmt.Fprintf(w, "    Description: %s\n", describe(port))
		fmt.Fprintf(w, "    Hardware ID: %s\n", hardwareID(port))
		fmt.Fprintln(w)
	}
	return nil
}

func describe(p *enumerator.PortDetails) string {
	if p.Product != "" {
		return p.Product
	}
	return "n/a"
}

func hardwareID(p *enumerator.PortDetails) string {
	if !p.IsUSB {
		return "n/a"
	}
	id := fmt.Sprintf("USB VID:PID=%s:%s", strings.ToUpper(p.VID), strings.ToUpper(p.PID))
	if p.SerialNumber != "" {
		id += " SER=" + p.SerialNumber
	}
	return id
}
