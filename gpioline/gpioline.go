// Package gpioline binds the GPIO output the pulse is emitted on.
package gpioline

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Line drives a single GPIO output. It implements timing.Line; the write
// calls are kept as thin as possible because their duration is measured by
// the engine's calibrator.
type Line struct {
	pin gpio.PinIO
}

// Open initialises the host GPIO drivers, binds the named line and leaves
// it configured as an output in the deasserted state. All binding failures
// happen here, before the engine ever runs.
func Open(name string) (*Line, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not initialise GPIO drivers: %v", err)
	}

	all := gpioreg.All()
	if len(all) == 0 {
		return nil, fmt.Errorf("no GPIO lines available on this host")
	}
	log.Printf("found %d GPIO lines", len(all))

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no GPIO line named %q", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("could not configure %s as output: %v", name, err)
	}

	return &Line{pin: pin}, nil
}

// Assert drives the line high.
func (l *Line) Assert() { _ = l.pin.Out(gpio.High) }

// Deassert drives the line low.
func (l *Line) Deassert() { _ = l.pin.Out(gpio.Low) }

// Close deasserts the line and releases it.
func (l *Line) Close() error {
	_ = l.pin.Out(gpio.Low)
	return l.pin.Halt()
}

// Name returns the bound line's name.
func (l *Line) Name() string { return l.pin.Name() }
