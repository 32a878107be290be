package actuator

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOPin is a Pin backed by a host GPIO line.
type GPIOPin struct {
	line gpio.PinIO
}

// OpenGPIO initializes the host drivers and opens the named line
// (e.g. "GPIO17"). The line is driven high so an active-low relay starts
// released.
func OpenGPIO(name string) (*GPIOPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	line := gpioreg.ByName(name)
	if line == nil {
		return nil, fmt.Errorf("gpio line %q not found", name)
	}
	if err := line.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to configure %s as output: %w", name, err)
	}
	return &GPIOPin{line: line}, nil
}

// Write sets the line level.
func (p *GPIOPin) Write(high bool) error {
	level := gpio.Low
	if high {
		level = gpio.High
	}
	return p.line.Out(level)
}
