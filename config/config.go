// Package config assembles the simulated accelerator and loads workload
// descriptions.
package config

import (
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/eyemap/core"
	"github.com/sarchlab/eyemap/eyeriss"
)

// Device is an assembled accelerator.
type Device struct {
	Name     string
	Hardware eyeriss.HardwareParams
	Array    *core.PEArray

	// Stepper is nil unless the device was built with an engine.
	Stepper *core.Stepper
}

// CycleAccurate reports whether the device steps its array from an engine.
func (d *Device) CycleAccurate() bool {
	return d.Stepper != nil
}

// DeviceBuilder can build accelerator devices.
type DeviceBuilder struct {
	engine  sim.Engine
	freq    sim.Freq
	hw      eyeriss.HardwareParams
	mode    eyeriss.Mode
	monitor *monitoring.Monitor
}

// MakeDeviceBuilder returns a builder for the default hardware.
func MakeDeviceBuilder() DeviceBuilder {
	return DeviceBuilder{
		freq: 200 * sim.MHz,
		hw:   eyeriss.DefaultHardware(),
		mode: 1,
	}
}

// WithEngine sets the engine that drives cycle-accurate compute. Without
// an engine the device computes each scratchpad tile at once.
func (d DeviceBuilder) WithEngine(engine sim.Engine) DeviceBuilder {
	d.engine = engine
	return d
}

// WithFreq sets the frequency of the device.
func (d DeviceBuilder) WithFreq(freq sim.Freq) DeviceBuilder {
	d.freq = freq
	return d
}

// WithHardware sets the hardware parameters.
func (d DeviceBuilder) WithHardware(hw eyeriss.HardwareParams) DeviceBuilder {
	d.hw = hw
	return d
}

// WithMode sets the initial reduction mode of the array.
func (d DeviceBuilder) WithMode(mode eyeriss.Mode) DeviceBuilder {
	d.mode = mode
	return d
}

// WithMonitor sets the monitor that monitors the device.
func (d DeviceBuilder) WithMonitor(monitor *monitoring.Monitor) DeviceBuilder {
	d.monitor = monitor
	return d
}

// Build creates a device.
func (d DeviceBuilder) Build(name string) *Device {
	if err := d.hw.Validate(); err != nil {
		panic(err)
	}

	builder := core.NewBuilder().
		WithFreq(d.freq).
		WithMode(d.mode)

	dev := &Device{
		Name:     name,
		Hardware: d.hw,
		Array:    builder.Build(name + ".Array"),
	}

	if d.engine != nil {
		dev.Stepper = builder.
			WithEngine(d.engine).
			BuildStepper(name+".Stepper", dev.Array)

		if d.monitor != nil {
			d.monitor.RegisterComponent(dev.Stepper)
		}
	}

	return dev
}
