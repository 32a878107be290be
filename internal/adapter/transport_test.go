package adapter_test

import (
	"testing"

	"github.com/radio-control/lorabridge/internal/actuator"
	"github.com/radio-control/lorabridge/internal/adapter"
	"github.com/radio-control/lorabridge/internal/adapter/fake"
)

func TestIndicatorFollowsReception(t *testing.T) {
	radio := fake.NewMedium().Join("rx")
	led := actuator.NewMemory()
	tr := adapter.WithIndicator(radio, led)

	if _, ok := tr.PollReceive(); ok {
		t.Fatal("Expected no frame")
	}
	if led.State() != actuator.Disengaged {
		t.Errorf("Expected LED off after empty poll")
	}

	radio.Inject([]byte("11"), -60, 7)
	if _, ok := tr.PollReceive(); !ok {
		t.Fatal("Expected frame")
	}
	if led.State() != actuator.Engaged {
		t.Errorf("Expected LED on after frame")
	}

	_, _ = tr.PollReceive()
	_, _ = tr.PollReceive()
	if led.State() != actuator.Disengaged {
		t.Errorf("Expected LED off again")
	}
	if led.Writes() != 3 {
		t.Errorf("Expected LED written only on change (3 writes), got %d", led.Writes())
	}
}

func TestDescribeLooksThroughIndicator(t *testing.T) {
	radio := fake.NewMedium().Join("sim-rx")
	tr := adapter.WithIndicator(radio, actuator.NewMemory())

	d, ok := adapter.Describe(tr)
	if !ok {
		t.Fatal("Expected Describer behind indicator")
	}
	if d.GetModel() != "sim-rx" {
		t.Errorf("Expected model sim-rx, got %s", d.GetModel())
	}
	if d.GetFrequencyHz() != adapter.DefaultFrequencyHz {
		t.Errorf("Expected default frequency, got %d", d.GetFrequencyHz())
	}

	if _, ok := adapter.Describe(nil); ok {
		t.Error("nil transport has no Describer")
	}
}

type reportingRadio struct {
	*fake.Radio
	err error
}

func (r reportingRadio) LastError() error { return r.err }

func TestLastErrorLooksThroughIndicator(t *testing.T) {
	radio := reportingRadio{Radio: fake.NewMedium().Join("rx"), err: adapter.ErrUnavailable}
	tr := adapter.WithIndicator(radio, actuator.NewMemory())

	if err := adapter.LastError(tr); err != adapter.ErrUnavailable {
		t.Errorf("Expected UNAVAILABLE, got %v", err)
	}
	if err := adapter.LastError(fake.NewMedium().Join("plain")); err != nil {
		t.Errorf("Expected nil for transport without error reporting, got %v", err)
	}
}
