// Package adaptertest provides vendor-agnostic conformance testing for radio transports.
//
// Every transport must deliver payloads byte for byte, report an empty
// receive queue without blocking, and refuse to send on a cancelled context.
package adaptertest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/radio-control/lorabridge/internal/actuator"
	"github.com/radio-control/lorabridge/internal/adapter"
	"github.com/radio-control/lorabridge/internal/codec"
	"github.com/radio-control/lorabridge/internal/command"
)

// PairFactory returns two transports sharing one medium. Frames sent on tx
// must become receivable on rx.
type PairFactory func(t *testing.T) (tx, rx adapter.Transport)

// Options tunes the suite for slower media.
type Options struct {
	// DeliveryTimeout bounds how long a sent frame may take to arrive.
	DeliveryTimeout time.Duration

	// PollBudget bounds a single PollReceive call on an empty queue.
	PollBudget time.Duration
}

// ConformanceResult represents the result of a conformance test.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport represents the complete conformance test report.
type ConformanceReport struct {
	TransportName string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

// RunConformance runs the complete conformance suite for a transport.
func RunConformance(t *testing.T, name string, newPair PairFactory, opts Options) {
	t.Helper()
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 500 * time.Millisecond
	}
	if opts.PollBudget <= 0 {
		opts.PollBudget = 50 * time.Millisecond
	}

	startTime := time.Now()
	report := &ConformanceReport{
		TransportName: name,
		Results:       []ConformanceResult{},
		OverallPassed: true,
	}

	runEmptyPollTests(t, newPair, opts, report)
	runDeliveryTests(t, newPair, opts, report)
	runOrderingTests(t, newPair, opts, report)
	runCodecTests(t, newPair, opts, report)
	runCancellationTests(t, newPair, opts, report)

	report.Duration = time.Since(startTime)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Transport conformance test failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
}

// runEmptyPollTests checks that an idle receiver answers immediately.
func runEmptyPollTests(t *testing.T, newPair PairFactory, opts Options, report *ConformanceReport) {
	_, rx := newPair(t)

	result := ConformanceResult{
		TestName: "PollReceive_Empty",
		Details:  make(map[string]interface{}),
	}
	start := time.Now()
	frame, ok := rx.PollReceive()
	result.Duration = time.Since(start)

	switch {
	case ok:
		result.Error = fmt.Sprintf("PollReceive on idle link returned frame %q", frame.Payload)
	case result.Duration > opts.PollBudget:
		result.Error = fmt.Sprintf("PollReceive blocked for %v", result.Duration)
	default:
		result.Passed = true
	}
	report.addResult(result)
}

// runDeliveryTests sends assorted payloads and checks they arrive intact and
// are not looped back to the sender.
func runDeliveryTests(t *testing.T, newPair PairFactory, opts Options, report *ConformanceReport) {
	payloads := [][]byte{
		[]byte("110"),
		[]byte("0"),
		[]byte("114294967295"),
		{0x00},
		[]byte("a,b\r\nc"),
	}

	for _, payload := range payloads {
		tx, rx := newPair(t)
		result := ConformanceResult{
			TestName: fmt.Sprintf("Send_Delivers_%q", payload),
			Details:  make(map[string]interface{}),
		}
		start := time.Now()

		if err := tx.Send(context.Background(), payload); err != nil {
			result.Duration = time.Since(start)
			result.Error = fmt.Sprintf("Send(%q) failed: %v", payload, err)
			report.addResult(result)
			continue
		}

		frame, ok := waitFrame(rx, opts.DeliveryTimeout)
		result.Duration = time.Since(start)
		switch {
		case !ok:
			result.Error = fmt.Sprintf("no frame within %v", opts.DeliveryTimeout)
		case !bytes.Equal(frame.Payload, payload):
			result.Error = fmt.Sprintf("expected payload %q, got %q", payload, frame.Payload)
		default:
			if echo, looped := tx.PollReceive(); looped {
				result.Error = fmt.Sprintf("sender received its own frame %q", echo.Payload)
				break
			}
			result.Passed = true
			result.Details["rssi"] = frame.RSSI
			result.Details["snr"] = frame.SNR
		}
		report.addResult(result)
	}
}

// runOrderingTests checks that a burst arrives in send order.
func runOrderingTests(t *testing.T, newPair PairFactory, opts Options, report *ConformanceReport) {
	tx, rx := newPair(t)
	result := ConformanceResult{
		TestName: "Send_PreservesOrder",
		Details:  make(map[string]interface{}),
	}
	start := time.Now()

	burst := []string{"111", "02", "113"}
	for _, p := range burst {
		if err := tx.Send(context.Background(), []byte(p)); err != nil {
			result.Duration = time.Since(start)
			result.Error = fmt.Sprintf("Send(%q) failed: %v", p, err)
			report.addResult(result)
			return
		}
	}

	var got []string
	for range burst {
		frame, ok := waitFrame(rx, opts.DeliveryTimeout)
		if !ok {
			break
		}
		got = append(got, string(frame.Payload))
	}
	result.Duration = time.Since(start)

	if strings.Join(got, "|") != strings.Join(burst, "|") {
		result.Error = fmt.Sprintf("expected %v, got %v", burst, got)
	} else {
		result.Passed = true
		result.Details["frames"] = len(got)
	}
	report.addResult(result)
}

// runCodecTests sends encoded commands and checks the receiver decodes the
// same actuator state.
func runCodecTests(t *testing.T, newPair PairFactory, opts Options, report *ConformanceReport) {
	cases := []struct {
		cmd     command.Command
		counter uint32
		want    actuator.State
	}{
		{command.StartActuation, 1, actuator.Engaged},
		{command.StopActuation, 2, actuator.Disengaged},
		{command.StopActuation, 4294967295, actuator.Disengaged},
	}

	for _, tc := range cases {
		tx, rx := newPair(t)
		result := ConformanceResult{
			TestName: fmt.Sprintf("Codec_%s_%d", tc.cmd, tc.counter),
			Details:  make(map[string]interface{}),
		}
		start := time.Now()

		frame, err := codec.Encode(tc.cmd, tc.counter)
		if err == nil {
			err = tx.Send(context.Background(), frame)
		}
		if err != nil {
			result.Duration = time.Since(start)
			result.Error = fmt.Sprintf("sending %s failed: %v", tc.cmd, err)
			report.addResult(result)
			continue
		}

		got, ok := waitFrame(rx, opts.DeliveryTimeout)
		result.Duration = time.Since(start)
		if !ok {
			result.Error = fmt.Sprintf("no frame within %v", opts.DeliveryTimeout)
			report.addResult(result)
			continue
		}
		state, err := codec.Decode(got.Payload)
		switch {
		case err != nil:
			result.Error = fmt.Sprintf("Decode(%q) failed: %v", got.Payload, err)
		case state != tc.want:
			result.Error = fmt.Sprintf("expected %s, got %s", tc.want, state)
		default:
			result.Passed = true
			result.Details["frame"] = string(got.Payload)
		}
		report.addResult(result)
	}
}

// runCancellationTests checks that a cancelled context stops a send.
func runCancellationTests(t *testing.T, newPair PairFactory, opts Options, report *ConformanceReport) {
	tx, rx := newPair(t)
	result := ConformanceResult{
		TestName: "Send_CancelledContext",
		Details:  make(map[string]interface{}),
	}
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tx.Send(ctx, []byte("110"))
	result.Duration = time.Since(start)

	if err == nil {
		result.Error = "Send with cancelled context should have failed"
		report.addResult(result)
		return
	}
	result.Details["error"] = err.Error()

	if frame, ok := waitFrame(rx, opts.PollBudget); ok {
		result.Error = fmt.Sprintf("cancelled send was delivered: %q", frame.Payload)
	} else {
		result.Passed = true
	}
	report.addResult(result)
}

// waitFrame polls rx until a frame arrives or timeout elapses.
func waitFrame(rx adapter.Transport, timeout time.Duration) (adapter.Frame, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(2 * time.Millisecond)
	defer tick.Stop()

	for {
		if frame, ok := rx.PollReceive(); ok {
			return frame, true
		}
		select {
		case <-deadline.C:
			return adapter.Frame{}, false
		case <-tick.C:
		}
	}
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("TRANSPORT CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Transport: %s", report.TransportName)
	t.Logf("Total Tests: %d", report.TotalTests)
	t.Logf("Passed: %d", report.PassedTests)
	t.Logf("Failed: %d", report.FailedTests)
	t.Logf("Overall: %s", map[bool]string{true: "PASS", false: "FAIL"}[report.OverallPassed])
	t.Logf("Duration: %v", report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))

	t.Logf("%-34s %-8s %-12s %-s", "TEST NAME", "RESULT", "DURATION", "DETAILS")
	t.Logf("%s", strings.Repeat("-", 80))

	for _, result := range report.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}

		details := result.Error
		if details == "" && len(result.Details) > 0 {
			var parts []string
			for k, v := range result.Details {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			details = strings.Join(parts, ", ")
		}

		t.Logf("%-34s %-8s %-12s %-s", result.TestName, status, result.Duration.String(), details)
	}

	t.Logf("%s", strings.Repeat("=", 80))
}
