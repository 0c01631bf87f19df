package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestForcedApprover(output io.Writer, sleepFn func(time.Duration)) *ForcedApprover {
	return &ForcedApprover{output: output, countdown: DefaultForceCountdown, sleepFn: sleepFn}
}

func TestForcedApprover_ApprovesAfterCountdown(t *testing.T) {
	var output bytes.Buffer
	sleepCalls := 0

	approver := newTestForcedApprover(&output, func(d time.Duration) {
		sleepCalls++
	})

	approved, err := approver.RequestApproval(context.Background(), "bank")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !approved {
		t.Fatal("Expected approval after countdown")
	}
	if sleepCalls != 5 {
		t.Errorf("Expected 5 sleep calls (one per second), got %d", sleepCalls)
	}
}

func TestForcedApprover_OutputContainsDbName(t *testing.T) {
	var output bytes.Buffer

	approver := newTestForcedApprover(&output, func(time.Duration) {})

	_, _ = approver.RequestApproval(context.Background(), "bank_prod")

	out := output.String()
	if !strings.Contains(out, "bank_prod") {
		t.Errorf("Expected output to contain database name, got:\n%s", out)
	}
	if !strings.Contains(out, "DANGER") {
		t.Errorf("Expected output to contain DANGER warning, got:\n%s", out)
	}
	if !strings.Contains(out, "Proceeding with the reset") {
		t.Errorf("Expected output to contain proceeding message, got:\n%s", out)
	}
}

func TestForcedApprover_ContextCancellation(t *testing.T) {
	var output bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())

	sleepCalls := 0
	approver := newTestForcedApprover(&output, func(d time.Duration) {
		sleepCalls++
		if sleepCalls >= 2 {
			cancel()
		}
	})

	approved, err := approver.RequestApproval(ctx, "bank")
	if err == nil {
		t.Fatal("Expected context cancellation error")
	}
	if approved {
		t.Fatal("Expected approval to be false on cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context canceled error, got: %v", err)
	}
	if sleepCalls != 2 {
		t.Errorf("Expected the countdown to stop after 2 ticks, got %d", sleepCalls)
	}
}

func TestNewForcedApprover(t *testing.T) {
	fa, ok := NewForcedApprover().(*ForcedApprover)
	if !ok {
		t.Fatal("Expected *ForcedApprover type")
	}
	if fa.output == nil || fa.sleepFn == nil {
		t.Error("Expected output writer and sleep function to be set")
	}
	if fa.countdown != DefaultForceCountdown {
		t.Errorf("Expected countdown %v, got %v", DefaultForceCountdown, fa.countdown)
	}
}

func TestInteractiveApprover(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantApproved bool
		wantOutput   []string
	}{
		{
			name:         "matching input",
			input:        "bank\n",
			wantApproved: true,
			wantOutput:   []string{"WARNING", "bank", "permanently delete", "Confirmed"},
		},
		{
			name:         "surrounding whitespace",
			input:        "  bank  \n",
			wantApproved: true,
		},
		{
			name:         "non-matching input",
			input:        "wrong_name\n",
			wantApproved: false,
			wantOutput:   []string{"does not match", "wrong_name"},
		},
		{
			name:         "empty input",
			input:        "\n",
			wantApproved: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			approver := &InteractiveApprover{input: strings.NewReader(tt.input), output: &output}

			approved, err := approver.RequestApproval(context.Background(), "bank")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if approved != tt.wantApproved {
				t.Errorf("approved = %v, want %v", approved, tt.wantApproved)
			}
			for _, want := range tt.wantOutput {
				if !strings.Contains(output.String(), want) {
					t.Errorf("Expected output to contain %q, got:\n%s", want, output.String())
				}
			}
		})
	}
}

type errorReader struct{ err error }

func (r *errorReader) Read([]byte) (int, error) { return 0, r.err }

func TestInteractiveApprover_ReadError(t *testing.T) {
	var output bytes.Buffer
	approver := &InteractiveApprover{input: &errorReader{err: io.ErrUnexpectedEOF}, output: &output}

	approved, err := approver.RequestApproval(context.Background(), "bank")
	if err == nil {
		t.Fatal("Expected error for read failure")
	}
	if approved {
		t.Fatal("Expected denial on read error")
	}
	if !strings.Contains(err.Error(), "failed to read input") {
		t.Errorf("Expected read error wrapper, got: %v", err)
	}
}

func TestInteractiveApprover_ContextCancellation(t *testing.T) {
	var output bytes.Buffer
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	approver := &InteractiveApprover{input: pr, output: &output}

	approved, err := approver.RequestApproval(ctx, "bank")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context cancellation error, got: %v", err)
	}
	if approved {
		t.Fatal("Expected denial on context cancellation")
	}
}
