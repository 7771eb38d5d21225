package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/BeatGlow/screen/console"
	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/sim"
)

func TestRunEchoesUntilInputDrains(t *testing.T) {
	k := sim.New(&sim.Config{Console: strings.NewReader("Hi")})
	defer k.Close()

	var out bytes.Buffer
	err := run(context.Background(), console.New(k), &out)
	if !errors.Is(err, kernel.StatusFail) {
		t.Fatalf("expected %v after input drained, got %v", kernel.StatusFail, err)
	}

	want := "Got character: 'H'\r\nGot character: 'i'\r\n\ngetch() failed!\r\n"
	if got := out.String(); got != want {
		t.Fatalf("expected output %q, got %q", want, got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	k := sim.New(&sim.Config{Console: pr})
	defer k.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if err := run(ctx, console.New(k), &out); err != nil {
		t.Fatalf("expected clean stop on cancellation, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestRunReportsMissingConsole(t *testing.T) {
	k := sim.New(nil) // no console reader
	defer k.Close()

	var out bytes.Buffer
	err := run(context.Background(), console.New(k), &out)
	if !errors.Is(err, kernel.StatusNoDevice) {
		t.Fatalf("expected %v without a console, got %v", kernel.StatusNoDevice, err)
	}
	if got := out.String(); got != "\ngetch() failed!\r\n" {
		t.Fatalf("unexpected output %q", got)
	}
}
