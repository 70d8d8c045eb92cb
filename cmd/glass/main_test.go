package main

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestProgressBarLogsFailureOnce(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(prev) })

	var out bytes.Buffer
	report := progressBar(&out)
	report(1, 3)
	if !strings.Contains(out.String(), "decoding textures") {
		t.Errorf("bar output = %q, want the description", out.String())
	}

	// Past the total, every Set fails.
	report(5, 3)
	report(6, 3)
	if n := strings.Count(logs.String(), "[Glass] progress bar:"); n != 1 {
		t.Errorf("logged %d progress failures, want 1: %q", n, logs.String())
	}
}
