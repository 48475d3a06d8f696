package procgroup

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRingKeepsTail(t *testing.T) {
	r := NewRing(8)

	r.Write([]byte("abcdef"))
	r.Write([]byte("ghij"))

	if got := r.String(); got != "cdefghij" {
		t.Errorf("Expected cdefghij, got %q", got)
	}
	if r.Len() != 10 {
		t.Errorf("Expected total 10, got %d", r.Len())
	}
}

func TestRingOversizedWrite(t *testing.T) {
	r := NewRing(4)
	n, err := r.Write([]byte("0123456789"))
	if err != nil || n != 10 {
		t.Fatalf("Expected full write, got %d %v", n, err)
	}
	if got := r.String(); got != "6789" {
		t.Errorf("Expected 6789, got %q", got)
	}
}

func TestRingTail(t *testing.T) {
	r := NewRing(0)
	r.Write([]byte("one\ntwo\nthree\nfour\n"))

	if got := r.Tail(2); got != "three\nfour" {
		t.Errorf("Expected last two lines, got %q", got)
	}
	if got := r.Tail(10); !strings.HasPrefix(got, "one") {
		t.Errorf("Expected all lines, got %q", got)
	}
}

func TestKillNilSafe(t *testing.T) {
	if err := Kill(nil); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
	if err := Kill(&exec.Cmd{}); err != nil {
		t.Errorf("Expected nil for unstarted command, got %v", err)
	}
}

func TestCancelKillsGroup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process groups are unix only")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", "sleep 30 & sleep 30")
	Set(cmd)
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	err := cmd.Wait()
	if err == nil {
		t.Fatal("Expected the command to be killed")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Kill took too long: %v", time.Since(start))
	}

	if err := Kill(cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		t.Errorf("Expected repeated kill to report a finished group, got %v", err)
	}
}
