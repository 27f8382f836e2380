package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "migrate": false, "generate": false, "close-period": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected %s command", name)
		}
	}
}

func TestGenerateRequiresTenant(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"generate", "11111111-1111-1111-1111-111111111111"})

	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "--tenant") {
		t.Fatalf("expected tenant error, got %v", err)
	}
}

func TestClosePeriodRejectsBadDate(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"close-period", "--tenant", "t1", "--period-end", "31/01/2026"})

	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid --period-end") {
		t.Fatalf("expected date error, got %v", err)
	}
}
