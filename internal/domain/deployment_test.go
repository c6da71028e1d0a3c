package domain

import (
	"strings"
	"testing"
	"time"
)

func TestDetectLoadFormat(t *testing.T) {
	tests := []struct {
		script string
		want   LoadFormat
	}{
		{"set system host-name r1", FormatSet},
		{"SET interfaces ge-0/0/0 disable", FormatSet},
		{"delete foo\nset bar baz", FormatSet},
		{"system { host-name r1; }", FormatText},
		{"reset", FormatText},
		{"", FormatText},
	}

	for _, tt := range tests {
		if got := DetectLoadFormat(tt.script); got != tt.want {
			t.Errorf("DetectLoadFormat(%q) = %s, want %s", tt.script, got, tt.want)
		}
	}
}

func TestDeploymentStateAfter(t *testing.T) {
	tests := []struct {
		s, other DeploymentState
		want     bool
	}{
		{StateUnlocking, StateCommitting, true},
		{StateLoading, StateCommitting, false},
		{StateCommitting, StateCommitting, false},
		{StateFailed, StateCommitting, false},
		{StateClosed, StateInit, true},
	}

	for _, tt := range tests {
		if got := tt.s.After(tt.other); got != tt.want {
			t.Errorf("%s.After(%s) = %v, want %v", tt.s, tt.other, got, tt.want)
		}
	}
}

func TestLogEntryString(t *testing.T) {
	at := time.Date(2024, 3, 1, 14, 3, 7, 0, time.UTC)

	t.Run("info", func(t *testing.T) {
		e := LogEntry{Step: 2, State: StateConnecting, Level: LevelInfo, Message: "Opening NETCONF session to 10.0.0.1:830", At: at}
		want := "[14:03:07] [2] CONNECTING: Opening NETCONF session to 10.0.0.1:830"
		if got := e.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	})

	t.Run("warning carries level", func(t *testing.T) {
		e := LogEntry{Step: 4, State: StateLocking, Level: LevelWarning, Message: "Could not lock database", At: at}
		if got := e.String(); !strings.Contains(got, "LOCKING WARNING:") {
			t.Errorf("String() = %q, want level label", got)
		}
	})
}

func TestDeploymentLogReached(t *testing.T) {
	log := DeploymentLog{
		{Step: 1, State: StateInit},
		{Step: 2, State: StateConnecting},
	}
	if !log.Reached(StateConnecting) {
		t.Error("expected CONNECTING to be reached")
	}
	if log.Reached(StateLoading) {
		t.Error("did not expect LOADING to be reached")
	}
	if got := len(log.Lines()); got != 2 {
		t.Errorf("Lines() returned %d lines, want 2", got)
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name   string
		script string
		values map[string]string
		want   string
	}{
		{"single", "set host {{name}}", map[string]string{"name": "r1"}, "set host r1"},
		{"unmatched stays", "{{x}}", map[string]string{}, "{{x}}"},
		{"nil values", "{{x}}", nil, "{{x}}"},
		{"repeated", "{{a}}-{{a}}", map[string]string{"a": "1"}, "1-1"},
		{"partial", "{{a}} {{b}}", map[string]string{"a": "x"}, "x {{b}}"},
		{"spaces are not trimmed", "{{ a }}", map[string]string{"a": "x"}, "{{ a }}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.script, tt.values); got != tt.want {
				t.Errorf("Substitute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCredentialGroupSummary(t *testing.T) {
	g := CredentialGroup{Name: "core", Username: "netops", Password: "hunter2"}
	s := g.ToSummary()
	if s.Name != "core" || s.Username != "netops" {
		t.Errorf("unexpected summary %+v", s)
	}
	if !g.Usable() {
		t.Error("expected group to be usable")
	}
	if (CredentialGroup{Username: "x"}).Usable() {
		t.Error("group without password should not be usable")
	}
}
