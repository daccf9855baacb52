// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"testing"
)

func TestPlainMode(t *testing.T) {
	t.Setenv("SENTINEL_PLAIN", "1")
	if !Plain() {
		t.Fatal("SENTINEL_PLAIN should enable plain mode")
	}

	if got := Severity("critical"); got != "critical" {
		t.Errorf("plain severity should pass through, got %q", got)
	}
}

func TestSeverityPassesUnknownThrough(t *testing.T) {
	t.Setenv("SENTINEL_PLAIN", "")
	if got := Severity("bogus"); got != "bogus" {
		t.Errorf("unknown severity should pass through, got %q", got)
	}
}

func TestSeverityKeepsText(t *testing.T) {
	t.Setenv("SENTINEL_PLAIN", "")
	for _, sev := range []string{"low", "medium", "high", "critical"} {
		if got := Severity(sev); !strings.Contains(got, sev) {
			t.Errorf("Severity(%q) = %q, should contain the severity text", sev, got)
		}
	}
}
