// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for operator-provided identifiers that
// end up in storage keys, log lines, and API paths. Using these validators
// keeps hostile rule files from injecting key separators or control
// characters into the record store.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// ruleNamePattern matches valid rule names.
// Allows: lowercase letters, digits, then hyphens, underscores, dots.
// Max length: 64 characters.
var ruleNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.\-]{0,63}$`)

// metricKeyPattern matches valid metric keys.
// Allows: lowercase letters, then digits, underscores, dots.
// Max length: 64 characters.
var metricKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,63}$`)

// ValidateRuleName validates a monitoring rule name.
//
// Rule names appear in storage keys and alert output, so they are
// restricted to a conservative character set:
//
//   - 1-64 characters
//   - Lowercase letters a-z and digits 0-9
//   - Hyphens, underscores, and dots after the first character
//
// Returns an error if the name is invalid.
//
// Example:
//
//	if err := validation.ValidateRuleName(rule.Name); err != nil {
//	    return fmt.Errorf("invalid rule: %w", err)
//	}
func ValidateRuleName(name string) error {
	if name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if !ruleNamePattern.MatchString(name) {
		return fmt.Errorf("invalid rule name: %q (must be 1-64 lowercase alphanumeric chars, hyphens, underscores, or dots)", name)
	}
	return nil
}

// ValidateMetricKey validates a snapshot metric key.
//
// Metric keys follow the snake_case convention of the built-in rule set
// ("daily_cost", "latency_p99_ms"). Dots are allowed for namespacing.
//
// Returns an error if the key is invalid.
func ValidateMetricKey(key string) error {
	if key == "" {
		return fmt.Errorf("metric key cannot be empty")
	}
	if !metricKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid metric key: %q (must be 1-64 lowercase alphanumeric chars, underscores, or dots, starting with a letter)", key)
	}
	return nil
}

// ValidateMetricKeys validates multiple metric keys.
// Returns an error listing all invalid keys if any fail validation.
func ValidateMetricKeys(keys []string) error {
	var invalid []string
	for _, k := range keys {
		if err := ValidateMetricKey(k); err != nil {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid metric keys: %s", strings.Join(invalid, ", "))
	}
	return nil
}
