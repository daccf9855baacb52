// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collector

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// File reads metric snapshots from a YAML file on every collect. An
// external process (a cron job, a cloud exporter script) rewrites the
// file and the next cycle picks it up. The format maps domain names to
// metric maps:
//
//	cost:
//	  daily_cost: 7.2
//	security:
//	  unauthorized_attempts: 0
type File struct {
	path string
}

// NewFile creates a collector backed by the given YAML file. The file
// does not have to exist yet; collection fails until it does.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) load() (map[string]map[string]float64, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read metrics file: %w", err)
	}
	var parsed map[string]map[string]float64
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse metrics file %s: %w", f.path, err)
	}
	return parsed, nil
}

// Collect parses the file and returns the domain's metrics, stamped
// now. A domain absent from the file yields an empty snapshot.
func (f *File) Collect(ctx context.Context, domain rules.Domain) (rules.Snapshot, error) {
	if ctx == nil {
		return rules.Snapshot{}, fmt.Errorf("context is required")
	}
	parsed, err := f.load()
	if err != nil {
		return rules.Snapshot{}, err
	}

	metrics := make(map[string]float64, len(parsed[string(domain)]))
	for k, v := range parsed[string(domain)] {
		metrics[k] = v
	}
	return rules.Snapshot{
		Domain:    domain,
		Metrics:   metrics,
		Timestamp: time.Now(),
	}, nil
}

// Domains lists the domains present in the file, in stable order with
// custom domains after the built-in ones. An unreadable file reports no
// domains; the error surfaces on Collect.
func (f *File) Domains() []rules.Domain {
	parsed, err := f.load()
	if err != nil {
		return nil
	}
	present := make(map[rules.Domain]bool, len(parsed))
	for d := range parsed {
		present[rules.Domain(d)] = true
	}
	return orderDomains(present)
}
