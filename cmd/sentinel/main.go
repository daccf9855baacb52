// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sentinel runs the adaptive monitoring engine.
//
// Usage:
//
//	go run ./cmd/sentinel serve
//	go run ./cmd/sentinel serve --config sentinel.yaml --metrics-file metrics.yaml
//	go run ./cmd/sentinel cycle --metrics-file metrics.yaml
//	go run ./cmd/sentinel rules validate rules.yaml
//
// Example requests against a running server:
//
//	# Health check
//	curl http://localhost:8130/health
//
//	# Engine status
//	curl http://localhost:8130/v1/monitor/status | jq
//
//	# Trigger a cycle outside the loop cadence
//	curl -X POST http://localhost:8130/v1/monitor/cycle | jq
//
//	# Pending adaptation proposals
//	curl http://localhost:8130/v1/monitor/proposals | jq
//
//	# Approve a proposal (the only path that mutates rules)
//	curl -X POST http://localhost:8130/v1/monitor/proposals/<id>/approve
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
