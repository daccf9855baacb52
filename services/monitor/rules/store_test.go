// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStoreAppendAndVersion verifies appends bump the domain version.
func TestStoreAppendAndVersion(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, 0, s.Version(DomainCost))

	require.NoError(t, s.Append(testRule("r1", DomainCost, "daily_cost", OpGT, 5)))
	assert.Equal(t, 1, s.Version(DomainCost))
	assert.Len(t, s.Rules(DomainCost), 1)
	assert.Equal(t, 0, s.Version(DomainSecurity))
}

// TestStoreRejectsInvalidRule verifies validator-backed rejection.
func TestStoreRejectsInvalidRule(t *testing.T) {
	s := NewStore(nil)

	t.Run("missing metric key", func(t *testing.T) {
		r := testRule("bad", DomainCost, "", OpGT, 1)
		assert.Error(t, s.Append(r))
	})

	t.Run("unknown operator", func(t *testing.T) {
		r := testRule("bad", DomainCost, "m", Operator("~"), 1)
		assert.Error(t, s.Append(r))
	})

	t.Run("unknown severity", func(t *testing.T) {
		r := testRule("bad", DomainCost, "m", OpGT, 1)
		r.Severity = Severity("urgent")
		assert.Error(t, s.Append(r))
	})

	assert.Empty(t, s.Rules(DomainCost), "rejected rules must not be stored")
}

// TestStoreRejectsDuplicateName verifies name uniqueness per domain.
func TestStoreRejectsDuplicateName(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Append(testRule("dup", DomainCost, "m", OpGT, 1)))
	assert.Error(t, s.Append(testRule("dup", DomainCost, "m", OpGT, 2)))

	// Same name in another domain is fine.
	assert.NoError(t, s.Append(testRule("dup", DomainResource, "m", OpGT, 1)))
}

// TestStoreReplace verifies replacement swaps the value and bumps the
// version, and unknown names are rejected.
func TestStoreReplace(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Append(testRule("r1", DomainCost, "daily_cost", OpGT, 5)))

	replacement := testRule("r1", DomainCost, "daily_cost", OpGT, 8)
	require.NoError(t, s.Replace(replacement))
	assert.Equal(t, 2, s.Version(DomainCost))
	assert.Equal(t, 8.0, s.Rules(DomainCost)[0].Threshold)

	assert.Error(t, s.Replace(testRule("missing", DomainCost, "m", OpGT, 1)))
}

// TestStoreRulesReturnsCopy verifies callers cannot mutate stored rules.
func TestStoreRulesReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Append(testRule("r1", DomainCost, "daily_cost", OpGT, 5)))

	got := s.Rules(DomainCost)
	got[0].Threshold = 999

	assert.Equal(t, 5.0, s.Rules(DomainCost)[0].Threshold)
}

// TestStoreFileRoundTrip verifies SaveFile/LoadFile round-trips rules.
func TestStoreFileRoundTrip(t *testing.T) {
	s := NewStoreWithDefaults(10.0, nil)
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, s.SaveFile(path))

	s2 := NewStore(nil)
	require.NoError(t, s2.LoadFile(path))

	assert.ElementsMatch(t, s.AllRules(), s2.AllRules())
}

// TestStoreLoadFileKeepsOldRulesOnError verifies an invalid file leaves
// existing rules untouched.
func TestStoreLoadFileKeepsOldRulesOnError(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Append(testRule("keep-me", DomainCost, "daily_cost", OpGT, 5)))

	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: broken\n"), 0640))

	assert.Error(t, s.LoadFile(path))
	require.Len(t, s.Rules(DomainCost), 1)
	assert.Equal(t, "keep-me", s.Rules(DomainCost)[0].Name)
}

// TestDefaultRulesAreValid verifies the built-in set passes validation
// and includes the three graduated cost tiers.
func TestDefaultRulesAreValid(t *testing.T) {
	s := NewStoreWithDefaults(10.0, nil)

	costRules := s.Rules(DomainCost)
	require.Len(t, costRules, 3)
	assert.Equal(t, 5.0, costRules[0].Threshold)
	assert.Equal(t, 8.0, costRules[1].Threshold)
	assert.Equal(t, 10.0, costRules[2].Threshold)

	for _, d := range KnownDomains() {
		assert.NotEmpty(t, s.Rules(d), "domain %s should have default rules", d)
	}
}

// TestSeverityRank verifies severity ordering.
func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Greater(t, SeverityLow.Rank(), Severity("bogus").Rank())
}
