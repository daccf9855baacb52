// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sentinel/pkg/extensions"
	"github.com/AleutianAI/sentinel/services/monitor/collector"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestRouter builds a router over an in-memory service with a
// static cost snapshot.
func setupTestRouter(t *testing.T) (*gin.Engine, *Service, *collector.Static) {
	t.Helper()
	source := collector.NewStatic()
	source.Set(rules.DomainCost, map[string]float64{"daily_cost": 7.2})
	svc := newTestService(t, source)
	return svc.Router(), svc, source
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHealthEndpoint verifies liveness reporting.
func TestHealthEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

// TestStatusEndpoint verifies the status snapshot surface.
func TestStatusEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/v1/monitor/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Running)
	assert.Greater(t, status.RuleCount, 0)
}

// TestTriggerCycleEndpoint verifies the manual cycle trigger returns
// the full cycle output.
func TestTriggerCycleEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodPost, "/v1/monitor/cycle", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out CycleOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Cycle)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, "daily-budget-50", out.Alerts[0].Rule)
}

// TestRecordsEndpoint verifies record queries and parameter validation.
func TestRecordsEndpoint(t *testing.T) {
	router, svc, _ := setupTestRouter(t)
	_, err := svc.RunCycleNow(context.Background())
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/v1/monitor/records?domain=cost", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)

	w = doRequest(router, http.MethodGet, "/v1/monitor/records?from=not-a-time", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/v1/monitor/records?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestRulesEndpoint verifies listing and domain filtering.
func TestRulesEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/v1/monitor/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "daily-budget-50")

	w = doRequest(router, http.MethodGet, "/v1/monitor/rules?domain=cost", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var filtered struct {
		Rules   []rules.MonitoringRule `json:"rules"`
		Version int                    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	assert.NotEmpty(t, filtered.Rules)
	for _, r := range filtered.Rules {
		assert.Equal(t, rules.DomainCost, r.Domain)
	}
}

// TestProposalEndpoints verifies the approve and reject flows,
// including unknown IDs.
func TestProposalEndpoints(t *testing.T) {
	router, svc, source := setupTestRouter(t)

	w := doRequest(router, http.MethodPost, "/v1/monitor/proposals/nope/approve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(router, http.MethodPost, "/v1/monitor/proposals/nope/reject", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	runDecliningCostCycles(t, svc, source)
	proposal, found := costProposal(svc.Orchestrator().Proposals())
	require.True(t, found)

	w = doRequest(router, http.MethodGet, "/v1/monitor/proposals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), proposal.ID)

	w = doRequest(router, http.MethodPost, "/v1/monitor/proposals/"+proposal.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"applied"`)

	// Approval consumed the proposal.
	w = doRequest(router, http.MethodPost, "/v1/monitor/proposals/"+proposal.ID+"/approve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestAuditEndpoint verifies approvals leave a queryable audit trail.
func TestAuditEndpoint(t *testing.T) {
	router, svc, source := setupTestRouter(t)
	runDecliningCostCycles(t, svc, source)
	proposal, found := costProposal(svc.Orchestrator().Proposals())
	require.True(t, found)

	req := httptest.NewRequest(http.MethodPost,
		"/v1/monitor/proposals/"+proposal.ID+"/approve", nil)
	req.Header.Set("X-Sentinel-Actor", "oncall")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/v1/monitor/audit?event_type=proposal.approved", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []extensions.AuditEvent `json:"events"`
		Count  int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "oncall", body.Events[0].Actor)
	assert.Equal(t, proposal.ID, body.Events[0].ResourceID)
	assert.Equal(t, "success", body.Events[0].Outcome)

	w = doRequest(router, http.MethodGet, "/v1/monitor/audit?limit=bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPredictEndpoint verifies an untrained family answers 200 with
// available=false, and malformed bodies answer 400.
func TestPredictEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	body, _ := json.Marshal(PredictRequest{
		Family:   "performance",
		Features: []float64{0.5, 3, 1.0},
	})
	w := doRequest(router, http.MethodPost, "/v1/monitor/predict", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":false`)

	w = doRequest(router, http.MethodPost, "/v1/monitor/predict", []byte(`{"family":"performance"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestHistoryEndpoint verifies retained cycle outputs are served oldest
// first.
func TestHistoryEndpoint(t *testing.T) {
	router, svc, _ := setupTestRouter(t)
	ctx := context.Background()
	_, err := svc.RunCycleNow(ctx)
	require.NoError(t, err)
	_, err = svc.RunCycleNow(ctx)
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/v1/monitor/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Cycles []CycleOutput `json:"cycles"`
		Count  int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, 1, body.Cycles[0].Cycle)
	assert.Equal(t, 2, body.Cycles[1].Cycle)
}

// TestStreamEndpoint verifies a websocket subscriber receives each
// cycle output as JSON.
func TestStreamEndpoint(t *testing.T) {
	router, svc, _ := setupTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/monitor/stream"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer ws.Close()

	require.Eventually(t, func() bool {
		return svc.hub.subscriberCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = svc.RunCycleNow(context.Background())
	require.NoError(t, err)

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var out CycleOutput
	require.NoError(t, ws.ReadJSON(&out))
	assert.Equal(t, 1, out.Cycle)
	require.Len(t, out.Alerts, 1)
}
