package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tendrilhttp "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewProcess() *domain.ProcessDefinition {
	return &domain.ProcessDefinition{
		ID: "review",
		Nodes: []*domain.NodeDefinition{
			{ID: "start", Kind: domain.KindStart, Next: []string{"review"}},
			{
				ID:       "review",
				Kind:     domain.KindWorkItem,
				WorkName: "Review",
				OutAssociations: []domain.DataAssociation{
					{Sources: []string{"verdict"}, Target: "verdict"},
				},
				Next: []string{"end"},
			},
			{
				ID:             "withdraw",
				Kind:           domain.KindBoundaryEvent,
				AttachedTo:     "review",
				EventType:      "Withdraw",
				CancelActivity: true,
				Next:           []string{"withdrawn"},
			},
			{
				ID:         "reminder",
				Kind:       domain.KindBoundaryEvent,
				AttachedTo: "review",
				EventType:  domain.SignalTimer,
				TimerDelay: time.Hour,
				Next:       []string{"remind"},
			},
			{ID: "remind", Kind: domain.KindTask},
			{ID: "end", Kind: domain.KindEnd},
			{ID: "withdrawn", Kind: domain.KindEnd},
		},
	}
}

func newServer(t *testing.T, opts ...tendrilhttp.Option) (*session.Manager, *httptest.Server) {
	t.Helper()
	mgr, err := session.New([]*domain.ProcessDefinition{reviewProcess()}, nil, session.Config{})
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	srv := httptest.NewServer(tendrilhttp.NewHandler(mgr, opts...))
	t.Cleanup(srv.Close)
	return mgr, srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func start(t *testing.T, srv *httptest.Server) *domain.ProcessSnapshot {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/processes", tendrilhttp.StartRequest{
		Definition: "review",
		Variables:  map[string]any{"author": "ana"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[*domain.ProcessSnapshot](t, resp)
}

func TestServer_Health(t *testing.T) {
	_, srv := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_Definitions(t *testing.T) {
	_, srv := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/definitions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"review"}, decode[[]string](t, resp))
}

func TestServer_WorkItemLifecycle(t *testing.T) {
	_, srv := newServer(t)

	snap := start(t, srv)
	assert.Equal(t, domain.ProcessActive, snap.State)
	assert.Equal(t, "ana", snap.Variables["author"])
	require.Len(t, snap.WorkItems, 1)
	assert.Equal(t, "Review", snap.WorkItems[0].Name)

	resp := do(t, http.MethodGet, srv.URL+"/processes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{snap.ID}, decode[[]int64](t, resp))

	url := srv.URL + "/processes/" + itoa(snap.ID) + "/work-items/" + itoa(snap.WorkItems[0].ID) + "/complete"
	resp = do(t, http.MethodPost, url, tendrilhttp.CompleteWorkItemRequest{
		Results: map[string]any{"verdict": "accepted"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decode[*domain.ProcessSnapshot](t, resp)
	assert.Equal(t, domain.ProcessCompleted, done.State)
	assert.Equal(t, "accepted", done.Variables["verdict"])
	assert.Contains(t, done.CompletedNodeIDs, "end")
}

func TestServer_SignalInterruptsHost(t *testing.T) {
	_, srv := newServer(t)
	snap := start(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/processes/"+itoa(snap.ID)+"/signals", tendrilhttp.SignalRequest{Type: "Withdraw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[*domain.ProcessSnapshot](t, resp)
	assert.Equal(t, domain.ProcessCompleted, after.State)
	assert.Contains(t, after.CompletedNodeIDs, "withdrawn")
	assert.NotContains(t, after.CompletedNodeIDs, "review")

	// A completed instance no longer takes signals.
	resp = do(t, http.MethodPost, srv.URL+"/processes/"+itoa(snap.ID)+"/signals", tendrilhttp.SignalRequest{Type: "Withdraw"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_Broadcast(t *testing.T) {
	mgr, srv := newServer(t)
	first := start(t, srv)
	second := start(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/signals", tendrilhttp.SignalRequest{Type: "Withdraw"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	for _, id := range []int64{first.ID, second.ID} {
		pi, err := mgr.Instance(id)
		require.NoError(t, err)
		assert.Equal(t, domain.ProcessCompleted, pi.State())
	}
}

func TestServer_FireTimer(t *testing.T) {
	mgr, srv := newServer(t)
	snap := start(t, srv)

	pending := mgr.PendingTimers()
	require.Len(t, pending, 1)

	resp := do(t, http.MethodPost, srv.URL+"/timers/"+itoa(pending[0].ID)+"/fire", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/processes/"+itoa(snap.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[*domain.ProcessSnapshot](t, resp)
	assert.Contains(t, after.CompletedNodeIDs, "reminder")
	assert.Equal(t, domain.ProcessActive, after.State)

	resp = do(t, http.MethodPost, srv.URL+"/timers/"+itoa(pending[0].ID)+"/fire", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_TriggerAndCompleteNode(t *testing.T) {
	_, srv := newServer(t)
	snap := start(t, srv)
	base := srv.URL + "/processes/" + itoa(snap.ID)

	resp := do(t, http.MethodPost, base+"/nodes", tendrilhttp.TriggerRequest{Node: "remind"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[tendrilhttp.TriggerResponse](t, resp)
	assert.NotZero(t, created.NodeInstanceID)

	resp = do(t, http.MethodPost, base+"/nodes/"+itoa(created.NodeInstanceID)+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[*domain.ProcessSnapshot](t, resp)
	assert.Contains(t, after.CompletedNodeIDs, "remind")

	resp = do(t, http.MethodPost, base+"/nodes", tendrilhttp.TriggerRequest{Node: "ghost"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestServer_AbortAndDelete(t *testing.T) {
	_, srv := newServer(t)
	snap := start(t, srv)
	base := srv.URL + "/processes/" + itoa(snap.ID)

	resp := do(t, http.MethodPost, base+"/abort", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[*domain.ProcessSnapshot](t, resp)
	assert.Equal(t, domain.ProcessAborted, after.State)
	assert.Empty(t, after.NodeInstances)

	resp = do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Errors(t *testing.T) {
	_, srv := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown definition", http.MethodPost, "/processes", tendrilhttp.StartRequest{Definition: "nope"}, http.StatusNotFound},
		{"unknown process", http.MethodGet, "/processes/42", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/processes/abc", nil, http.StatusBadRequest},
		{"missing signal type", http.MethodPost, "/signals", tendrilhttp.SignalRequest{}, http.StatusBadRequest},
		{"unknown work item", http.MethodPost, "/processes/1/work-items/9/complete", nil, http.StatusNotFound},
	}

	start(t, srv)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status >= 400 {
				body := decode[tendrilhttp.ErrorResponse](t, resp)
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	mgr, err := session.New([]*domain.ProcessDefinition{reviewProcess()}, nil, session.Config{},
		session.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	srv := httptest.NewServer(tendrilhttp.NewHandler(mgr, tendrilhttp.WithMetrics(observability.Handler(reg))))
	t.Cleanup(srv.Close)
	start(t, srv)

	resp := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "tendril_node_triggered_total")
}
