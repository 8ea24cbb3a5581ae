package governance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries uint64) *HttpClient {
	return NewHttpClient(HttpClientConfig{
		BaseURL:         url,
		Timeout:         200 * time.Millisecond,
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
}

func TestHttpClient(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"retries transient failures then succeeds": testRetryThenSuccess,
		"exhausted retries are unavailable":         testUnavailable,
		"client errors are not retried":             testContractStatus,
		"malformed body is a contract error":        testMalformedBody,
		"missing fields fail validation":            testValidation,
		"slow responses time out and retry":         testTimeout,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testRetryThenSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		require.Equal(t, "/internal/v1/approvals/uc-1/status", r.URL.Path)
		json.NewEncoder(w).Encode(ApprovalStatus{Approvals: []ApprovalItem{{System: "RISK", State: "approved"}}})
	}))
	defer srv.Close()

	status, err := newTestClient(srv.URL, 3).ApprovalStatus(context.Background(), "uc-1")
	require.NoError(t, err)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Equal(t, "APPROVED", status.Snapshot()["RISK"].State)
}

func testUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).EvaluationStatus(context.Background(), "uc-1")
	require.Error(t, err)
	require.True(t, IsUnavailable(err))
	require.False(t, IsContractError(err))
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func testContractStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"unknown subject"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).RegistrationStatus(context.Background(), "uc-1")
	require.True(t, IsContractError(err))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func testMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"required_artifacts": "THREAT_MODEL"`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).PolicyRequirements(context.Background(), PolicyRequest{DataClassification: "PCI"})
	require.True(t, IsContractError(err))
}

func testValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"approvals":[{"system":"RISK","state":"MAYBE"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).ApprovalStatus(context.Background(), "uc-1")
	require.True(t, IsContractError(err))

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv2.Close()
	_, err = newTestClient(srv2.URL, 3).ArtifactStatus(context.Background(), "uc-1")
	require.True(t, IsContractError(err))
}

func testTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(400 * time.Millisecond)
		}
		w.Write([]byte(`{"eval_metrics":{"toxicity":0.01}}`))
	}))
	defer srv.Close()

	status, err := newTestClient(srv.URL, 2).TriggerEvaluations(context.Background(), "uc-1", []string{"TOXICITY"})
	require.NoError(t, err)
	require.Equal(t, 0.01, status.Metrics["toxicity"])
	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}
