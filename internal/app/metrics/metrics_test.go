package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/api/polls/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/polls/{id}", "418"))
	req := httptest.NewRequest(http.MethodGet, "/api/polls/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/polls/{id}", "418"))
	if after != before+1 {
		t.Fatalf("expected request counted under template, before=%v after=%v", before, after)
	}
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                   "/",
		"/":                  "/",
		"/api":               "/api",
		"/api/visits/12/foo": "/api/visits",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	RecordLogin(false)
	RecordJobRun("close-polls", 0, true)
	if v := testutil.ToFloat64(logins.WithLabelValues("failure")); v < 1 {
		t.Fatalf("login failure not counted")
	}
	if v := testutil.ToFloat64(jobRuns.WithLabelValues("close-polls", "true")); v < 1 {
		t.Fatalf("job run not counted")
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "domu_jobs_runs_total") {
		t.Fatalf("metrics output missing job counter")
	}
}
