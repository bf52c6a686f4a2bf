package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfredjeanlab/crater/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "")
}

func TestHTTPClient_CurrentToolchains(t *testing.T) {
	h := &testHandler{responseBody: `{
		"date": "2015-03-03",
		"nightly": {"channel": "nightly", "date": "2015-03-02"},
		"beta": null,
		"stable": null
	}`}
	c := newTestClient(t, h)

	rep, err := c.CurrentToolchains(context.Background(), "2015-03-03")
	if err != nil {
		t.Fatalf("CurrentToolchains: %v", err)
	}
	if h.method != http.MethodGet || h.path != "/v1/toolchains/current" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.query != "date=2015-03-03" {
		t.Errorf("query = %q", h.query)
	}
	if rep.Nightly == nil || rep.Nightly.String() != "nightly-2015-03-02" || rep.Beta != nil {
		t.Errorf("report = %+v", rep)
	}

	if _, err := c.CurrentToolchains(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if h.query != "" {
		t.Errorf("empty date should send no query, got %q", h.query)
	}
}

func TestHTTPClient_ComparisonReport(t *testing.T) {
	h := &testHandler{responseBody: `{
		"from": "nightly-2015-03-01",
		"to": "nightly-2015-03-02",
		"summary": {"working": 3, "regressed": 1},
		"root_regressions": [{"name": "url", "version": "0.2.0", "purl": "pkg:cargo/url@0.2.0", "popularity": 4}],
		"non_root_regressions": [],
		"fixed": []
	}`}
	c := newTestClient(t, h)

	rep, err := c.ComparisonReport(context.Background(), "nightly-2015-03-01", "nightly-2015-03-02")
	if err != nil {
		t.Fatalf("ComparisonReport: %v", err)
	}
	if h.path != "/v1/reports/comparison" {
		t.Errorf("path = %q", h.path)
	}
	if h.query != "from=nightly-2015-03-01&to=nightly-2015-03-02" {
		t.Errorf("query = %q", h.query)
	}
	if rep.Summary.Regressed != 1 || len(rep.RootRegressions) != 1 || rep.RootRegressions[0].Popularity != 4 {
		t.Errorf("report = %+v", rep)
	}
}

func TestHTTPClient_Reports(t *testing.T) {
	for _, tc := range []struct {
		name      string
		call      func(*HTTPClient) error
		wantPath  string
		wantQuery string
	}{
		{
			name: "Weekly",
			call: func(c *HTTPClient) error {
				_, err := c.WeeklyReport(context.Background(), "2015-03-10")
				return err
			},
			wantPath:  "/v1/reports/weekly",
			wantQuery: "date=2015-03-10",
		},
		{
			name: "PopularityLimit",
			call: func(c *HTTPClient) error {
				_, err := c.PopularityReport(context.Background(), 20)
				return err
			},
			wantPath:  "/v1/reports/popularity",
			wantQuery: "limit=20",
		},
		{
			name: "PopularityAll",
			call: func(c *HTTPClient) error {
				_, err := c.PopularityReport(context.Background(), 0)
				return err
			},
			wantPath: "/v1/reports/popularity",
		},
		{
			name: "Toolchain",
			call: func(c *HTTPClient) error {
				_, err := c.ToolchainReport(context.Background(), "beta-2015-02-20")
				return err
			},
			wantPath: "/v1/reports/toolchain/beta-2015-02-20",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{responseBody: `{}`}
			c := newTestClient(t, h)
			if err := tc.call(c); err != nil {
				t.Fatal(err)
			}
			if h.path != tc.wantPath || h.query != tc.wantQuery {
				t.Errorf("got %s?%s, want %s?%s", h.path, h.query, tc.wantPath, tc.wantQuery)
			}
		})
	}
}

func TestHTTPClient_GetResult_PathEscape(t *testing.T) {
	h := &testHandler{responseBody: `{"toolchain":"stable-2015-01-01","crate_name":"a b","crate_vers":"1.0.0+build","outcome":"failure","task_id":"task-1"}`}
	c := newTestClient(t, h)

	res, err := c.GetResult(context.Background(), model.BuildResultKey{
		Toolchain: "stable-2015-01-01",
		CrateName: "a b",
		CrateVers: "1.0.0+build",
	})
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if h.path != "/v1/results/stable-2015-01-01/a b/1.0.0+build" {
		t.Errorf("path = %q", h.path)
	}
	if res.Outcome != model.OutcomeFailure {
		t.Errorf("outcome = %q", res.Outcome)
	}
}

func TestHTTPClient_GetResults(t *testing.T) {
	h := &testHandler{responseBody: `{"results":[{"toolchain":"nightly-2015-03-01","crate_name":"toml","crate_vers":"0.1.18","outcome":"success"}],"total":1}`}
	c := newTestClient(t, h)

	resp, err := c.GetResults(context.Background(), "nightly-2015-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].CrateName != "toml" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPClient_ListToolchains(t *testing.T) {
	h := &testHandler{responseBody: `{"available":{"nightly":["2015-03-01"],"beta":[],"stable":[]},"with_results":["nightly-2015-03-01"]}`}
	c := newTestClient(t, h)

	resp, err := c.ListToolchains(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Available.Nightly) != 1 || resp.WithResults[0] != "nightly-2015-03-01" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPClient_CustomBuild(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusAccepted,
		responseBody: `{"toolchain":"custom-3a2b1c4","url":"https://github.com/rust-lang/rust","task_id":"custom-build-abc"}`,
	}
	c := newTestClient(t, h)

	custom, err := c.CustomBuild(context.Background(), "https://github.com/rust-lang/rust", "3a2b1c4")
	if err != nil {
		t.Fatalf("CustomBuild: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/custom-builds" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content type = %q", h.contentType)
	}
	if !strings.Contains(h.body, `"commit":"3a2b1c4"`) || !strings.Contains(h.body, `"url":"https://github.com/rust-lang/rust"`) {
		t.Errorf("body = %s", h.body)
	}
	if custom.Toolchain != "custom-3a2b1c4" || custom.TaskID != "custom-build-abc" {
		t.Errorf("custom = %+v", custom)
	}
}

func TestHTTPClient_CrateBuild(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusAccepted,
		responseBody: `{"toolchain":"nightly-2015-03-01","most_recent_only":true,"tasks":42}`,
	}
	c := newTestClient(t, h)

	resp, err := c.CrateBuild(context.Background(), &CrateBuildRequest{Toolchain: "nightly-2015-03-01", MostRecentOnly: true})
	if err != nil {
		t.Fatalf("CrateBuild: %v", err)
	}
	if h.body != `{"toolchain":"nightly-2015-03-01","most_recent_only":true}` {
		t.Errorf("body = %s", h.body)
	}
	if resp.Tasks != 42 {
		t.Errorf("tasks = %d", resp.Tasks)
	}

	if _, err := c.CrateBuild(context.Background(), &CrateBuildRequest{Toolchain: "nightly-2015-03-01", Cutoff: "2015-01-15"}); err != nil {
		t.Fatalf("CrateBuild: %v", err)
	}
	if h.body != `{"toolchain":"nightly-2015-03-01","most_recent_only":false,"cutoff":"2015-01-15"}` {
		t.Errorf("body = %s", h.body)
	}
}

func TestHTTPClient_ListCustomBuilds(t *testing.T) {
	h := &testHandler{responseBody: `[{"toolchain":"custom-3a2b1c4","url":"u","task_id":"t"}]`}
	c := newTestClient(t, h)

	customs, err := c.ListCustomBuilds(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(customs) != 1 || customs[0].URL != "u" {
		t.Errorf("customs = %+v", customs)
	}
}

func TestHTTPClient_ListTasks(t *testing.T) {
	h := &testHandler{responseBody: `{"tasks":[{"task_id":"task-1","toolchain":"nightly-2015-03-01","crate_name":"toml","crate_vers":"0.1.18","lost":true}],"total":1,"lost":1}`}
	c := newTestClient(t, h)

	resp, err := c.ListTasks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.path != "/v1/tasks" {
		t.Errorf("path = %q", h.path)
	}
	if resp.Lost != 1 || !resp.Tasks[0].Lost || resp.Tasks[0].CrateName != "toml" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPClient_Token(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	status, err := NewHTTPClient(srv.URL, "s3cret").Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status != "ok" {
		t.Errorf("status = %q", status)
	}
	if h.auth != "Bearer s3cret" {
		t.Errorf("authorization = %q", h.auth)
	}

	if _, err := NewHTTPClient(srv.URL, "").Health(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.auth != "" {
		t.Errorf("authorization sent without token: %q", h.auth)
	}
}

func TestHTTPClient_Errors(t *testing.T) {
	for _, tc := range []struct {
		name        string
		statusCode  int
		body        string
		wantMessage string
	}{
		{"JSONError", http.StatusBadRequest, `{"error":"invalid toolchain: \"x\""}`, `invalid toolchain: "x"`},
		{"PlainError", http.StatusBadGateway, "upstream down", "upstream down"},
		{"NotFound", http.StatusNotFound, `{"error":"not found"}`, "not found"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, &testHandler{statusCode: tc.statusCode, responseBody: tc.body})
			_, err := c.ToolchainReport(context.Background(), "x")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tc.statusCode || apiErr.Message != tc.wantMessage {
				t.Errorf("got %d %q", apiErr.StatusCode, apiErr.Message)
			}
		})
	}
}

func TestHTTPClient_BadJSON(t *testing.T) {
	c := newTestClient(t, &testHandler{responseBody: `{`})
	if _, err := c.WeeklyReport(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "decoding response") {
		t.Errorf("err = %v", err)
	}
}
