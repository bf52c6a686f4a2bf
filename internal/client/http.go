package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/report"
)

// HTTPClient implements CraterClient using the crater HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Reports ---

func (c *HTTPClient) CurrentToolchains(ctx context.Context, date string) (*report.CurrentReport, error) {
	var rep report.CurrentReport
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/toolchains/current", "date", date), nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *HTTPClient) ComparisonReport(ctx context.Context, from, to string) (*report.ComparisonReport, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	var rep report.ComparisonReport
	if err := c.doJSON(ctx, http.MethodGet, "/v1/reports/comparison?"+q.Encode(), nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *HTTPClient) WeeklyReport(ctx context.Context, date string) (*report.WeeklyReport, error) {
	var rep report.WeeklyReport
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/reports/weekly", "date", date), nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *HTTPClient) PopularityReport(ctx context.Context, limit int) (*report.PopularityReport, error) {
	path := "/v1/reports/popularity"
	if limit > 0 {
		path = withQuery(path, "limit", strconv.Itoa(limit))
	}
	var rep report.PopularityReport
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *HTTPClient) ToolchainReport(ctx context.Context, toolchain string) (*report.ToolchainReport, error) {
	var rep report.ToolchainReport
	if err := c.doJSON(ctx, http.MethodGet, "/v1/reports/toolchain/"+url.PathEscape(toolchain), nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// --- Results and toolchains ---

func (c *HTTPClient) ListToolchains(ctx context.Context) (*ToolchainsResponse, error) {
	var resp ToolchainsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/toolchains", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetResults(ctx context.Context, toolchain string) (*ResultsResponse, error) {
	var resp ResultsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/results/"+url.PathEscape(toolchain), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetResult(ctx context.Context, key model.BuildResultKey) (*model.BuildResult, error) {
	path := "/v1/results/" + url.PathEscape(key.Toolchain) +
		"/" + url.PathEscape(key.CrateName) +
		"/" + url.PathEscape(key.CrateVers)
	var result model.BuildResult
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Builds ---

func (c *HTTPClient) ListCustomBuilds(ctx context.Context) ([]*model.CustomToolchain, error) {
	var customs []*model.CustomToolchain
	if err := c.doJSON(ctx, http.MethodGet, "/v1/custom-builds", nil, &customs); err != nil {
		return nil, err
	}
	return customs, nil
}

func (c *HTTPClient) CustomBuild(ctx context.Context, repoURL, commit string) (*model.CustomToolchain, error) {
	body := map[string]string{"url": repoURL, "commit": commit}
	var custom model.CustomToolchain
	if err := c.doJSON(ctx, http.MethodPost, "/v1/custom-builds", body, &custom); err != nil {
		return nil, err
	}
	return &custom, nil
}

func (c *HTTPClient) CrateBuild(ctx context.Context, req *CrateBuildRequest) (*CrateBuildResponse, error) {
	var resp CrateBuildResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/crate-builds", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListTasks(ctx context.Context) (*TasksResponse, error) {
	var resp TasksResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// withQuery appends ?key=value to path when value is non-empty.
func withQuery(path, key, value string) string {
	if value == "" {
		return path
	}
	return path + "?" + url.Values{key: {value}}.Encode()
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

var _ CraterClient = (*HTTPClient)(nil)
