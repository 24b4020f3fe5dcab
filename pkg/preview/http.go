package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// maxResponseBytes bounds the backend response read into memory.
const maxResponseBytes = 64 << 20

// HTTPExecutor posts previews to a remote execution backend and decodes the
// Result shape from its JSON answer.
type HTTPExecutor struct {
	URL    string
	Client *http.Client
}

// NewHTTPExecutor creates an executor for the backend at url.
// A zero timeout leaves the request bound only by the context.
func NewHTTPExecutor(url string, timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{URL: url, Client: &http.Client{Timeout: timeout}}
}

type backendRequest struct {
	Kind       Kind           `json:"kind"`
	Name       string         `json:"name,omitempty"`
	Query      string         `json:"query,omitempty"`
	Script     string         `json:"script,omitempty"`
	Parameters map[string]any `json:"parameters"`
	IsPreview  bool           `json:"isPreview"`
}

// Execute implements Executor.
func (h *HTTPExecutor) Execute(ctx context.Context, ds DataSource, values map[string]any) (*Result, error) {
	body, err := json.Marshal(backendRequest{
		Kind:       ds.Kind,
		Name:       ds.Name,
		Query:      ds.Query,
		Script:     ds.Script,
		Parameters: values,
		IsPreview:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding preview request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating preview request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling preview backend: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading preview response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("preview backend returned %s: %s", resp.Status, backendMessage(data))
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("preview backend returned invalid JSON")
	}
	return DecodeResult(data), nil
}

// DecodeResult reads the Result fields from a JSON document. Column order is
// taken from reportColumnNames; when absent it follows the first row's keys.
func DecodeResult(data []byte) *Result {
	doc := gjson.ParseBytes(data)
	res := &Result{
		ExecutionTimeMillis: doc.Get("executionTimeMillis").Int(),
		IsPreview:           doc.Get("isPreview").Bool(),
		TotalRows:           int(doc.Get("totalRows").Int()),
	}

	for _, c := range doc.Get("reportColumnNames").Array() {
		res.ReportColumnNames = append(res.ReportColumnNames, c.String())
	}

	rows := doc.Get("reportData").Array()
	res.ReportData = make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		if !row.IsObject() {
			continue
		}
		m := make(map[string]any)
		row.ForEach(func(key, value gjson.Result) bool {
			m[key.String()] = value.Value()
			if i == 0 && !doc.Get("reportColumnNames").Exists() {
				res.ReportColumnNames = append(res.ReportColumnNames, key.String())
			}
			return true
		})
		res.ReportData = append(res.ReportData, m)
	}
	return res
}

const maxMessageBytes = 200

// backendMessage extracts a readable error from a failed response body.
func backendMessage(data []byte) string {
	for _, path := range []string{"message", "error", "detail"} {
		if v := gjson.GetBytes(data, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > maxMessageBytes {
		cut := maxMessageBytes
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + "..."
	}
	if msg == "" {
		return "(empty response)"
	}
	return msg
}
