package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/doc-analysis-service/internal/analysis"
	"github.com/toricodesthings/doc-analysis-service/internal/config"
	"github.com/toricodesthings/doc-analysis-service/internal/extract"
	plaintextextractor "github.com/toricodesthings/doc-analysis-service/internal/extractors/plaintext"
)

// setupServerState wires the package globals the handlers read, with the
// analysis client pointed at the given backend URL.
func setupServerState(t *testing.T, backendURL string) {
	t.Helper()

	cfg = config.Config{
		MaxJSONBodyBytes:      2 << 20,
		MaxFileBytes:          10 << 20,
		MaxWords:              50000,
		MaxConcurrentRequests: 4,
		MaxAnalysisConcurrent: 2,
		ExtractTimeout:        30 * time.Second,
	}
	logger = zap.NewNop()
	requestSem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)
	analysisSem = semaphore.NewWeighted(cfg.MaxAnalysisConcurrent)

	registry := extract.NewRegistry()
	registry.Register(plaintextextractor.New())
	pipeline = extract.NewPipeline(registry, cfg.MaxFileBytes, cfg.MaxWords)
	analyzer = analysis.New("test-key", backendURL, "test-model", 5*time.Second)
}

func multipartUpload(t *testing.T, target, fileName, content, studentName string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if studentName != "" {
		if err := mw.WriteField("studentName", studentName); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, target, &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestAnalyzeEndToEnd(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"role":    "assistant",
					"content": `{"summary":"Steady progress across goals.","overallScore":88}`,
				}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer backend.Close()
	setupServerState(t, backend.URL)

	doc := strings.TrimSpace(strings.Repeat("progress note ", 200)) // 400 words
	r := multipartUpload(t, "/analyze", "report.txt", doc, "Jane Doe")
	w := httptest.NewRecorder()

	handleAnalyze(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success        bool             `json:"success"`
		Document       extract.Document `json:"document"`
		Analysis       analysis.Result  `json:"analysis"`
		AnalysisSource string           `json:"analysisSource"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success")
	}
	if resp.Document.WordCount != 400 {
		t.Fatalf("expected 400 words, got %d", resp.Document.WordCount)
	}
	if resp.Analysis.OverallScore != 88 {
		t.Fatalf("expected score 88 passed through, got %d", resp.Analysis.OverallScore)
	}
	if resp.Analysis.StudentName != "Jane Doe" {
		t.Fatalf("expected student name passed through, got %q", resp.Analysis.StudentName)
	}
	if resp.AnalysisSource != "parsed" {
		t.Fatalf("expected parsed source, got %q", resp.AnalysisSource)
	}
}

func TestExtractRejectsUnsupportedUpload(t *testing.T) {
	setupServerState(t, "http://unused.invalid")

	r := multipartUpload(t, "/extract", "slides.pptx", "not supported", "")
	w := httptest.NewRecorder()

	handleExtract(w, r)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetClientIP(t *testing.T) {
	cases := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{"remote addr only", "", "", "10.0.0.1:12345", "10.0.0.1"},
		{"x-real-ip", "", "172.16.0.5", "10.0.0.1:12345", "172.16.0.5"},
		{"xff single", "203.0.113.7", "", "10.0.0.1:12345", "203.0.113.7"},
		{"xff chain takes first", "203.0.113.7, 172.16.0.5", "", "10.0.0.1:12345", "203.0.113.7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				r.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := getClientIP(r); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeLogString(t *testing.T) {
	got := sanitizeLogString("line1\nline2\rline3")
	if strings.ContainsAny(got, "\n\r") {
		t.Fatalf("expected newlines stripped, got %q", got)
	}

	long := strings.Repeat("a", 300)
	if got := sanitizeLogString(long); len(got) != 203 {
		t.Fatalf("expected truncation to 200+ellipsis, got len %d", len(got))
	}
}

func TestParseJSONRejectsUnknownAndTrailing(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q","bogus":1}`))
	if _, err := parseJSON[askRequest](r, 1<<20); err == nil {
		t.Fatalf("expected unknown field rejection")
	}

	r = httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q"}{"again":true}`))
	if _, err := parseJSON[askRequest](r, 1<<20); err == nil {
		t.Fatalf("expected trailing data rejection")
	}

	r = httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q","documentText":"d"}`))
	req, err := parseJSON[askRequest](r, 1<<20)
	if err != nil {
		t.Fatalf("expected valid body to parse: %v", err)
	}
	if req.Question != "q" || req.DocumentText != "d" {
		t.Fatalf("unexpected parse result %+v", req)
	}
}

func TestExtractErrorStatus(t *testing.T) {
	cases := []struct {
		kind extract.Kind
		want int
	}{
		{extract.KindFileTooLarge, http.StatusRequestEntityTooLarge},
		{extract.KindUnsupportedFileType, http.StatusUnsupportedMediaType},
		{extract.KindFileNotFound, http.StatusBadRequest},
		{extract.KindCorruptedFile, http.StatusBadRequest},
	}
	for _, tc := range cases {
		status, code := extractErrorStatus(&extract.Error{Kind: tc.kind})
		if status != tc.want {
			t.Fatalf("kind %v: got %d want %d", tc.kind, status, tc.want)
		}
		if code != tc.kind.String() {
			t.Fatalf("kind %v: unexpected code %q", tc.kind, code)
		}
	}
}

func TestAnalysisErrorStatus(t *testing.T) {
	cases := []struct {
		kind analysis.Kind
		want int
	}{
		{analysis.KindRateLimited, http.StatusTooManyRequests},
		{analysis.KindInvalidCredential, http.StatusInternalServerError},
		{analysis.KindTokenLimitExceeded, http.StatusUnprocessableEntity},
		{analysis.KindNetworkError, http.StatusBadGateway},
		{analysis.KindAPIError, http.StatusBadGateway},
	}
	for _, tc := range cases {
		status, _ := analysisErrorStatus(&analysis.Error{Kind: tc.kind})
		if status != tc.want {
			t.Fatalf("kind %v: got %d want %d", tc.kind, status, tc.want)
		}
	}
}
