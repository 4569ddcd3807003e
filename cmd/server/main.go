package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/toricodesthings/doc-analysis-service/internal/analysis"
	"github.com/toricodesthings/doc-analysis-service/internal/config"
	"github.com/toricodesthings/doc-analysis-service/internal/extract"
	officeextractor "github.com/toricodesthings/doc-analysis-service/internal/extractors/office"
	pdfextractor "github.com/toricodesthings/doc-analysis-service/internal/extractors/pdf"
	plaintextextractor "github.com/toricodesthings/doc-analysis-service/internal/extractors/plaintext"
)

var (
	cfg    config.Config
	logger *zap.Logger

	requestSem  *semaphore.Weighted
	analysisSem *semaphore.Weighted

	pipeline *extract.Pipeline
	analyzer *analysis.Client

	// Per-IP rate limiters
	limiters = &sync.Map{}

	metrics = &serverMetrics{}
)

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
	fallbacks     int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}
func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}
func (m *serverMetrics) incFallback() {
	m.mu.Lock()
	m.fallbacks++
	m.mu.Unlock()
}
func (m *serverMetrics) get() (total, active, fallbacks int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs, m.fallbacks
}

func main() {
	_ = godotenv.Load()

	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	requestSem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)
	analysisSem = semaphore.NewWeighted(cfg.MaxAnalysisConcurrent)

	registry := extract.NewRegistry()
	registry.Register(pdfextractor.New())
	registry.Register(plaintextextractor.New())
	registry.Register(plaintextextractor.NewRTF())
	registry.Register(officeextractor.NewWord())

	pipeline = extract.NewPipeline(registry, cfg.MaxFileBytes, cfg.MaxWords)
	analyzer = analysis.New(cfg.AnalysisAPIKey, cfg.AnalysisAPIURL, cfg.AnalysisModel, cfg.AnalysisTimeout)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/metrics", withInternalAuth(handleMetrics))

	mux.HandleFunc("/extract",
		withInternalAuth(
			withRateLimit(
				withMethod("POST",
					withConcurrencyLimit(handleExtract)))))

	mux.HandleFunc("/analyze",
		withInternalAuth(
			withRateLimit(
				withMethod("POST",
					withConcurrencyLimit(handleAnalyze)))))

	mux.HandleFunc("/ask",
		withInternalAuth(
			withRateLimit(
				withMethod("POST",
					withConcurrencyLimit(handleAsk)))))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withLogging(withRecovery(mux)),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if strings.TrimSpace(cfg.AnalysisAPIKey) == "" {
		logger.Warn("ANALYSIS_API_KEY not set (analysis and ask will fail)")
	}

	go reportStats()

	logger.Info("docanalysis listening",
		zap.String("addr", srv.Addr),
		zap.Int64("maxConcurrent", cfg.MaxConcurrentRequests),
		zap.Int64("maxAnalysisConcurrent", cfg.MaxAnalysisConcurrent))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func reportStats() {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active, fallbacks := metrics.get()
		logger.Info("stats",
			zap.Int64("active", active),
			zap.Int64("total", total),
			zap.Int64("fallbacks", fallbacks),
			zap.Int("goroutines", runtime.NumGoroutine()),
			zap.Uint64("memMB", m.Alloc/(1<<20)))

		limiters = &sync.Map{}
	}
}

// ---------- Handlers ----------

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active, _ := metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if active >= int64(float64(cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": "1.0.0",
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active, fallbacks := metrics.get()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests":    active,
		"totalRequests":     total,
		"analysisFallbacks": fallbacks,
		"goroutines":        runtime.NumGoroutine(),
		"memAllocMB":        m.Alloc / (1 << 20),
		"memSysMB":          m.Sys / (1 << 20),
	})
}

func handleExtract(w http.ResponseWriter, r *http.Request) {
	doc, ok := extractUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": doc})
}

func handleAnalyze(w http.ResponseWriter, r *http.Request) {
	doc, ok := extractUpload(w, r)
	if !ok {
		return
	}

	studentName := strings.TrimSpace(r.FormValue("studentName"))

	ctx := r.Context()
	if err := analysisSem.Acquire(ctx, 1); err != nil {
		writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
		return
	}
	defer analysisSem.Release(1)

	outcome, err := analyzer.Analyze(ctx, doc.Text, studentName)
	if err != nil {
		status, code := analysisErrorStatus(err)
		writeErr(w, status, code, err.Error())
		return
	}

	if outcome.Source == analysis.SourceFallback {
		metrics.incFallback()
		logger.Warn("analysis fell back to defaults",
			zap.String("requestId", requestIDFrom(r.Context())),
			zap.String("file", doc.OriginalFileName))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"document":       doc,
		"analysis":       outcome.Result,
		"analysisSource": outcome.Source.String(),
	})
}

type askRequest struct {
	Question     string          `json:"question"`
	DocumentText string          `json:"documentText"`
	History      []analysis.Turn `json:"history"`
}

func handleAsk(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[askRequest](r, cfg.MaxJSONBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeErr(w, http.StatusBadRequest, "validation_failed", "question required")
		return
	}

	ctx := r.Context()
	if err := analysisSem.Acquire(ctx, 1); err != nil {
		writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
		return
	}
	defer analysisSem.Release(1)

	answer, err := analyzer.Ask(ctx, req.Question, req.DocumentText, req.History)
	if err != nil {
		status, code := analysisErrorStatus(err)
		writeErr(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "answer": answer})
}

// extractUpload saves the multipart file part to a temp dir, runs the
// extraction pipeline, and writes the error response itself on failure.
func extractUpload(w http.ResponseWriter, r *http.Request) (extract.Document, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxFileBytes+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "multipart file field required")
		return extract.Document{}, false
	}
	defer file.Close()

	up, err := extract.SaveToTemp(file, header.Filename, cfg.MaxFileBytes)
	if err != nil {
		status, code := extractErrorStatus(err)
		writeErr(w, status, code, userMessage(err))
		return extract.Document{}, false
	}
	defer up.Cleanup()

	ctx, cancel := context.WithTimeout(r.Context(), cfg.ExtractTimeout)
	defer cancel()

	doc, err := pipeline.Extract(ctx, up.Path, nil)
	if err != nil {
		status, code := extractErrorStatus(err)
		writeErr(w, status, code, userMessage(err))
		return extract.Document{}, false
	}

	doc.OriginalFileName = header.Filename
	doc.DetectedMIME = up.MIMEType
	return doc, true
}

// ---------- Error mapping ----------

func extractErrorStatus(err error) (int, string) {
	var ee *extract.Error
	if !errors.As(err, &ee) {
		return http.StatusBadRequest, "extraction_failed"
	}
	switch ee.Kind {
	case extract.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge, ee.Kind.String()
	case extract.KindUnsupportedFileType:
		return http.StatusUnsupportedMediaType, ee.Kind.String()
	default:
		return http.StatusBadRequest, ee.Kind.String()
	}
}

func analysisErrorStatus(err error) (int, string) {
	var ae *analysis.Error
	if !errors.As(err, &ae) {
		return http.StatusBadGateway, "analysis_failed"
	}
	switch ae.Kind {
	case analysis.KindRateLimited:
		return http.StatusTooManyRequests, ae.Kind.String()
	case analysis.KindInvalidCredential:
		return http.StatusInternalServerError, ae.Kind.String()
	case analysis.KindTokenLimitExceeded:
		return http.StatusUnprocessableEntity, ae.Kind.String()
	default:
		return http.StatusBadGateway, ae.Kind.String()
	}
}

// userMessage prefers the typed error's user-facing sentence.
func userMessage(err error) string {
	var ee *extract.Error
	if errors.As(err, &ee) {
		return ee.Error()
	}
	var ae *analysis.Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return sanitizeError(err)
}

// ---------- Middleware ----------

func withMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method must be "+method)
			return
		}
		next(w, r)
	}
}

func withInternalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Internal-Auth")
		if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.InternalSharedSecret)) != 1 {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "Invalid authentication")
			return
		}
		next(w, r)
	}
}

func withConcurrencyLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requestSem.Acquire(r.Context(), 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
			return
		}
		defer requestSem.Release(1)

		metrics.incActive()
		defer metrics.decActive()

		next(w, r)
	}
}

func withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		limiter := getRateLimiter(ip)

		if !limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			writeErr(w, http.StatusTooManyRequests, "rate_limit", "Rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", zap.Any("panic", err))
				writeErr(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type ctxKey int

const requestIDKey ctxKey = 0

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		ww := &wrapWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID)))

		logger.Info("request",
			zap.String("requestId", requestID),
			zap.String("method", r.Method),
			zap.String("path", sanitizeLogString(r.URL.Path)),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// ---------- Helpers ----------

func getRateLimiter(ip string) *rate.Limiter {
	if v, ok := limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}

	every := cfg.RateLimitEvery
	if every <= 0 {
		every = 600 * time.Millisecond // ~100/min
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	limiter := rate.NewLimiter(rate.Every(every), burst)
	limiters.Store(ip, limiter)
	return limiter
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if idx := strings.Index(ip, ","); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func parseJSON[T any](r *http.Request, limit int64) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&out); err != nil {
		return out, err
	}

	if err := dec.Decode(new(any)); err != io.EOF {
		if err == nil {
			return out, fmt.Errorf("unexpected trailing data")
		}
		return out, err
	}

	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
