package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pithecene-io/recap/recap"
	"github.com/pithecene-io/recap/recap/storage"
)

func newTestServer(t *testing.T, files map[string]string) *Server {
	t.Helper()
	mem := storage.NewMemory()
	for p, content := range files {
		if err := mem.Put(t.Context(), p, strings.NewReader(content)); err != nil {
			t.Fatalf("Put(%s) error = %v", p, err)
		}
	}
	client, err := recap.New(recap.WithStorage("file", mem))
	if err != nil {
		t.Fatalf("recap.New() error = %v", err)
	}
	return New(client, zerolog.Nop())
}

func get(t *testing.T, s *Server, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestList(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"/data/a.csv":     "id\n1\n",
		"/data/sub/b.csv": "id\n2\n",
	})

	want := []string{"file:///data/a.csv", "file:///data/sub"}
	for _, target := range []string{"/ls//data", "/ls/file:///data", "/ls?url=/data", "/ls?url=file:///data"} {
		rec := get(t, s, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, body = %s", target, rec.Code, rec.Body.String())
		}
		var body listResponse
		decodeBody(t, rec, &body)
		if strings.Join(body.Children, ",") != strings.Join(want, ",") {
			t.Errorf("GET %s children = %v, want %v", target, body.Children, want)
		}
	}
}

func TestSchema(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"/data/events.jsonl": "{\"a\":1}\n{\"a\":\"x\"}\n",
	})

	rec := get(t, s, "/schema//data/events.jsonl")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"type": "union"`) || !strings.Contains(body, `"name": "a"`) {
		t.Errorf("body = %s", body)
	}
}

func TestSchema_Dialects(t *testing.T) {
	s := newTestServer(t, map[string]string{"/data/people.csv": "name,age\nada,36\n"})

	tests := []struct {
		dialect string
		status  int
		want    string
	}{
		{"tableschema", http.StatusOK, `"type": "integer"`},
		{"jsonschema", http.StatusOK, `"properties"`},
		{"parquet", http.StatusOK, `"physical"`},
		{"avro", http.StatusBadRequest, "unknown dialect"},
	}
	for _, tt := range tests {
		rec := get(t, s, "/schema?url=/data/people.csv&dialect="+tt.dialect)
		if rec.Code != tt.status {
			t.Errorf("dialect %s status = %d, want %d", tt.dialect, rec.Code, tt.status)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("dialect %s body = %s, want containing %s", tt.dialect, rec.Body.String(), tt.want)
		}
	}
}

func TestSchema_DialectCheckedBeforeRead(t *testing.T) {
	mem := storage.NewMemory()
	opened := 0
	fs := countingFS{FS: mem, opens: &opened}
	client, err := recap.New(recap.WithStorage("file", fs))
	if err != nil {
		t.Fatalf("recap.New() error = %v", err)
	}
	s := New(client, zerolog.Nop())

	// A missing file would be 404 if the read happened first.
	rec := get(t, s, "/schema?url=/data/missing.csv&dialect=avro")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
	var body errorResponse
	decodeBody(t, rec, &body)
	if body.Class != "bad_request" || !strings.Contains(body.Error, `"avro"`) {
		t.Errorf("body = %+v", body)
	}
	if opened != 0 {
		t.Errorf("storage opened %d times, want 0", opened)
	}
}

// countingFS counts Open calls on the wrapped FS.
type countingFS struct {
	storage.FS
	opens *int
}

func (c countingFS) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	*c.opens++
	return c.FS.Open(ctx, p)
}

func TestErrorStatus(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"/data/file.xyz":  "?",
		"/data/bad.jsonl": "{nope\n",
	})

	tests := []struct {
		target string
		status int
		class  string
	}{
		{"/schema//data/file.xyz", http.StatusUnprocessableEntity, "unsupported_format"},
		{"/schema//data/bad.jsonl", http.StatusUnprocessableEntity, "invalid_format"},
		{"/schema//data/missing.csv", http.StatusNotFound, "not_found"},
		{"/ls//missing", http.StatusNotFound, "not_found"},
		{"/ls/ftp://host/x", http.StatusBadRequest, "no_match"},
		{"/ls/s3://bucket", http.StatusNotImplemented, "no_storage"},
		{"/ls", http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		rec := get(t, s, tt.target, RequestIDHeader, "req-1")
		if rec.Code != tt.status {
			t.Errorf("GET %s status = %d, want %d (body %s)", tt.target, rec.Code, tt.status, rec.Body.String())
			continue
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.Class != tt.class || body.RequestID != "req-1" || body.Error == "" {
			t.Errorf("GET %s body = %+v", tt.target, body)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[recap.ErrorClass]int{
		recap.ClassNoMatch:           http.StatusBadRequest,
		recap.ClassAmbiguous:         http.StatusBadRequest,
		recap.ClassInvalidPath:       http.StatusBadRequest,
		recap.ClassNotFound:          http.StatusNotFound,
		recap.ClassUnsupportedFormat: http.StatusUnprocessableEntity,
		recap.ClassUnsupportedSchema: http.StatusUnprocessableEntity,
		recap.ClassInvalidFormat:     http.StatusUnprocessableEntity,
		recap.ClassNoStorage:         http.StatusNotImplemented,
		recap.ClassConflict:          http.StatusInternalServerError,
		recap.ClassBackend:           http.StatusBadGateway,
	}
	for class, want := range tests {
		if got := StatusFor(class); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", class, got, want)
		}
	}
	if got := StatusFor(recap.Classify(errors.New("timeout"))); got != http.StatusBadGateway {
		t.Errorf("StatusFor(backend) = %d", got)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/healthz")
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated request id = %q, want a UUID", id)
	}

	rec = get(t, s, "/healthz", RequestIDHeader, "abc")
	if id := rec.Header().Get(RequestIDHeader); id != "abc" {
		t.Errorf("propagated request id = %q, want abc", id)
	}
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, map[string]string{"/data/a.csv": "id\n1\n"})

	get(t, s, "/ls//data")
	get(t, s, "/ls//missing")

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`recap_requests_total{action="contains",outcome="ok"} 1`,
		`recap_requests_total{action="contains",outcome="not_found"} 1`,
		`recap_request_duration_seconds_count{action="contains"} 2`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
