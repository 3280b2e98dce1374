package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stdout)
	fn()
	return buf.String()
}

func TestLogKVEmitsServiceField(t *testing.T) {
	out := captureLog(t, func() {
		LogKV("info", "sequence issued", map[string]interface{}{"job_number": "26-003"})
	})

	start := strings.Index(out, "{")
	if start < 0 {
		t.Fatalf("no JSON object in log output: %q", out)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out[start:])), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "workflow-service" || entry["msg"] != "sequence issued" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if entry["job_number"] != "26-003" {
		t.Fatalf("custom field lost: %v", entry)
	}
}

func TestJSONLoggerRecordsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JSONLogger())
	r.GET("/documents", func(c *gin.Context) { c.Status(http.StatusOK) })

	out := captureLog(t, func() {
		req := httptest.NewRequest(http.MethodGet, "/documents?status=DRAFT", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
	})

	start := strings.Index(out, "{")
	if start < 0 {
		t.Fatalf("no JSON object in log output: %q", out)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out[start:])), &entry); err != nil {
		t.Fatalf("request log line is not JSON: %v", err)
	}
	if entry["method"] != "GET" || entry["path"] != "/documents" || entry["query"] != "status=DRAFT" {
		t.Fatalf("unexpected request entry: %v", entry)
	}
	if entry["status"] != float64(http.StatusOK) || entry["level"] != "info" {
		t.Fatalf("unexpected status/level: %v", entry)
	}
}
