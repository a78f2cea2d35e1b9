// internal/server/integration_test.go
package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalnine/ipaugur/internal/analyst"
	"github.com/signalnine/ipaugur/internal/archive"
	"github.com/signalnine/ipaugur/internal/ingest"
	"github.com/signalnine/ipaugur/internal/metrics"
	"github.com/signalnine/ipaugur/internal/pipeline"
	"github.com/signalnine/ipaugur/internal/protocol"
	"github.com/signalnine/ipaugur/internal/server"
)

// TestIntegrationInvoke runs the full flow from HTTP trigger to archived report
func TestIntegrationInvoke(t *testing.T) {
	// 1. Mock model endpoint (Messages API format)
	var modelCalls atomic.Int32
	mockModel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		modelCalls.Add(1)
		if r.URL.Path != "/messages" {
			t.Errorf("model: Path = %q, want /messages", r.URL.Path)
		}
		var req protocol.ModelRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 1000 {
			t.Errorf("model: max_tokens = %d, want 1000", req.MaxTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{
				"type": "text",
				"text": `{"ip_address": "203.0.113.7", "probable_attack_type": "Brute-force Login", "confidence_level": "High", "recommended_action": "Block IP at firewall"}`,
			}},
		})
	}))
	defer mockModel.Close()

	// 2. Log object in a local "bucket"
	bucket := t.TempDir()
	var logText strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&logText, "203.0.113.7 - - [03/Feb/2026:12:00:%02d +0000] \"POST /wp-login.php HTTP/1.1\" 401 0\n", i)
	}
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&logText, "198.51.100.2 - - [03/Feb/2026:12:01:%02d +0000] \"GET / HTTP/1.1\" 200 612\n", i)
	}
	if err := os.WriteFile(filepath.Join(bucket, "access.log"), []byte(logText.String()), 0644); err != nil {
		t.Fatal(err)
	}

	// 3. Pipeline with archive and metrics
	dbPath := filepath.Join(t.TempDir(), "reports.db")
	db, err := archive.Open(dbPath)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	vocab, err := analyst.NewVocabulary()
	if err != nil {
		t.Fatalf("NewVocabulary: %v", err)
	}

	p := pipeline.New(pipeline.Options{Threshold: 15, ContextLines: 20}, pipeline.Deps{
		Fetcher: ingest.FileFetcher{},
		Analyst: analyst.New(
			analyst.NewHTTPInvoker(mockModel.URL, "test-model", "test-key"),
			analyst.RequestOptions{MaxTokens: 1000},
			vocab,
			m,
		),
		Archive: db,
		Metrics: m,
	})

	// 4. Start the server on an ephemeral port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	srv := server.NewServer(ln.Addr().String(), server.NewInvokeHandler(p, "test-api-key", 1<<20), reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	}()

	// 5. Send the S3 notification
	event := fmt.Sprintf(`{"Records": [{"s3": {"bucket": {"name": %q}, "object": {"key": "access.log"}}}]}`, bucket)
	req, err := http.NewRequest("POST", "http://"+ln.Addr().String()+"/invoke", bytes.NewReader([]byte(event)))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-api-key")
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST /invoke failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Status = %d, want 200. Body: %s", resp.StatusCode, body)
	}

	var out protocol.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if out.StatusCode != 200 {
		t.Errorf("statusCode = %d, want 200", out.StatusCode)
	}
	var report protocol.Report
	if err := json.Unmarshal([]byte(out.Body), &report); err != nil {
		t.Fatalf("body is not a report: %v (%s)", err, out.Body)
	}
	if len(report) != 1 || report[0].IPAddress != "203.0.113.7" {
		t.Fatalf("report = %+v", report)
	}
	if n := modelCalls.Load(); n != 1 {
		t.Errorf("model calls = %d, want 1", n)
	}

	// 6. Archived
	archived, err := db.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("archived %d reports, want 1", len(archived))
	}
	if archived[0].UniqueIPs != 2 || archived[0].Lines != 35 {
		t.Errorf("archived unique_ips/lines = %d/%d, want 2/35", archived[0].UniqueIPs, archived[0].Lines)
	}

	// 7. Metrics exposed
	metricsResp, err := client.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	text, _ := io.ReadAll(metricsResp.Body)
	if !strings.Contains(string(text), `ipaugur_invocations_total{result="findings"} 1`) {
		t.Errorf("metrics missing invocation count:\n%s", text)
	}
}
