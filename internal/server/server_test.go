package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raglinehq/ragline/internal/answer"
	"github.com/raglinehq/ragline/internal/embed"
	"github.com/raglinehq/ragline/internal/llm"
	"github.com/raglinehq/ragline/internal/observability"
	"github.com/raglinehq/ragline/internal/retrieve"
	"github.com/raglinehq/ragline/internal/store"
	"github.com/raglinehq/ragline/internal/store/memory"
)

// pipelineProvider serves both capabilities: constant embeddings and a
// scripted completion.
type pipelineProvider struct {
	reply string
}

func (p *pipelineProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (p *pipelineProvider) Complete(context.Context, *llm.Prompt, *llm.RequestOptions) (*llm.Response, error) {
	return &llm.Response{Content: p.reply}, nil
}

func (p *pipelineProvider) Name() string { return "pipeline" }

func testServer(t *testing.T, reply string) *Server {
	t.Helper()
	p := &pipelineProvider{reply: reply}
	mem, err := memory.New(store.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := mem.ReplaceDocument(ctx, "intro",
		[]string{"The sky is blue.", "Grass is green."},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	); err != nil {
		t.Fatal(err)
	}

	batcher := embed.NewBatcher(p, 64)
	composer := answer.New(retrieve.New(batcher, mem, nil), p, nil)
	return New(DefaultConfig(), composer, NewHealth("test"), observability.NewRequestMetrics(), nil)
}

func TestAsk_OK(t *testing.T) {
	srv := testServer(t, `{"answer":"The sky is blue.","citations":["intro:0"]}`)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/ask?q=what+color+is+the+sky", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var ans answer.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "The sky is blue." {
		t.Fatalf("answer = %q", ans.Answer)
	}
	if len(ans.Citations) != 1 || ans.Citations[0] != "intro:0" {
		t.Fatalf("citations = %v", ans.Citations)
	}
}

func TestAsk_ShortQueryRejected(t *testing.T) {
	srv := testServer(t, "{}")
	for _, target := range []string{"/ask", "/ask?q=", "/ask?q=hi", "/ask?q=%20%20ab%20"} {
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestAsk_BadK(t *testing.T) {
	srv := testServer(t, "{}")
	for _, target := range []string{"/ask?q=abc&k=0", "/ask?q=abc&k=-2", "/ask?q=abc&k=lots"} {
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestAsk_MethodNotAllowed(t *testing.T) {
	srv := testServer(t, "{}")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest("POST", "/ask?q=abc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, `{"answer":"x","citations":["intro:0"]}`)
	routes := srv.Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/ask?q=anything+at+all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ask status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `ragline_requests_total{op="ask"} 1`) {
		t.Fatalf("metrics missing ask counter:\n%s", rec.Body.String())
	}
}
