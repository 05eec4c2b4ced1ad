package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestFetchBatch(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("path=%s", r.URL.Path)
		}
		q := r.URL.Query()
		mu.Lock()
		seen = append(seen, q.Get("ids"))
		mu.Unlock()
		if q.Get("vs_currencies") != "usd" || q.Get("include_24hr_change") != "true" {
			t.Errorf("query=%s", r.URL.RawQuery)
		}
		if r.Header.Get("x-cg-demo-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":50123.45,"usd_24h_change":-2.5},"ethereum":{"usd":3000,"usd_24h_change":null}}`))
	}))
	defer srv.Close()

	c := NewClient(nil, Options{Host: srv.URL, APIKey: "k"})
	got, err := c.FetchBatch(context.Background(), []string{"bitcoin", "ethereum", "bitcoin", " ", "dogecoin"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(seen) != 1 || seen[0] != "bitcoin,ethereum,dogecoin" {
		t.Fatalf("ids=%v", seen)
	}
	btc, ok := got["bitcoin"]
	if !ok || btc.Value.String() != "50123.45" || btc.PctChange24h == nil || btc.PctChange24h.String() != "-2.5" {
		t.Fatalf("bitcoin=%+v", btc)
	}
	eth, ok := got["ethereum"]
	if !ok || eth.Value.String() != "3000" || eth.PctChange24h != nil {
		t.Fatalf("ethereum=%+v", eth)
	}
	if _, ok := got["dogecoin"]; ok {
		t.Fatalf("unknown id should be omitted")
	}
}

func TestFetchBatch_ChunksAndPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("ids")
		if strings.Contains(ids, "c") {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		var b strings.Builder
		b.WriteString("{")
		for i, id := range strings.Split(ids, ",") {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(`"` + id + `":{"usd":1}`)
		}
		b.WriteString("}")
		_, _ = w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	c := NewClient(nil, Options{Host: srv.URL, BatchSize: 2})
	got, err := c.FetchBatch(context.Background(), []string{"a", "b", "c"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("err=%v want APIError 429", err)
	}
	if len(got) != 2 {
		t.Fatalf("got=%v want a,b", got)
	}
}

func TestFetchBatch_CanceledContext(t *testing.T) {
	c := NewClient(nil, Options{Host: "http://127.0.0.1:1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := c.FetchBatch(ctx, []string{"bitcoin"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want canceled", err)
	}
	if len(got) != 0 {
		t.Fatalf("got=%v", got)
	}
}
