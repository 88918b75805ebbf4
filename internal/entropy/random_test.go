package entropy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSeed_FromRandomOrg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "generateIntegers" || req.Params["apiKey"] != "k" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":[1,5]}},"id":1}`))
	}))
	defer srv.Close()

	c := NewClientWithURL("k", srv.URL)
	if got := c.Seed(context.Background()); got != 1<<31|5 {
		t.Errorf("Seed = %d", got)
	}
}

func TestSeed_FallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"quota"},"id":1}`))
	}))
	defer srv.Close()

	if got := NewClientWithURL("k", srv.URL).Seed(context.Background()); got <= 0 {
		t.Errorf("fallback seed = %d", got)
	}
	var nilClient *Client
	if nilClient.Enabled() || nilClient.Seed(context.Background()) <= 0 {
		t.Error("nil client should fall back to crypto/rand")
	}
	if NewClient("") != nil {
		t.Error("empty key should give nil client")
	}
}
