package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatd/internal/chat"
	"chatd/internal/config"
)

func testConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:   baseURL,
		Model:     "llama-3.3-70b-versatile",
		APIKey:    "test-key",
		TimeoutMS: 5000,
	}
}

func modelsHandler(ids ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type entry struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			OwnedBy string `json:"owned_by"`
		}
		entries := make([]entry, 0, len(ids))
		for _, id := range ids {
			entries = append(entries, entry{ID: id, Object: "model", OwnedBy: "groq"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   entries,
		})
	}
}

func completionHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "llama-3.3-70b-versatile",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		})
	}
}

func TestListModels_FiltersUnusableEntries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models", modelsHandler(
		"llama-guard-3-8b",
		"whisper-large-v3",
		"llama-3.2-11b-vision-preview",
		"llama-3.3-70b-versatile",
	))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := New(testConfig(srv.URL))
	models := gw.ListModels(context.Background())
	if len(models) != 1 {
		t.Fatalf("models=%d, want 1 after filtering: %+v", len(models), models)
	}
	if models[0].ID != "llama-3.3-70b-versatile" || models[0].OwnedBy != "groq" {
		t.Fatalf("models[0]=%+v", models[0])
	}
}

func TestListModels_FailureReturnsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := New(testConfig(srv.URL))
	if models := gw.ListModels(context.Background()); len(models) != 0 {
		t.Fatalf("models=%+v, want empty on failure", models)
	}
}

func TestComplete_ReturnsAssistantTurn(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", completionHandler("the answer"))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := New(testConfig(srv.URL))
	msg, err := gw.Complete(context.Background(), []chat.Message{
		{Role: chat.RoleUser, Content: "question"},
	}, "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if msg.Role != chat.RoleAssistant || msg.Content != "the answer" {
		t.Fatalf("msg=%+v", msg)
	}
}

func TestCreateCompletion_DefaultsModel(t *testing.T) {
	var gotModel string
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		completionHandler("ok")(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := New(testConfig(srv.URL))
	if _, err := gw.CreateCompletion(context.Background(), []chat.Message{{Role: "user", Content: "hi"}}, ""); err != nil {
		t.Fatalf("CreateCompletion: %v", err)
	}
	if gotModel != "llama-3.3-70b-versatile" {
		t.Fatalf("model=%q, want configured default", gotModel)
	}
}

func TestCreateCompletion_APIErrorCarriesStatusAndPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"requests"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := New(testConfig(srv.URL))
	_, err := gw.CreateCompletion(context.Background(), []chat.Message{{Role: "user", Content: "hi"}}, "")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("Status=%d, want 429", apiErr.Status)
	}
	if apiErr.Payload != "rate limit exceeded" {
		t.Fatalf("Payload=%q", apiErr.Payload)
	}
}

func TestCreateCompletion_NoChoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"choices": []interface{}{},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := New(testConfig(srv.URL))
	_, err := gw.CreateCompletion(context.Background(), []chat.Message{{Role: "user", Content: "hi"}}, "")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("Status=%d, want 502", apiErr.Status)
	}
}

func TestCreateCompletion_MissingCredential(t *testing.T) {
	requested := false
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		requested = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = "   "
	gw := New(cfg)

	_, err := gw.CreateCompletion(context.Background(), []chat.Message{{Role: "user", Content: "hi"}}, "")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err=%v, want ErrNoAPIKey", err)
	}
	if requested {
		t.Fatal("request reached the provider without a credential")
	}
}

func TestChatUsable(t *testing.T) {
	cases := map[string]bool{
		"llama-3.3-70b-versatile":      true,
		"llama-guard-3-8b":             false,
		"whisper-large-v3-turbo":       false,
		"llama-3.2-90b-vision-preview": false,
		"Llama-Guard-4":                false,
		"gemma2-9b-it":                 true,
	}
	for id, want := range cases {
		if got := chatUsable(id); got != want {
			t.Fatalf("chatUsable(%q)=%v, want %v", id, got, want)
		}
	}
}
