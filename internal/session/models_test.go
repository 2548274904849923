package session

import (
	"context"
	"testing"

	"chatd/internal/provider"
)

type fakeLister struct {
	models []provider.ModelInfo
}

func (f *fakeLister) ListModels(ctx context.Context) []provider.ModelInfo {
	return f.models
}

func TestResolveModels_PrefersGatewayCatalog(t *testing.T) {
	gw := &fakeLister{models: []provider.ModelInfo{
		{ID: "llama-3.3-70b-versatile", OwnedBy: "groq"},
	}}

	models := ResolveModels(context.Background(), gw, []string{"fallback-model"})
	if len(models) != 1 || models[0].ID != "llama-3.3-70b-versatile" {
		t.Fatalf("models=%+v, want gateway catalog", models)
	}
}

func TestResolveModels_FallsBackWhenEmpty(t *testing.T) {
	gw := &fakeLister{}

	models := ResolveModels(context.Background(), gw, []string{
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
	})
	if len(models) != 2 {
		t.Fatalf("models=%d, want 2", len(models))
	}
	if models[0].ID != "llama-3.3-70b-versatile" || models[0].OwnedBy != "groq" {
		t.Fatalf("models[0]=%+v, want fallback entry", models[0])
	}
}
