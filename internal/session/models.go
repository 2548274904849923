package session

import (
	"context"

	"chatd/internal/provider"
)

// fallbackOwner is stamped on catalog entries synthesized from the static
// fallback list.
const fallbackOwner = "groq"

// ModelLister is the slice of the gateway the model catalog needs.
type ModelLister interface {
	ListModels(ctx context.Context) []provider.ModelInfo
}

// ResolveModels returns the live provider catalog, or entries built from the
// static fallback ids when the catalog comes back empty.
func ResolveModels(ctx context.Context, gw ModelLister, fallback []string) []provider.ModelInfo {
	if models := gw.ListModels(ctx); len(models) > 0 {
		return models
	}
	out := make([]provider.ModelInfo, 0, len(fallback))
	for _, id := range fallback {
		out = append(out, provider.ModelInfo{ID: id, OwnedBy: fallbackOwner})
	}
	return out
}
