package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ModelInfo 模型基本信息
// ModelInfo describes one selectable completion model.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// ErrNoAPIKey reports a missing provider credential. It is detected once at
// gateway construction; every completion call fails with it until the
// credential is configured.
var ErrNoAPIKey = errors.New("provider api key is not configured")

// APIError is a non-success response from the provider. Payload carries the
// provider's raw error body for diagnostics; it is logged, never shown to
// users verbatim.
type APIError struct {
	Status  int
	Payload string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider request failed: status=%d body=%s", e.Status, e.Payload)
}

// excludedModelMarkers flags catalog entries unsuitable for general chat:
// safety/guard models, audio transcription, and vision-only variants.
var excludedModelMarkers = []string{"guard", "whisper", "vision"}

func chatUsable(id string) bool {
	lower := strings.ToLower(id)
	for _, marker := range excludedModelMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}
