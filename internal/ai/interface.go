package ai

import (
	"context"
)

// ManifestParser turns free-form delivery manifests (pasted text, OCR output) into stops.
// This interface allows for swapping different AI providers in the future.
type ManifestParser interface {
	ParseManifest(ctx context.Context, text string, hints ManifestHints) ([]ManifestEntry, error)
}
