package ai

// ManifestEntry is one stop extracted from a manifest.
type ManifestEntry struct {
	// Title is a recipient or business name; may be empty.
	Title string `json:"title"`

	// Address is the full street address as written in the manifest.
	Address string `json:"address"`

	// StopType is "delivery" or "pickup". Empty means delivery.
	StopType string `json:"stop_type,omitempty"`

	// OrderHint is "first", "last" or "auto" when the manifest states a sequencing constraint.
	OrderHint string `json:"order_hint,omitempty"`

	PackageCount int    `json:"package_count,omitempty"`
	ArrivalFrom  string `json:"arrival_from,omitempty"`
	ArrivalTo    string `json:"arrival_to,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// ManifestHints carries request context injected into the prompt.
type ManifestHints struct {
	Region      string
	CurrentTime string
}

type manifestResponse struct {
	Stops []ManifestEntry `json:"stops"`
}
