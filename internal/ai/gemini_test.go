package ai

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseManifestJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []ManifestEntry
	}{
		{
			name: "object with fences",
			raw:  "```json\n{\"stops\": [{\"title\": \" Ann \", \"address\": \"1 Main St\", \"stop_type\": \"Pickup\", \"package_count\": 2}]}\n```",
			want: []ManifestEntry{{Title: "Ann", Address: "1 Main St", StopType: "pickup", PackageCount: 2}},
		},
		{
			name: "bare array",
			raw:  `[{"address": "2 High St", "order_hint": "LAST"}]`,
			want: []ManifestEntry{{Address: "2 High St", OrderHint: "last"}},
		},
		{
			name: "drops empty entries",
			raw:  `{"stops": [{"notes": "no address"}, {"title": "Depot"}]}`,
			want: []ManifestEntry{{Title: "Depot"}},
		},
		{
			name: "no stops",
			raw:  `{"stops": []}`,
			want: []ManifestEntry{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseManifestJSON(tc.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseManifestJSONInvalid(t *testing.T) {
	if _, err := parseManifestJSON("not json"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBuildManifestPromptDefaults(t *testing.T) {
	p := buildManifestPrompt(ManifestHints{})
	if !strings.Contains(p, "UNKNOWN_REGION") || !strings.Contains(p, "UNKNOWN_TIME") {
		t.Fatalf("expected placeholders in prompt")
	}
	p = buildManifestPrompt(ManifestHints{Region: "GB", CurrentTime: "2024-05-06T09:00:00Z"})
	if !strings.Contains(p, "Region: GB") {
		t.Fatalf("expected region in prompt")
	}
}
