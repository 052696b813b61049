package core

import (
	"strings"
	"testing"
)

func TestRenderPreset(t *testing.T) {
	bbox := BoundingBox{MinLat: 47.3, MinLon: 8.5, MaxLat: 47.4, MaxLon: 8.6}

	q, err := RenderPreset("amenity", "cafe", bbox)
	if err != nil {
		t.Fatalf("RenderPreset: %v", err)
	}
	if !strings.HasPrefix(q, "[out:json]") {
		t.Errorf("Query should request JSON output: %s", q)
	}
	if !strings.Contains(q, `node["amenity"="cafe"](47.300000,8.500000,47.400000,8.600000);`) {
		t.Errorf("Query lacks the node filter: %s", q)
	}
	if !strings.Contains(q, "out meta;") {
		t.Errorf("Query should ask for metadata: %s", q)
	}
	if strings.Contains(q, "{{") {
		t.Errorf("Query has unrendered placeholders: %s", q)
	}
}

func TestRenderPresetErrors(t *testing.T) {
	bbox := BoundingBox{MinLat: 47.3, MinLon: 8.5, MaxLat: 47.4, MaxLon: 8.6}

	if _, err := RenderPreset("museum", "", bbox); CodeOf(err) != ErrInvalidInput {
		t.Errorf("Expected INVALID_INPUT for unknown preset, got %v", err)
	}
	if _, err := RenderPreset("shop", `x"];out;`, bbox); CodeOf(err) != ErrInvalidInput {
		t.Errorf("Expected INVALID_INPUT for quoted value, got %v", err)
	}
	inverted := BoundingBox{MinLat: 48, MinLon: 8.5, MaxLat: 47, MaxLon: 8.6}
	if _, err := RenderPreset("building", "", inverted); CodeOf(err) != ErrInvalidInput {
		t.Errorf("Expected INVALID_INPUT for inverted bbox, got %v", err)
	}
}

func TestPresetNames(t *testing.T) {
	names := PresetNames()
	if len(names) != len(StandardQueries) {
		t.Fatalf("Expected %d presets, got %d", len(StandardQueries), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Names not sorted: %v", names)
		}
	}
}
