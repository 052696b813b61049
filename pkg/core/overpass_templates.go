package core

import (
	"fmt"
	"slices"
	"strings"
	"text/template"
)

// StandardQueries contains common Overpass API query templates. Every
// template asks for metadata so decoded elements carry version, changeset,
// timestamp and uid.
var StandardQueries = map[string]string{
	"amenity": `
		[out:json][timeout:25];
		(
			node["amenity"="{{.Value}}"]({{.BBox}});
			way["amenity"="{{.Value}}"]({{.BBox}});
			relation["amenity"="{{.Value}}"]({{.BBox}});
		);
		out meta;
		>;
		out meta qt;
	`,
	"building": `
		[out:json][timeout:25];
		(
			way["building"]({{.BBox}});
			relation["building"]({{.BBox}});
		);
		out meta;
		>;
		out meta qt;
	`,
	"highway": `
		[out:json][timeout:25];
		(
			way["highway"]({{.BBox}});
			relation["highway"]({{.BBox}});
		);
		out meta;
		>;
		out meta qt;
	`,
	"leisure": `
		[out:json][timeout:25];
		(
			node["leisure"="{{.Value}}"]({{.BBox}});
			way["leisure"="{{.Value}}"]({{.BBox}});
			relation["leisure"="{{.Value}}"]({{.BBox}});
		);
		out meta;
		>;
		out meta qt;
	`,
	"shop": `
		[out:json][timeout:25];
		(
			node["shop"="{{.Value}}"]({{.BBox}});
			way["shop"="{{.Value}}"]({{.BBox}});
			relation["shop"="{{.Value}}"]({{.BBox}});
		);
		out meta;
		>;
		out meta qt;
	`,
	"tourism": `
		[out:json][timeout:25];
		(
			node["tourism"="{{.Value}}"]({{.BBox}});
			way["tourism"="{{.Value}}"]({{.BBox}});
			relation["tourism"="{{.Value}}"]({{.BBox}});
		);
		out meta;
		>;
		out meta qt;
	`,
}

var presetTemplates = func() map[string]*template.Template {
	m := make(map[string]*template.Template, len(StandardQueries))
	for name, text := range StandardQueries {
		m[name] = template.Must(template.New(name).Parse(text))
	}
	return m
}()

// PresetNames returns the names of the standard queries in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(StandardQueries))
	for name := range StandardQueries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RenderPreset fills the named standard query for bbox. value is the tag
// value for presets that match one, such as "cafe" for "amenity".
func RenderPreset(name, value string, bbox BoundingBox) (string, error) {
	tmpl, ok := presetTemplates[name]
	if !ok {
		return "", NewValidationError(ErrInvalidInput,
			fmt.Sprintf("unknown preset %q (want one of %s)", name, strings.Join(PresetNames(), ", "))).WithField("preset")
	}
	if err := bbox.Validate(); err != nil {
		return "", err
	}
	if strings.ContainsAny(value, `"\`) {
		return "", NewValidationError(ErrInvalidInput, fmt.Sprintf("preset value %q contains quotes", value)).WithField("preset")
	}

	var b strings.Builder
	err := tmpl.Execute(&b, struct {
		Value string
		BBox  string
	}{
		Value: value,
		BBox:  fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", bbox.MinLat, bbox.MinLon, bbox.MaxLat, bbox.MaxLon),
	})
	if err != nil {
		return "", NewError(ErrInternalError, "rendering preset").WithCause(err)
	}
	return strings.TrimSpace(b.String()), nil
}
