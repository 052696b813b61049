package core

import (
	"fmt"
	"strings"
)

// BoundingBox is a south/west/north/east rectangle in degrees
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// LocationRadius represents a center point with a radius in meters
type LocationRadius struct {
	Lat    float64
	Lon    float64
	Radius float64
}

// TagFilter represents a tag filter for Overpass queries
type TagFilter struct {
	Key     string
	Values  []string
	Exclude bool
}

// ElementFilter represents a filter with tags for a specific element type
type ElementFilter struct {
	ElementType string // "node", "way", "relation"
	Tags        []TagFilter
	IDs         []int64
	BBox        *BoundingBox
	Around      *LocationRadius
}

// OverpassBuilder provides a fluent interface for building Overpass queries
// whose JSON output carries the metadata the element decoder reads.
type OverpassBuilder struct {
	timeout        int
	verbosity      string
	recurseDown    bool
	bbox           *BoundingBox
	center         *LocationRadius
	globalTags     []TagFilter
	elementFilters []ElementFilter
}

// NewOverpassBuilder creates a new builder with default settings
func NewOverpassBuilder() *OverpassBuilder {
	return &OverpassBuilder{
		timeout:   25,
		verbosity: "meta",
	}
}

// WithTimeout sets the query timeout in seconds
func (b *OverpassBuilder) WithTimeout(seconds int) *OverpassBuilder {
	b.timeout = seconds
	return b
}

// WithVerbosity sets the "out" verbosity: ids, skel, body, tags, meta
func (b *OverpassBuilder) WithVerbosity(verbosity string) *OverpassBuilder {
	b.verbosity = verbosity
	return b
}

// WithRecurseDown also outputs the nodes of matched ways and the members of
// matched relations.
func (b *OverpassBuilder) WithRecurseDown() *OverpassBuilder {
	b.recurseDown = true
	return b
}

// WithBoundingBox sets a bounding box filter
func (b *OverpassBuilder) WithBoundingBox(minLat, minLon, maxLat, maxLon float64) *OverpassBuilder {
	b.bbox = &BoundingBox{
		MinLat: minLat,
		MinLon: minLon,
		MaxLat: maxLat,
		MaxLon: maxLon,
	}
	return b
}

// WithCenter sets a center point and radius
func (b *OverpassBuilder) WithCenter(lat, lon, radius float64) *OverpassBuilder {
	b.center = &LocationRadius{
		Lat:    lat,
		Lon:    lon,
		Radius: radius,
	}
	return b
}

// WithTag adds a global tag filter
func (b *OverpassBuilder) WithTag(key string, values ...string) *OverpassBuilder {
	b.globalTags = append(b.globalTags, Tag(key, values...))
	return b
}

// WithExcludeTag adds a global exclude tag filter
func (b *OverpassBuilder) WithExcludeTag(key string, values ...string) *OverpassBuilder {
	b.globalTags = append(b.globalTags, NotTag(key, values...))
	return b
}

// WithTagFilter adds a parsed global tag filter
func (b *OverpassBuilder) WithTagFilter(filter TagFilter) *OverpassBuilder {
	b.globalTags = append(b.globalTags, filter)
	return b
}

// WithNode adds a node filter
func (b *OverpassBuilder) WithNode(tags ...TagFilter) *OverpassBuilder {
	return b.withElement("node", tags)
}

// WithWay adds a way filter
func (b *OverpassBuilder) WithWay(tags ...TagFilter) *OverpassBuilder {
	return b.withElement("way", tags)
}

// WithRelation adds a relation filter
func (b *OverpassBuilder) WithRelation(tags ...TagFilter) *OverpassBuilder {
	return b.withElement("relation", tags)
}

// WithIDs selects elements of one type by id
func (b *OverpassBuilder) WithIDs(elementType string, ids ...int64) *OverpassBuilder {
	b.elementFilters = append(b.elementFilters, ElementFilter{
		ElementType: elementType,
		IDs:         ids,
	})
	return b
}

func (b *OverpassBuilder) withElement(elementType string, tags []TagFilter) *OverpassBuilder {
	b.elementFilters = append(b.elementFilters, ElementFilter{
		ElementType: elementType,
		Tags:        tags,
		BBox:        b.bbox,
		Around:      b.center,
	})
	return b
}

// Tag creates a TagFilter for a key with optional values
func Tag(key string, values ...string) TagFilter {
	return TagFilter{
		Key:    key,
		Values: values,
	}
}

// NotTag creates an excluding TagFilter
func NotTag(key string, values ...string) TagFilter {
	return TagFilter{
		Key:     key,
		Values:  values,
		Exclude: true,
	}
}

// Validate checks the area filters and that at least one element filter or
// global tag is set.
func (b *OverpassBuilder) Validate() error {
	if b.timeout <= 0 {
		return NewValidationError(ErrInvalidInput, fmt.Sprintf("timeout must be positive, got %d", b.timeout))
	}
	if b.bbox != nil {
		if err := b.bbox.Validate(); err != nil {
			return err
		}
	}
	if b.center != nil {
		if err := ValidateCoords(b.center.Lat, b.center.Lon); err != nil {
			return err
		}
		if err := ValidateRadius(b.center.Radius, MaxRadius); err != nil {
			return err
		}
	}
	if len(b.elementFilters) == 0 && len(b.globalTags) == 0 {
		return NewValidationError(ErrInvalidInput, "query selects nothing: add an element filter or a tag")
	}
	return nil
}

// Build generates the Overpass query string
func (b *OverpassBuilder) Build() string {
	var query strings.Builder

	fmt.Fprintf(&query, "[out:json][timeout:%d];", b.timeout)
	query.WriteString("(")

	for _, filter := range b.elementFilters {
		query.WriteString(b.buildElementFilter(filter))
	}

	// Without explicit element filters, global tags apply to all three types
	if len(b.elementFilters) == 0 && len(b.globalTags) > 0 {
		for _, elementType := range []string{"node", "way", "relation"} {
			query.WriteString(b.buildElementFilter(ElementFilter{
				ElementType: elementType,
				Tags:        b.globalTags,
				BBox:        b.bbox,
				Around:      b.center,
			}))
		}
	}

	if b.recurseDown {
		query.WriteString(");(._;>;);")
	} else {
		query.WriteString(");")
	}
	fmt.Fprintf(&query, "out %s;", b.verbosity)

	return query.String()
}

// buildElementFilter generates the query part for a specific element filter
func (b *OverpassBuilder) buildElementFilter(filter ElementFilter) string {
	var elementQuery strings.Builder

	elementQuery.WriteString(filter.ElementType)

	if len(filter.IDs) > 0 {
		ids := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			ids[i] = fmt.Sprintf("%d", id)
		}
		fmt.Fprintf(&elementQuery, "(id:%s);", strings.Join(ids, ","))
		return elementQuery.String()
	}

	if filter.Around != nil {
		fmt.Fprintf(&elementQuery, "(around:%.1f,%.6f,%.6f)",
			filter.Around.Radius, filter.Around.Lat, filter.Around.Lon)
	} else if filter.BBox != nil {
		fmt.Fprintf(&elementQuery, "(%.6f,%.6f,%.6f,%.6f)",
			filter.BBox.MinLat, filter.BBox.MinLon, filter.BBox.MaxLat, filter.BBox.MaxLon)
	}

	tagFilters := filter.Tags
	if len(tagFilters) == 0 {
		tagFilters = b.globalTags
	}

	for _, tag := range tagFilters {
		elementQuery.WriteString(buildTagFilter(tag))
	}

	elementQuery.WriteString(";")
	return elementQuery.String()
}

// buildTagFilter generates the query part for a tag filter
func buildTagFilter(filter TagFilter) string {
	// No values, or "*", only checks for the existence of the tag
	if len(filter.Values) == 0 || (len(filter.Values) == 1 && filter.Values[0] == "*") {
		if filter.Exclude {
			return fmt.Sprintf("[!%q]", filter.Key)
		}
		return fmt.Sprintf("[%q]", filter.Key)
	}

	if len(filter.Values) == 1 {
		if filter.Exclude {
			return fmt.Sprintf("[%q!=%q]", filter.Key, filter.Values[0])
		}
		return fmt.Sprintf("[%q=%q]", filter.Key, filter.Values[0])
	}

	values := strings.Join(filter.Values, "|")
	if filter.Exclude {
		return fmt.Sprintf("[%q!~\"^(%s)$\"]", filter.Key, values)
	}
	return fmt.Sprintf("[%q~\"^(%s)$\"]", filter.Key, values)
}
