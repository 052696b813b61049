package core

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxRadius is the largest "around" radius in meters the query builder accepts
const MaxRadius = 50000

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return NewError(ErrInvalidInput, fmt.Sprintf("latitude must be between -90 and 90, got %f", lat)).
			WithField("lat").
			WithGuidance("Ensure latitude is in decimal degrees")
	}
	if lon < -180 || lon > 180 {
		return NewError(ErrInvalidInput, fmt.Sprintf("longitude must be between -180 and 180, got %f", lon)).
			WithField("lon").
			WithGuidance("Ensure longitude is in decimal degrees")
	}
	return nil
}

// ValidateRadius checks if a radius is within the valid range
func ValidateRadius(radius, maxRadius float64) error {
	if radius <= 0 {
		return NewError(ErrInvalidInput, fmt.Sprintf("radius must be greater than 0, got %f", radius)).
			WithField("radius").
			WithGuidance("Specify a positive radius value")
	}
	if maxRadius > 0 && radius > maxRadius {
		return NewError(ErrInvalidInput, fmt.Sprintf("radius must be less than or equal to %f, got %f", maxRadius, radius)).
			WithField("radius").
			WithGuidance(fmt.Sprintf("Specify a radius less than %f", maxRadius))
	}
	return nil
}

// Validate checks that the box lies within WGS84 bounds and is not inverted
func (b BoundingBox) Validate() error {
	if err := ValidateCoords(b.MinLat, b.MinLon); err != nil {
		return err
	}
	if err := ValidateCoords(b.MaxLat, b.MaxLon); err != nil {
		return err
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return NewValidationError(ErrInvalidInput, "bounding box minimum exceeds maximum").WithField("bbox")
	}
	return nil
}

// ParseBoundingBox parses "minLat,minLon,maxLat,maxLon", the order Overpass uses.
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, NewValidationError(ErrInvalidInput,
			fmt.Sprintf("bounding box %q must have four comma-separated values", s)).WithField("bbox")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, NewValidationError(ErrInvalidInput,
				fmt.Sprintf("bounding box value %q is not a number", p)).WithField("bbox").WithCause(err)
		}
		v[i] = f
	}

	bbox := BoundingBox{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
	if err := bbox.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return bbox, nil
}

// ParseTagFilter parses "key", "key=value", "key=v1|v2", "!key" or "key!=value".
func ParseTagFilter(s string) (TagFilter, error) {
	s = strings.TrimSpace(s)
	exclude := false

	if rest, ok := strings.CutPrefix(s, "!"); ok {
		s = rest
		exclude = true
	}

	key, value, hasValue := strings.Cut(s, "=")
	if k, ok := strings.CutSuffix(key, "!"); ok && hasValue {
		key = k
		exclude = true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return TagFilter{}, NewValidationError(ErrInvalidInput, fmt.Sprintf("tag filter %q has no key", s)).WithField("tag")
	}

	var values []string
	if hasValue {
		values = strings.Split(value, "|")
	}
	return TagFilter{Key: key, Values: values, Exclude: exclude}, nil
}
