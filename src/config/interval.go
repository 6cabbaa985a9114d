package config

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"kukan/src/interval"
)

const (
	FieldTypeInterval = "interval"
	FieldTypeText     = "text"
)

// BoundsType selects how interval bounds are read from documents
type BoundsType string

const (
	// BoundsInteger reads bounds as signed 64-bit integers
	BoundsInteger BoundsType = "integer"
	// BoundsDatetime reads bounds as dates, indexed as unix seconds
	BoundsDatetime BoundsType = "datetime"
)

// IntervalFieldConfig represents an interval field configuration
type IntervalFieldConfig struct {
	PrecisionStep uint8
	Stored        bool
	Indexed       bool
	Bounds        BoundsType
	Formats       DateTimeFormats
}

// newIntervalFieldConfig validates the interval options of fc and writes the
// defaults back so the catalog keeps the effective precision step
func newIntervalFieldConfig(fc *FieldConfig) (*IntervalFieldConfig, error) {
	if fc.PrecisionStep == 0 {
		fc.PrecisionStep = interval.DefaultPrecisionStep
	}
	if err := interval.ValidatePrecisionStep(fc.PrecisionStep); err != nil {
		return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidConfig, fc.Name, err)
	}

	if fc.Bounds == "" {
		fc.Bounds = BoundsInteger
	}
	switch fc.Bounds {
	case BoundsInteger:
	case BoundsDatetime:
		if len(fc.Formats) == 0 {
			fc.Formats = DefaultDateTimeFormats()
		}
		if err := fc.Formats.Validate(); err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidConfig, fc.Name, err)
		}
	default:
		return nil, fmt.Errorf("%w: field %s: unknown bounds %q", ErrInvalidConfig, fc.Name, fc.Bounds)
	}

	return &IntervalFieldConfig{
		PrecisionStep: fc.PrecisionStep,
		Stored:        *fc.Stored,
		Indexed:       *fc.Indexed,
		Bounds:        fc.Bounds,
		Formats:       fc.Formats,
	}, nil
}

// IsIndexed implements FieldType interface
func (c IntervalFieldConfig) IsIndexed() bool {
	return c.Indexed
}

// IsStored implements FieldType interface
func (c IntervalFieldConfig) IsStored() bool {
	return c.Stored
}

// ParseBound reads one interval bound from a decoded JSON value
func (c IntervalFieldConfig) ParseBound(value interface{}) (int64, error) {
	if c.Bounds == BoundsDatetime {
		if s, ok := value.(string); ok {
			t, err := c.Formats.TryParse(s)
			if err != nil {
				return 0, err
			}
			return t.Unix(), nil
		}
		n, err := parseInteger(value)
		if err != nil {
			return 0, err
		}
		t, err := ParseTimestamp(n)
		if err != nil {
			return 0, err
		}
		return t.Unix(), nil
	}
	return parseInteger(value)
}

// parseInteger accepts JSON numbers (decoded with UseNumber or as float64)
// and decimal strings
func parseInteger(value interface{}) (int64, error) {
	switch v := value.(type) {
	case json.Number:
		return strconv.ParseInt(v.String(), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is not a 64-bit integer", v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}
