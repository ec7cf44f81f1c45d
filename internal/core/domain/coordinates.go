package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// Coordinates is a position relative to the natural diagram surface:
// (0,0) is the top-left corner and (1,1) the bottom-right one. Values are
// stored as produced by the model, including slightly out-of-range ones.
type Coordinates struct {
	X float64
	Y float64
}

// ParseCoordinates accepts a decoded JSON value and requires exactly two
// finite numbers.
func ParseCoordinates(value any) (Coordinates, error) {
	items, ok := value.([]any)
	if !ok {
		return Coordinates{}, fmt.Errorf("coordinates must be an array, got %T", value)
	}
	if len(items) != 2 {
		return Coordinates{}, fmt.Errorf("coordinates must have exactly 2 values, got %d", len(items))
	}
	var out [2]float64
	for i, item := range items {
		n, ok := item.(float64)
		if !ok {
			return Coordinates{}, fmt.Errorf("coordinates[%d] must be a number, got %T", i, item)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Coordinates{}, fmt.Errorf("coordinates[%d] is not finite", i)
		}
		out[i] = n
	}
	return Coordinates{X: out[0], Y: out[1]}, nil
}

func (c Coordinates) InUnitSquare() bool {
	return c.X >= 0 && c.X <= 1 && c.Y >= 0 && c.Y <= 1
}

// ToPixel maps the coordinate onto a surface of the given natural size.
func (c Coordinates) ToPixel(width, height float64) (float64, float64) {
	return c.X * width, c.Y * height
}

func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.X, c.Y})
}

func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode coordinates: %w", err)
	}
	parsed, err := ParseCoordinates(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value stores coordinates as a two-element JSON array, x first.
func (c Coordinates) Value() (driver.Value, error) {
	return c.MarshalJSON()
}

func (c *Coordinates) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return c.UnmarshalJSON(v)
	case string:
		return c.UnmarshalJSON([]byte(v))
	case nil:
		return fmt.Errorf("coordinates column is null")
	default:
		return fmt.Errorf("unsupported coordinates column type %T", src)
	}
}
