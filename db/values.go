package db

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// rawNumber is an exact integer literal that does not fit a float64.
type rawNumber string

func (n rawNumber) MarshalJSON() ([]byte, error) {
	return []byte(n), nil
}

// floater is implemented by DuckDB's DECIMAL values.
type floater interface {
	Float64() float64
}

// jsonValue maps a scanned DuckDB value to its natural JSON representation.
func jsonValue(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v
	case float32:
		return finite(float64(v))
	case float64:
		return finite(v)
	case *big.Int:
		if v == nil {
			return nil
		}
		return rawNumber(v.String())
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case []byte:
		return v
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = jsonValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = jsonValue(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = jsonValue(e)
		}
		return out
	case floater:
		return finite(v.Float64())
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

// finite maps NaN and infinities, which JSON cannot represent, to null.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// stringValue renders any value as text for columns without a native Arrow type.
// normalizeValue rewrites a scanned value whose Go type does not carry the
// column's meaning. UUIDs arrive as 16 raw bytes and become canonical text.
func normalizeValue(databaseType string, v any) any {
	if databaseType != "UUID" {
		return v
	}
	switch v := v.(type) {
	case []byte:
		if id, err := uuid.FromBytes(v); err == nil {
			return id.String()
		}
	case [16]byte:
		return uuid.UUID(v).String()
	case fmt.Stringer:
		return v.String()
	}
	return v
}

func stringValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.MarshalNoEscape(jsonValue(v))
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return int64(v), true
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case *big.Int:
		if v != nil && v.IsInt64() {
			return v.Int64(), true
		}
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch v := v.(type) {
	case uint:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case *big.Int:
		if v != nil && v.IsUint64() {
			return v.Uint64(), true
		}
	}
	if i, ok := toInt64(v); ok && i >= 0 {
		return uint64(i), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case *big.Int:
		if v == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, true
	case floater:
		return v.Float64(), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	if u, ok := toUint64(v); ok {
		return float64(u), true
	}
	return 0, false
}
