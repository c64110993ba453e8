package querysql

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// TimeLayout is how timestamps are bound and stored. The fixed width keeps
// lexical and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// ToParam converts a coerced filter value into a go-sqlite3 bind parameter.
//
//	time.Time      -> UTC string in TimeLayout
//	*apd.Decimal   -> decimal string (NUMERIC affinity converts it back)
//	map / slice    -> JSON text
//	bool, ints, float64, string pass through
func ToParam(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, int, int32:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("cannot bind non-finite float %v", val)
		}
		return val, nil
	case json.Number:
		return val.String(), nil
	case time.Time:
		return val.UTC().Format(TimeLayout), nil
	case *apd.Decimal:
		return val.String(), nil
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode json parameter: %w", err)
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type: %T", v)
	}
}
