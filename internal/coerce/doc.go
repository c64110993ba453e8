// Package coerce converts untyped filter values into the representation
// required by an attribute's declared type.
//
// Inputs arrive as strings (query parameters), JSON-decoded values or YAML
// scalars. Outputs are:
//
//	integer              int64
//	biginteger           string of decimal digits
//	float                float64
//	decimal              *apd.Decimal
//	boolean              bool
//	date                 string, 2006-01-02
//	time                 string, 15:04:05.000
//	datetime, timestamp  time.Time in UTC
//	json                 decoded value (numbers as json.Number)
//	everything else      unchanged
//
// The null operator always coerces to boolean. Every conversion is idempotent:
// feeding an output back in returns it unchanged, so a compiled filter can be
// compiled again without drift.
package coerce
