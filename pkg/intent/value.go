package intent

import (
	"math"
	"strconv"
	"strings"
)

// Value is a typed extra. The set of implementations is closed; each variant
// knows its own "am" flag.
type Value interface {
	// Kind is the variant name used in the JSON form.
	Kind() string
	encodeExtra(key string) []string
}

type (
	String    string
	Bool      bool
	Int32     int32
	Int64     int64
	Float32   float32
	URI       string
	Component ComponentName

	Int32List   []int32
	Int64List   []int64
	Float32List []float32
	StringList  []string

	Int32Array   []int32
	Int64Array   []int64
	Float32Array []float32
	StringArray  []string
)

// Unsupported stands in for a value the activity manager cannot carry
// (bundles, parcelables). It is never encoded.
type Unsupported struct {
	Type string
}

func (String) Kind() string       { return "string" }
func (Bool) Kind() string         { return "bool" }
func (Int32) Kind() string        { return "int" }
func (Int64) Kind() string        { return "long" }
func (Float32) Kind() string      { return "float" }
func (URI) Kind() string          { return "uri" }
func (Component) Kind() string    { return "component" }
func (Int32List) Kind() string    { return "int_list" }
func (Int64List) Kind() string    { return "long_list" }
func (Float32List) Kind() string  { return "float_list" }
func (StringList) Kind() string   { return "string_list" }
func (Int32Array) Kind() string   { return "int_array" }
func (Int64Array) Kind() string   { return "long_array" }
func (Float32Array) Kind() string { return "float_array" }
func (StringArray) Kind() string  { return "string_array" }
func (u Unsupported) Kind() string {
	if u.Type == "" {
		return "unsupported"
	}
	return u.Type
}

func (v String) encodeExtra(key string) []string  { return []string{"--es", key, string(v)} }
func (v Bool) encodeExtra(key string) []string    { return []string{"--ez", key, strconv.FormatBool(bool(v))} }
func (v Int32) encodeExtra(key string) []string   { return []string{"--ei", key, strconv.FormatInt(int64(v), 10)} }
func (v Int64) encodeExtra(key string) []string   { return []string{"--el", key, strconv.FormatInt(int64(v), 10)} }
func (v Float32) encodeExtra(key string) []string { return []string{"--ef", key, formatFloat(float32(v))} }
func (v URI) encodeExtra(key string) []string     { return []string{"--eu", key, string(v)} }
func (v Component) encodeExtra(key string) []string {
	return []string{"--ecn", key, ComponentName(v).Flatten()}
}

func (v Int32List) encodeExtra(key string) []string   { return joinExtra("--eial", key, ints(v)) }
func (v Int64List) encodeExtra(key string) []string   { return joinExtra("--elal", key, longs(v)) }
func (v Float32List) encodeExtra(key string) []string { return joinExtra("--efal", key, floats(v)) }
func (v StringList) encodeExtra(key string) []string  { return joinExtra("--esal", key, v) }

func (v Int32Array) encodeExtra(key string) []string   { return joinExtra("--eia", key, ints(v)) }
func (v Int64Array) encodeExtra(key string) []string   { return joinExtra("--ela", key, longs(v)) }
func (v Float32Array) encodeExtra(key string) []string { return joinExtra("--efa", key, floats(v)) }
func (v StringArray) encodeExtra(key string) []string  { return joinExtra("--esa", key, v) }

func (Unsupported) encodeExtra(string) []string { return nil }

// joinExtra escapes commas inside elements and joins with ",". Empty
// collections produce no tokens at all.
func joinExtra(flag, key string, elems []string) []string {
	if len(elems) == 0 {
		return nil
	}
	escaped := make([]string, len(elems))
	for i, e := range elems {
		escaped[i] = strings.ReplaceAll(e, ",", `\,`)
	}
	return []string{flag, key, strings.Join(escaped, ",")}
}

func ints(v []int32) []string {
	out := make([]string, len(v))
	for i, n := range v {
		out[i] = strconv.FormatInt(int64(n), 10)
	}
	return out
}

func longs(v []int64) []string {
	out := make([]string, len(v))
	for i, n := range v {
		out[i] = strconv.FormatInt(n, 10)
	}
	return out
}

func floats(v []float32) []string {
	out := make([]string, len(v))
	for i, f := range v {
		out[i] = formatFloat(f)
	}
	return out
}

// formatFloat renders f the way the platform's Float.toString does: plain
// decimal with at least one fractional digit in [1e-3, 1e7), otherwise
// "<mantissa>E<exponent>".
func formatFloat(f float32) string {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}

	if abs := math.Abs(v); abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		return withFraction(strconv.FormatFloat(v, 'f', -1, 32))
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(v, 'e', -1, 32), "e")
	e, _ := strconv.Atoi(exp)
	return withFraction(mantissa) + "E" + strconv.Itoa(e)
}

func withFraction(s string) string {
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}
