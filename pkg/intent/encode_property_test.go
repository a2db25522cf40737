package intent

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Encode is deterministic", prop.ForAll(
		func(action string, keys []string, values []string, flags int32) bool {
			d := &LaunchDescriptor{Action: action, Flags: flags}
			for i := 0; i < len(keys) && i < len(values); i++ {
				d.Extras.Put(keys[i], String(values[i]))
			}
			return reflect.DeepEqual(Encode(d), Encode(d))
		},
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AnyString()),
		gen.Int32(),
	))

	properties.Property("Encode always ends with -f", prop.ForAll(
		func(action string, flags int32) bool {
			got := Encode(&LaunchDescriptor{Action: action, Flags: flags})
			return len(got) >= 2 && got[len(got)-2] == "-f"
		},
		gen.AnyString(),
		gen.Int32(),
	))

	properties.Property("string lists split back into their elements", prop.ForAll(
		func(elems []string) bool {
			if len(elems) == 0 {
				return true
			}
			got := Encode(&LaunchDescriptor{Extras: Extras{{Key: "k", Value: StringList(elems)}}})
			if len(got) != 5 || got[0] != "--esal" {
				return false
			}
			return reflect.DeepEqual(splitEscaped(got[2]), elems)
		},
		gen.SliceOf(gen.OneConstOf("a", "b,c", ",", "", "x,,y"), reflect.TypeOf("")),
	))

	properties.TestingRun(t)
}

// splitEscaped mirrors how the activity manager splits a list extra.
func splitEscaped(s string) []string {
	var out []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == ',':
			cur.WriteByte(',')
			i++
		case s[i] == ',':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(out, cur.String())
}
