package intent

import (
	"encoding/json"
	"reflect"
	"testing"
)

const jsonTestPrefix = "intent:json_test"

func TestLaunchDescriptor_JSON(t *testing.T) {
	data := `{
		"action": "android.intent.action.VIEW",
		"component": {"package": "com.a", "class": "com.a.Main"},
		"categories": ["android.intent.category.DEFAULT"],
		"extras": [
			{"key": "foo", "type": "string_list", "value": ["a,b", "c"]},
			{"key": "cn", "type": "component", "value": "com.b/.Other"},
			{"key": "n", "type": "long", "value": 42},
			{"key": "p", "type": "parcelable", "value": {"x": 1}}
		],
		"flags": 1
	}`

	var d LaunchDescriptor
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		t.Fatalf("%s - unmarshal: %v", jsonTestPrefix, err)
	}

	want := []string{
		"-a", ActionView,
		"-n", "com.a/com.a.Main",
		"-c", "android.intent.category.DEFAULT",
		"--esal", "foo", `a\,b,c`,
		"--ecn", "cn", "com.b/com.b.Other",
		"--el", "n", "42",
		"-f", "1",
	}
	if got := Encode(&d); !reflect.DeepEqual(got, want) {
		t.Errorf("%s - Encode() = %q, want %q", jsonTestPrefix, got, want)
	}

	if v, ok := d.Extras.Get("p"); !ok || v.Kind() != "parcelable" {
		t.Errorf("%s - unknown type should decode as Unsupported, got %#v", jsonTestPrefix, v)
	}
}

func TestExtra_InvalidValue(t *testing.T) {
	var x Extra
	err := json.Unmarshal([]byte(`{"key":"n","type":"int","value":"nope"}`), &x)
	if err == nil {
		t.Fatalf("%s - expected error for non-numeric int extra", jsonTestPrefix)
	}
}
