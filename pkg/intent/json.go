package intent

import (
	"encoding/json"
	"fmt"
)

type extraJSON struct {
	Key   string          `json:"key"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the extra as {"key","type","value"}.
func (x Extra) MarshalJSON() ([]byte, error) {
	if x.Value == nil {
		return json.Marshal(extraJSON{Key: x.Key, Type: "null"})
	}
	if _, ok := x.Value.(Unsupported); ok {
		return json.Marshal(extraJSON{Key: x.Key, Type: x.Value.Kind()})
	}
	raw, err := json.Marshal(x.Value)
	if err != nil {
		return nil, fmt.Errorf("intent:json - marshal extra %q: %w", x.Key, err)
	}
	return json.Marshal(extraJSON{Key: x.Key, Type: x.Value.Kind(), Value: raw})
}

// UnmarshalJSON decodes the {"key","type","value"} form. Unknown types decode
// to Unsupported so that a descriptor written by a newer client still loads.
func (x *Extra) UnmarshalJSON(data []byte) error {
	var in extraJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	v, err := decodeValue(in.Type, in.Value)
	if err != nil {
		return fmt.Errorf("intent:json - extra %q: %w", in.Key, err)
	}
	x.Key = in.Key
	x.Value = v
	return nil
}

func decodeValue(kind string, raw json.RawMessage) (Value, error) {
	switch kind {
	case "string":
		return decodeAs[String](raw)
	case "bool":
		return decodeAs[Bool](raw)
	case "int":
		return decodeAs[Int32](raw)
	case "long":
		return decodeAs[Int64](raw)
	case "float":
		return decodeAs[Float32](raw)
	case "uri":
		return decodeAs[URI](raw)
	case "component":
		var c ComponentName
		if err := json.Unmarshal(raw, &c); err != nil {
			var s string
			if json.Unmarshal(raw, &s) != nil {
				return nil, err
			}
			if c, err = ParseComponentName(s); err != nil {
				return nil, err
			}
		}
		return Component(c), nil
	case "int_list":
		return decodeAs[Int32List](raw)
	case "long_list":
		return decodeAs[Int64List](raw)
	case "float_list":
		return decodeAs[Float32List](raw)
	case "string_list":
		return decodeAs[StringList](raw)
	case "int_array":
		return decodeAs[Int32Array](raw)
	case "long_array":
		return decodeAs[Int64Array](raw)
	case "float_array":
		return decodeAs[Float32Array](raw)
	case "string_array":
		return decodeAs[StringArray](raw)
	default:
		return Unsupported{Type: kind}, nil
	}
}

func decodeAs[T Value](raw json.RawMessage) (Value, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
