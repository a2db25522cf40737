// Package intent describes launch requests and encodes them into the
// argument list understood by the activity manager ("am start").
package intent

import (
	"fmt"
	"strings"
)

// ComponentName identifies an activity by package and fully qualified class.
type ComponentName struct {
	Package string `json:"package"`
	Class   string `json:"class"`
}

// Flatten returns "package/class", the form accepted by "am start -n".
func (c ComponentName) Flatten() string {
	return c.Package + "/" + c.Class
}

// ParseComponentName parses "package/class". A class starting with "." is
// relative to the package.
func ParseComponentName(s string) (ComponentName, error) {
	slash := strings.Index(s, "/")
	if slash <= 0 || slash == len(s)-1 {
		return ComponentName{}, fmt.Errorf("intent:types - invalid component name: %q", s)
	}
	pkg := s[:slash]
	cls := s[slash+1:]
	if strings.HasPrefix(cls, ".") {
		cls = pkg + cls
	}
	return ComponentName{Package: pkg, Class: cls}, nil
}

// Extra is a single keyed value attached to a launch descriptor.
type Extra struct {
	Key   string
	Value Value
}

// Extras is an ordered key/value payload. Encoding follows insertion order.
type Extras []Extra

// Put sets key to v. An existing key keeps its position.
func (e *Extras) Put(key string, v Value) {
	for i := range *e {
		if (*e)[i].Key == key {
			(*e)[i].Value = v
			return
		}
	}
	*e = append(*e, Extra{Key: key, Value: v})
}

// Get returns the value stored under key.
func (e Extras) Get(key string) (Value, bool) {
	for _, x := range e {
		if x.Key == key {
			return x.Value, true
		}
	}
	return nil, false
}

// LaunchDescriptor is a structured description of an activity launch handed to
// the privileged helper. Empty strings mean the field is absent.
type LaunchDescriptor struct {
	Action     string         `json:"action,omitempty"`
	Component  *ComponentName `json:"component,omitempty"`
	Data       string         `json:"data,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	MimeType   string         `json:"type,omitempty"`
	Extras     Extras         `json:"extras,omitempty"`
	Flags      int32          `json:"flags"`
}

// AddCategory appends category unless it is already present.
func (d *LaunchDescriptor) AddCategory(category string) {
	for _, c := range d.Categories {
		if c == category {
			return
		}
	}
	d.Categories = append(d.Categories, category)
}

// Common actions, categories and flags.
const (
	ActionMain       = "android.intent.action.MAIN"
	ActionView       = "android.intent.action.VIEW"
	CategoryLauncher = "android.intent.category.LAUNCHER"

	FlagActivityNewTask   int32 = 0x10000000
	FlagActivityClearTask int32 = 0x00008000
)

// LaunchIntentFor returns the descriptor used to start pkg's launcher activity.
func LaunchIntentFor(component ComponentName) *LaunchDescriptor {
	d := &LaunchDescriptor{
		Action:    ActionMain,
		Component: &component,
		Flags:     FlagActivityNewTask,
	}
	d.AddCategory(CategoryLauncher)
	return d
}
