package intent

import "strconv"

// Encode turns d into the "am start" argument list. It is pure and total:
// unsupported extras and empty collections are skipped, never reported.
//
// Token order: -a, -n, -d, -c (each), -t, extras (insertion order), -f.
func Encode(d *LaunchDescriptor) []string {
	if d == nil {
		return []string{"-f", "0"}
	}

	args := make([]string, 0, 8+2*len(d.Categories)+3*len(d.Extras))
	if d.Action != "" {
		args = append(args, "-a", d.Action)
	}
	if d.Component != nil {
		args = append(args, "-n", d.Component.Flatten())
	}
	if d.Data != "" {
		args = append(args, "-d", d.Data)
	}
	for _, cat := range d.Categories {
		args = append(args, "-c", cat)
	}
	if d.MimeType != "" {
		args = append(args, "-t", d.MimeType)
	}
	for _, x := range d.Extras {
		if x.Value == nil {
			continue
		}
		args = append(args, x.Value.encodeExtra(x.Key)...)
	}
	args = append(args, "-f", strconv.FormatInt(int64(d.Flags), 10))
	return args
}
