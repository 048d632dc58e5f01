package format

import "strconv"

// OptionalFloat renders f without trailing zeros, or placeholder when f is nil.
func OptionalFloat(f *float64, placeholder string) string {
	if f == nil {
		return placeholder
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
