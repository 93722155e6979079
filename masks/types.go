// Package masks generates binary occlusion masks for inpainting samples.
//
// A mask is 1 where pixels are occluded (to be inpainted) and 0 where they are
// kept. Four strategies exist; a Generator draws one of its configured
// strategies uniformly at random for every call.
package masks

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Type tags a mask strategy.
type Type int

const (
	// Center occludes a fixed rectangle in the middle of the image.
	Center Type = iota
	// RandomRegular occludes a few random axis-aligned rectangles.
	RandomRegular
	// RandomIrregular occludes random free-form brush strokes.
	RandomIrregular
	// ExternalFile occludes the black pixels of a mask image from a pool.
	ExternalFile
)

var typeNames = [...]string{
	Center:          "center",
	RandomRegular:   "regular",
	RandomIrregular: "irregular",
	ExternalFile:    "external",
}

var typeAliases = map[string]Type{
	"center":           Center,
	"regular":          RandomRegular,
	"random-regular":   RandomRegular,
	"irregular":        RandomIrregular,
	"random-irregular": RandomIrregular,
	"external":         ExternalFile,
	"external-file":    ExternalFile,
	"file":             ExternalFile,
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// Valid reports whether t is one of the four strategies.
func (t Type) Valid() bool {
	return t >= Center && t <= ExternalFile
}

// ParseType accepts a tag ("center", "regular", "irregular", "external" and
// their long forms) or a legacy integer code 0-3.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := typeAliases[s]; ok {
		return t, nil
	}
	if n, err := strconv.Atoi(s); err == nil && Type(n).Valid() {
		return Type(n), nil
	}
	return 0, errors.Errorf("unknown mask type %q", s)
}

// ParseTypes parses a comma separated list of mask types.
func ParseTypes(s string) ([]Type, error) {
	var out []Type
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// FormatTypes is the inverse of ParseTypes.
func FormatTypes(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// MarshalJSON writes the tag.
func (t Type) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.Errorf("invalid mask type %d", int(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON reads a tag or a legacy integer code.
func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.Errorf("mask type must be a string or an integer, got %s", b)
		}
		s = strconv.Itoa(n)
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
