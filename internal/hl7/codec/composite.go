package codec

import "strings"

// EncodeComposite joins components with the component separator after
// dropping blank components from the tail. Interior blanks are kept so that
// component positions survive.
func EncodeComposite(components ...string) string {
	end := len(components)
	for end > 0 && isBlank(components[end-1]) {
		end--
	}
	return strings.Join(components[:end], ComponentSeparator)
}

// EncodeFixed joins exactly arity components without trimming. Missing
// components are rendered blank and extra ones are dropped.
func EncodeFixed(arity int, components ...string) string {
	out := make([]string, arity)
	copy(out, components)
	return strings.Join(out, ComponentSeparator)
}

// DecodeComposite is the inverse split of EncodeComposite. Nothing is trimmed.
func DecodeComposite(text string) []string {
	return SplitComponents(text)
}

// ComponentAt returns the component at index, or "" when the composite is
// shorter than that.
func ComponentAt(components []string, index int) string {
	v, _ := FieldAt(components, index)
	return v
}

// IsBlank reports whether every component is blank.
func IsBlank(components ...string) bool {
	for _, c := range components {
		if !isBlank(c) {
			return false
		}
	}
	return true
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
