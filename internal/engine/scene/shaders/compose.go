package shaders

import (
	"fmt"
	"sort"
	"strings"
)

// Compose returns src with a #define line per entry of defines followed by
// includes, all inserted after the #version directive. Defines are written
// in name order so equal inputs give equal sources. A nil value defines a
// bare name.
func Compose(src string, defines map[string]any, includes ...string) (string, error) {
	head, body, ok := splitVersion(src)
	if !ok {
		return "", fmt.Errorf("shader source has no #version directive")
	}

	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(head)
	for _, name := range names {
		switch v := defines[name].(type) {
		case nil:
			fmt.Fprintf(&b, "#define %s\n", name)
		case float32:
			fmt.Fprintf(&b, "#define %s %s\n", name, glslFloat(float64(v)))
		case float64:
			fmt.Fprintf(&b, "#define %s %s\n", name, glslFloat(v))
		default:
			fmt.Fprintf(&b, "#define %s %v\n", name, v)
		}
	}
	for _, inc := range includes {
		b.WriteString(inc)
		if !strings.HasSuffix(inc, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString(body)
	return b.String(), nil
}

// splitVersion splits src after the line holding #version.
func splitVersion(src string) (head, body string, ok bool) {
	i := strings.Index(src, "#version")
	if i < 0 {
		return "", "", false
	}
	nl := strings.IndexByte(src[i:], '\n')
	if nl < 0 {
		return src + "\n", "", true
	}
	return src[:i+nl+1], src[i+nl+1:], true
}

// glslFloat formats v so GLSL parses it as a float literal.
func glslFloat(v float64) string {
	s := fmt.Sprintf("%g", v)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
