package recap

import (
	"strings"
)

// segmentKind distinguishes literal segments from placeholders.
type segmentKind uint8

const (
	segLiteral segmentKind = iota
	segParam               // {name} or {name:str}: one non-empty segment
	segPath                // {name:path}: all remaining segments, possibly none
)

type segment struct {
	kind segmentKind
	text string // literal text, or placeholder name
}

// Template is a parsed URL template such as "s3://{bucket}/{path:path}".
//
// The remainder after "scheme://" is split on "/". Each segment is literal
// text or a whole-segment placeholder. A template without "://" is bare and
// only matches bare paths. Templates are immutable.
type Template struct {
	raw      string
	scheme   string
	rooted   bool
	segments []segment
	params   []string
}

// ParseTemplate parses a URL template.
func ParseTemplate(s string) (*Template, error) {
	t := &Template{raw: s}
	rest := s
	if scheme, after, ok := strings.Cut(s, "://"); ok {
		if scheme == "" {
			return nil, &TemplateError{Template: s, Reason: "empty scheme"}
		}
		t.scheme = strings.ToLower(scheme)
		rest = after
	}
	rest, t.rooted = strings.CutPrefix(rest, "/")
	if t.scheme == "" && !t.rooted {
		return nil, &TemplateError{Template: s, Reason: "bare template must be an absolute path"}
	}
	if rest == "" {
		return t, nil
	}

	seen := make(map[string]bool)
	parts := strings.Split(rest, "/")
	for i, part := range parts {
		seg, err := parseSegment(s, part)
		if err != nil {
			return nil, err
		}
		if seg.kind == segLiteral {
			t.segments = append(t.segments, seg)
			continue
		}
		if seen[seg.text] {
			return nil, &TemplateError{Template: s, Reason: "duplicate placeholder {" + seg.text + "}"}
		}
		if seg.kind == segPath && i != len(parts)-1 {
			return nil, &TemplateError{Template: s, Reason: "path placeholder {" + seg.text + "} must be the final segment"}
		}
		seen[seg.text] = true
		t.params = append(t.params, seg.text)
		t.segments = append(t.segments, seg)
	}
	return t, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(s string) *Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseSegment(template, part string) (segment, error) {
	inner, ok := strings.CutPrefix(part, "{")
	if !ok {
		if strings.ContainsAny(part, "{}") {
			return segment{}, &TemplateError{Template: template, Reason: "placeholder must occupy a whole segment: " + part}
		}
		return segment{kind: segLiteral, text: part}, nil
	}
	inner, ok = strings.CutSuffix(inner, "}")
	if !ok || strings.ContainsAny(inner, "{}") {
		return segment{}, &TemplateError{Template: template, Reason: "placeholder must occupy a whole segment: " + part}
	}

	name, kind, _ := strings.Cut(inner, ":")
	if !validName(name) {
		return segment{}, &TemplateError{Template: template, Reason: "invalid placeholder name " + part}
	}
	switch kind {
	case "", "str":
		return segment{kind: segParam, text: name}, nil
	case "path":
		return segment{kind: segPath, text: name}, nil
	default:
		return segment{}, &TemplateError{Template: template, Reason: "unknown placeholder type " + kind}
	}
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// String returns the template as written.
func (t *Template) String() string { return t.raw }

// Scheme returns the lower-cased literal scheme, or "" for a bare template.
func (t *Template) Scheme() string { return t.scheme }

// Params returns the placeholder names in order.
func (t *Template) Params() []string { return append([]string(nil), t.params...) }

// canonical renders the template with normalized scheme and placeholder
// types. Templates with equal canonical forms are the same registration.
func (t *Template) canonical() string {
	return t.render(true)
}

// shape renders the template without placeholder names. Templates with
// equal shapes match exactly the same URLs.
func (t *Template) shape() string {
	return t.render(false)
}

func (t *Template) render(names bool) string {
	var b strings.Builder
	if t.scheme != "" {
		b.WriteString(t.scheme)
		b.WriteString("://")
	}
	if t.rooted {
		b.WriteByte('/')
	}
	for i, seg := range t.segments {
		if i > 0 {
			b.WriteByte('/')
		}
		switch seg.kind {
		case segLiteral:
			b.WriteString(seg.text)
		case segParam:
			b.WriteByte('{')
			if names {
				b.WriteString(seg.text)
			}
			b.WriteByte('}')
		case segPath:
			b.WriteByte('{')
			if names {
				b.WriteString(seg.text)
			}
			b.WriteString(":path}")
		}
	}
	return b.String()
}

// -----------------------------------------------------------------------------
// Matching
// -----------------------------------------------------------------------------

// location is a URL split for matching.
type location struct {
	scheme   string // lower-cased literal scheme, "" for bare paths
	rooted   bool
	segments []string
}

func parseLocation(url string) location {
	var loc location
	rest := url
	if scheme, after, ok := strings.Cut(url, "://"); ok {
		loc.scheme = strings.ToLower(scheme)
		rest = after
	}
	rest, loc.rooted = strings.CutPrefix(rest, "/")
	if rest != "" {
		loc.segments = strings.Split(rest, "/")
	}
	return loc
}

// resolvedScheme is the scheme handed to handlers and storage providers.
func (l location) resolvedScheme() string {
	if l.scheme == "" {
		return "file"
	}
	return l.scheme
}

// specificity ranks a match. Higher literal segment counts win, then
// higher literal character counts.
type specificity struct {
	segments int
	chars    int
}

func (s specificity) compare(o specificity) int {
	switch {
	case s.segments != o.segments:
		return s.segments - o.segments
	default:
		return s.chars - o.chars
	}
}

// match reports whether loc matches t, with the bound placeholder values.
func (t *Template) match(loc location) (map[string]string, specificity, bool) {
	var score specificity
	if loc.scheme != t.scheme || loc.rooted != t.rooted {
		return nil, score, false
	}

	params := make(map[string]string, len(t.params))
	segs := loc.segments
	for i, seg := range t.segments {
		switch seg.kind {
		case segLiteral:
			if i >= len(segs) || segs[i] != seg.text {
				return nil, score, false
			}
			score.segments++
			score.chars += len(seg.text)
		case segParam:
			if i >= len(segs) || segs[i] == "" {
				return nil, score, false
			}
			params[seg.text] = segs[i]
		case segPath:
			if i < len(segs) {
				params[seg.text] = strings.Join(segs[i:], "/")
			} else {
				params[seg.text] = ""
			}
			return params, score, true
		}
	}
	if len(segs) != len(t.segments) {
		return nil, score, false
	}
	return params, score, true
}
