// Package urlutil implements the percent-encoding and URI template expansion
// used to build ADT and BW modelling endpoint paths.
package urlutil

import (
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

const upperhex = "0123456789ABCDEF"

func unreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}

// Encode percent-encodes every byte of s outside the RFC 3986 unreserved set
// using uppercase hex digits.
func Encode(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

// ExpandTemplate expands the {name} and {?a,b,c} expressions of template.
// Path expressions read from path; query expressions read from query first and
// fall back to path. Variables that are missing or empty are dropped, as is an
// empty {}. An unbalanced '{' is copied through verbatim along with the rest
// of the input.
func ExpandTemplate(template string, path, query map[string]string) string {
	if !strings.Contains(template, "{") {
		return template
	}
	var b strings.Builder
	b.Grow(len(template))
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			b.WriteString(rest[open:])
			break
		}
		expr := rest[open : open+closing+1]
		b.WriteString(expandExpression(expr, path, query))
		rest = rest[open+closing+1:]
	}
	return b.String()
}

type binding struct{ name, value string }

func expandExpression(expr string, path, query map[string]string) string {
	body := expr[1 : len(expr)-1]
	if body == "" {
		return ""
	}
	isQuery := body[0] == '?' || body[0] == '&'
	names := body
	if isQuery {
		names = body[1:]
	}
	var bound []binding
	values := uritemplate.Values{}
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var v string
		var ok bool
		if isQuery {
			v, ok = query[name]
			if !ok || v == "" {
				v, ok = path[name]
			}
		} else {
			v, ok = path[name]
		}
		if !ok || v == "" {
			continue
		}
		bound = append(bound, binding{name, v})
		values.Set(name, uritemplate.String(v))
	}
	// uritemplate encodes code points rather than UTF-8 bytes.
	if asciiValues(bound) {
		if tmpl, err := uritemplate.New(expr); err == nil {
			if out, err := tmpl.Expand(values); err == nil {
				return out
			}
		}
	}
	return expandExact(body[0], isQuery, bound)
}

func asciiValues(bound []binding) bool {
	for _, kv := range bound {
		for i := 0; i < len(kv.value); i++ {
			if kv.value[i] >= 0x80 {
				return false
			}
		}
	}
	return true
}

// expandExact handles expressions uritemplate rejects, such as hyphenated
// variable names and non-ASCII values. Names are matched
// verbatim and values are encoded byte by byte.
func expandExact(op byte, isQuery bool, bound []binding) string {
	if len(bound) == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range bound {
		switch {
		case isQuery && i == 0:
			b.WriteByte(op)
		case isQuery:
			b.WriteByte('&')
		case i > 0:
			b.WriteByte(',')
		}
		if isQuery {
			b.WriteString(kv.name)
			b.WriteByte('=')
		}
		b.WriteString(Encode(kv.value))
	}
	return b.String()
}

// JoinQuery appends key=value pairs to path, skipping empty values. Keys are
// taken verbatim and values are encoded.
func JoinQuery(path string, kv ...string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := byte('?')
	if strings.Contains(path, "?") {
		sep = '&'
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		b.WriteByte(sep)
		b.WriteString(kv[i])
		b.WriteByte('=')
		b.WriteString(Encode(kv[i+1]))
		sep = '&'
	}
	return b.String()
}
