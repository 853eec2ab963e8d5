// submission/fields.go
package submission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Field is one submitted key/value pair.
type Field struct {
	Key   string
	Value string
}

// Fields is a submission body in the order the client sent it. A repeated
// key keeps its first position and takes the last value.
type Fields []Field

// Get returns the value for key and whether the key was present.
func (f Fields) Get(key string) (string, bool) {
	for _, fd := range f {
		if fd.Key == key {
			return fd.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing key or appends a new one.
func (f *Fields) Set(key, value string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

// ParseForm decodes an application/x-www-form-urlencoded body. A malformed
// escape such as "100%" is kept as literal text, the way PHP's urldecode
// does; only a read failure is returned as an error.
func ParseForm(r io.Reader) (Fields, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseQuery(string(body)), nil
}

func parseQuery(query string) Fields {
	var out Fields
	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key := unescapeLenient(rawKey)
		if key == "" {
			continue
		}
		out.Set(key, unescapeLenient(rawValue))
	}
	return out
}

// unescapeLenient query-unescapes s, leaving any '%' that does not start a
// valid two-digit hex escape as it is.
func unescapeLenient(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	}
	return c - '0'
}

// ErrUnsupportedJSON is returned by ParseJSON for anything other than a flat
// object of scalar values.
var ErrUnsupportedJSON = errors.New("submission: body must be a flat JSON object")

// ParseJSON decodes an application/json body. Strings are taken as-is,
// numbers and booleans by their literal text, and nulls are dropped.
func ParseJSON(r io.Reader) (Fields, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedJSON, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrUnsupportedJSON
	}

	var out Fields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedJSON, err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedJSON, err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		switch raw[0] {
		case '"':
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnsupportedJSON, err)
			}
			out.Set(key, s)
		case '{', '[':
			return nil, fmt.Errorf("%w: field %q is not a scalar", ErrUnsupportedJSON, key)
		case 'n':
			// null
		default:
			out.Set(key, string(raw))
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedJSON, err)
	}
	return out, nil
}
