package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/qube-forensics/sealcheck/pkg/errclass"
)

// Parse decodes exactly one JSON value from data.
//
// Parsing is stricter than encoding/json: the input must be valid UTF-8,
// must not contain unpaired surrogate escapes, must not repeat a key within
// one object, and must not carry trailing data. Any violation is reported as
// ErrMalformedInput.
func Parse(data []byte) (Value, error) {
	if !utf8.Valid(data) {
		return Value{}, malformed("input is not valid UTF-8")
	}
	if err := checkSurrogates(data); err != nil {
		return Value{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec, "$")
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, malformed("trailing data after JSON value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder, at string) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, syntaxErr(at, err)
	}
	return parseToken(dec, tok, at)
}

func parseToken(dec *json.Decoder, tok json.Token, at string) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(string(t))
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := parseValue(dec, fmt.Sprintf("%s[%d]", at, len(items)))
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, syntaxErr(at, err)
			}
			return Array(items...), nil

		case '{':
			members := map[string]Value{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, syntaxErr(at, err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, malformed("object key at %s is not a string", at)
				}
				if _, dup := members[key]; dup {
					return Value{}, malformed("duplicate key %q at %s", key, at)
				}
				member, err := parseValue(dec, at+"."+key)
				if err != nil {
					return Value{}, err
				}
				members[key] = member
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, syntaxErr(at, err)
			}
			return Object(members), nil
		}
	}
	return Value{}, malformed("unexpected token %v at %s", tok, at)
}

func syntaxErr(at string, err error) error {
	if errors.Is(err, io.EOF) {
		return malformed("unexpected end of input at %s", at)
	}
	return errclass.ErrMalformedInput.WithMessagef("at %s: %v", at, err)
}

// checkSurrogates rejects \uD800-\uDFFF escapes that do not form a valid
// pair. encoding/json would silently turn them into U+FFFD, changing the
// content being verified. Backslashes only occur inside JSON strings, so a
// flat scan is sufficient.
func checkSurrogates(data []byte) error {
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			continue
		}
		if i+1 >= len(data) {
			return nil
		}
		if data[i+1] != 'u' {
			i++
			continue
		}
		r, ok := hex4(data, i+2)
		if !ok {
			return nil // left to the decoder to report
		}
		switch {
		case r >= 0xD800 && r <= 0xDBFF:
			if i+7 < len(data) && data[i+6] == '\\' && data[i+7] == 'u' {
				if lo, ok := hex4(data, i+8); ok && lo >= 0xDC00 && lo <= 0xDFFF {
					i += 11
					continue
				}
			}
			return malformed("unpaired surrogate escape at byte %d", i)
		case r >= 0xDC00 && r <= 0xDFFF:
			return malformed("unpaired surrogate escape at byte %d", i)
		}
		i += 5
	}
	return nil
}

func hex4(data []byte, at int) (rune, bool) {
	if at+4 > len(data) {
		return 0, false
	}
	var r rune
	for _, c := range data[at : at+4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		default:
			return 0, false
		}
	}
	return r, true
}
