package foscam

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const resultEnvelope = "CGI_Result"

// Result is the flattened content of a CGI_Result envelope: leaf element name
// to trimmed text.
type Result map[string]string

// ParseResult decodes a CGI_Result document. Nested elements are flattened by
// leaf name.
func ParseResult(body []byte) (Result, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	res := Result{}

	var (
		sawRoot  bool
		text     strings.Builder
		hasChild []bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(hasChild) == 0 {
				if t.Name.Local != resultEnvelope {
					return nil, fmt.Errorf("unexpected root element <%s>", t.Name.Local)
				}
				sawRoot = true
			} else {
				hasChild[len(hasChild)-1] = true
			}
			hasChild = append(hasChild, false)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			depth := len(hasChild)
			if depth >= 2 && !hasChild[depth-1] {
				res[t.Name.Local] = strings.TrimSpace(text.String())
			}
			hasChild = hasChild[:depth-1]
			text.Reset()
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("missing <%s> envelope", resultEnvelope)
	}
	return res, nil
}

// String returns the named field or a malformed-response error.
func (r Result) String(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", ErrMalformedResponse, key)
	}
	return v, nil
}

// Int returns the named field parsed as an integer.
func (r Result) Int(key string) (int, error) {
	v, err := r.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q is not an integer: %q", ErrMalformedResponse, key, v)
	}
	return n, nil
}

// Params copies the result into a parameter set suitable for writing the
// same configuration back, without the status code.
func (r Result) Params() map[string]string {
	params := make(map[string]string, len(r))
	for k, v := range r {
		if k == "result" {
			continue
		}
		params[k] = v
	}
	return params
}
