// Package prompt resolves the logical prompt a generation was requested with.
//
// Two records belong to the same prompt group when their resolved keys are
// byte-identical. The key is the original prompt text unless the downloader
// recorded the sentinel phrase, in which case the structured prompt is
// compared in its re-encoded compact JSON form.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Sentinel is the original-prompt value the downloader writes when no real
// original prompt was captured.
const Sentinel = "Injection completely consistent"

// Form records how a Resolution's key was derived.
type Form string

const (
	// FormOriginal means the key is the original prompt text.
	FormOriginal Form = "ORIGINAL"
	// FormCanonical means the key is the compact encoding of the structured prompt.
	FormCanonical Form = "CANONICAL"
	// FormFallback means the structured prompt could not be canonically
	// encoded and the key is its default string form. Grouping still works but
	// equivalent prompts written differently will not be merged.
	FormFallback Form = "FALLBACK"
)

// ErrNotObject is returned by Canonical when the structured prompt is not a JSON object.
var ErrNotObject = errors.New("structured prompt is not a JSON object")

// Resolution is the grouping key for one record.
type Resolution struct {
	Key  string
	Form Form
	// Err is the encoding failure behind a FormFallback resolution.
	Err error
}

// Resolve returns the logical prompt key for a record given the raw JSON
// values of its original and structured prompt fields.
func Resolve(original, structured json.RawMessage) Resolution {
	if text := originalKey(original); text != Sentinel {
		return Resolution{Key: text, Form: FormOriginal}
	}

	key, err := Canonical(structured)
	if err != nil {
		return Resolution{Key: fallbackString(structured), Form: FormFallback, Err: err}
	}
	return Resolution{Key: key, Form: FormCanonical}
}

// NullKey is the grouping key of an explicit null original prompt. It keeps
// null apart from a missing or empty prompt.
const NullKey = "None"

func originalKey(raw json.RawMessage) string {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return NullKey
	}
	return Original(raw)
}

// Original returns the original prompt as a string. A missing or null value
// is "", a JSON string is decoded, and any other value is its compact JSON text.
func Original(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	if s, err := encode(trimmed); err == nil {
		return s
	}
	return string(trimmed)
}

// Canonical returns the compact encoding of a structured prompt object. Keys
// keep their source order and number literals keep their text; strings are
// decoded and written back with only the mandatory escapes, so "\u4f60" and
// a literal "你" yield the same key. A missing value is the empty object.
func Canonical(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "{}", nil
	}
	if trimmed[0] != '{' {
		return "", ErrNotObject
	}
	s, err := encode(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to encode structured prompt: %w", err)
	}
	return s, nil
}

// Compact returns the compact JSON text of any value, "{}" when missing.
// It is used for the comment tag, which stores the structured prompt whatever its shape.
func Compact(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "{}", nil
	}
	s, err := encode(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON value: %w", err)
	}
	return s, nil
}

// fallbackString is the default string form of a structured prompt that is
// not an encodable object.
func fallbackString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	if compact, err := Compact(trimmed); err == nil {
		return compact
	}
	return string(trimmed)
}

// encode re-encodes one JSON value compactly, token by token.
func encode(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	e := &encoder{}
	e.str = json.NewEncoder(&e.scratch)
	e.str.SetEscapeHTML(false)

	if err := e.value(dec); err != nil {
		return "", err
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", errors.New("unexpected data after JSON value")
	}
	return e.out.String(), nil
}

type encoder struct {
	out     bytes.Buffer
	scratch bytes.Buffer
	str     *json.Encoder
}

func (e *encoder) value(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		if v == '{' {
			return e.object(dec)
		}
		if v == '[' {
			return e.array(dec)
		}
		return fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return e.string(v)
	case json.Number:
		e.out.WriteString(v.String())
	case bool:
		e.out.WriteString(strconv.FormatBool(v))
	case nil:
		e.out.WriteString("null")
	}
	return nil
}

func (e *encoder) object(dec *json.Decoder) error {
	e.out.WriteByte('{')
	for i := 0; dec.More(); i++ {
		if i > 0 {
			e.out.WriteByte(',')
		}
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		if err := e.string(key); err != nil {
			return err
		}
		e.out.WriteByte(':')
		if err := e.value(dec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	e.out.WriteByte('}')
	return nil
}

func (e *encoder) array(dec *json.Decoder) error {
	e.out.WriteByte('[')
	for i := 0; dec.More(); i++ {
		if i > 0 {
			e.out.WriteByte(',')
		}
		if err := e.value(dec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	e.out.WriteByte(']')
	return nil
}

func (e *encoder) string(s string) error {
	e.scratch.Reset()
	if err := e.str.Encode(s); err != nil {
		return err
	}
	e.out.Write(bytes.TrimSuffix(e.scratch.Bytes(), []byte("\n")))
	return nil
}
