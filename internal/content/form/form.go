// Package form decodes JSON and multipart write requests into typed commands
// so the lifecycle code never sees raw strings for lists or flags.
package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
)

// File fields accepted on multipart requests.
var FileFields = []string{"images", "image"}

const (
	keySlug           = "slug"
	keyExistingImages = "existingImages"
	keyIsActive       = "isActive"
	keyIsFeatured     = "isFeatured"
	keyOrder          = "order"
)

// FromJSON decodes a JSON object body.
func FromJSON(body []byte, d *content.Descriptor) (content.Command, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return content.Command{}, content.Invalid("", "invalid JSON body: %v", err)
	}
	src := func(key string) (value, bool) {
		m, ok := raw[key]
		if !ok {
			return value{}, false
		}
		return value{json: m}, true
	}
	return decode(d, src)
}

// FromMultipart decodes a multipart form. Array-valued fields arrive as
// JSON-encoded strings; uploaded files are returned separately.
func FromMultipart(f *multipart.Form, d *content.Descriptor) (content.Command, []*multipart.FileHeader, error) {
	src := func(key string) (value, bool) {
		vs, ok := f.Value[key]
		if !ok || len(vs) == 0 {
			return value{}, false
		}
		return value{form: vs}, true
	}
	cmd, err := decode(d, src)
	if err != nil {
		return content.Command{}, nil, err
	}
	var files []*multipart.FileHeader
	for _, name := range FileFields {
		files = append(files, f.File[name]...)
	}
	return cmd, files, nil
}

// value is one incoming field, either raw JSON or multipart strings.
type value struct {
	json json.RawMessage
	form []string
}

type source func(key string) (value, bool)

func decode(d *content.Descriptor, src source) (content.Command, error) {
	cmd := content.Command{
		Primary:   content.Fields{Text: map[string]string{}, Lists: map[string][]string{}},
		Secondary: content.Fields{Text: map[string]string{}, Lists: map[string][]string{}},
	}
	for _, f := range d.Fields {
		if err := decodeField(src, f, f.Name, &cmd.Primary); err != nil {
			return content.Command{}, err
		}
		if f.Localized {
			if err := decodeField(src, f, f.WireSecondary(), &cmd.Secondary); err != nil {
				return content.Command{}, err
			}
		}
	}

	if v, ok := src(keySlug); ok {
		s, err := v.asText(keySlug)
		if err != nil {
			return content.Command{}, err
		}
		cmd.Slug = &s
	}
	if v, ok := src(keyExistingImages); ok {
		list, err := v.asList(keyExistingImages)
		if err != nil {
			return content.Command{}, err
		}
		cmd.ExistingImages = list
	}
	var err error
	if cmd.IsActive, err = optionalBool(src, keyIsActive); err != nil {
		return content.Command{}, err
	}
	if cmd.IsFeatured, err = optionalBool(src, keyIsFeatured); err != nil {
		return content.Command{}, err
	}
	if d.Ordered {
		if v, ok := src(keyOrder); ok {
			n, err := v.asInt(keyOrder)
			if err != nil {
				return content.Command{}, err
			}
			cmd.Order = &n
		}
	}
	return cmd, nil
}

func decodeField(src source, f content.FieldSpec, wire string, dst *content.Fields) error {
	v, ok := src(wire)
	if !ok {
		return nil
	}
	if f.Type == content.ListField {
		list, err := v.asList(wire)
		if err != nil {
			return err
		}
		dst.Lists[f.Name] = list
		return nil
	}
	s, err := v.asText(wire)
	if err != nil {
		return err
	}
	dst.Text[f.Name] = s
	return nil
}

func optionalBool(src source, key string) (*bool, error) {
	v, ok := src(key)
	if !ok {
		return nil, nil
	}
	b, err := v.asBool(key)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (v value) asText(key string) (string, error) {
	if v.form != nil {
		return v.form[0], nil
	}
	if isNull(v.json) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v.json, &s); err != nil {
		return "", content.Invalid(key, "must be a string")
	}
	return s, nil
}

// asList accepts a JSON array, a JSON-encoded array string, or repeated form values.
func (v value) asList(key string) ([]string, error) {
	if v.form != nil {
		if len(v.form) > 1 {
			return append([]string{}, v.form...), nil
		}
		return parseEncodedList(key, v.form[0])
	}
	if isNull(v.json) {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(v.json, &out); err == nil {
		return nonNil(out), nil
	}
	var s string
	if err := json.Unmarshal(v.json, &s); err == nil {
		return parseEncodedList(key, s)
	}
	return nil, content.Invalid(key, "must be an array of strings")
}

func parseEncodedList(key, s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, content.Invalid(key, "malformed JSON array: %v", err)
	}
	return nonNil(out), nil
}

func (v value) asBool(key string) (bool, error) {
	raw := ""
	if v.form != nil {
		raw = v.form[0]
	} else {
		var b bool
		if err := json.Unmarshal(v.json, &b); err == nil {
			return b, nil
		}
		if err := json.Unmarshal(v.json, &raw); err != nil {
			return false, content.Invalid(key, "must be a boolean")
		}
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, content.Invalid(key, "must be a boolean")
	}
	return b, nil
}

func (v value) asInt(key string) (int, error) {
	raw := ""
	if v.form != nil {
		raw = v.form[0]
	} else {
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(v.json))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return 0, content.Invalid(key, "must be an integer")
		}
		raw = n.String()
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, content.Invalid(key, "must be an integer")
	}
	return n, nil
}

func isNull(m json.RawMessage) bool {
	return len(bytes.TrimSpace(m)) == 0 || string(bytes.TrimSpace(m)) == "null"
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// ParseBool reads an optional boolean query parameter.
func ParseBool(s string) (*bool, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q", s)
	}
	return &b, nil
}
