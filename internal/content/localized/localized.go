// Package localized merges incoming primary and secondary language values
// into stored ones without confusing "not sent" with "cleared".
package localized

import (
	"strings"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
)

// Mode selects create or partial-update semantics.
type Mode int

const (
	Create Mode = iota
	Update
)

// Apply merges in into the stored primary/secondary field sets.
//
// On Create, missing or empty required primaries are rejected and empty
// values are not stored. On Update, absent keys are left untouched, an empty
// required primary is rejected, an empty optional primary is removed, and an
// empty secondary is kept as an explicit clear. Lists are replaced wholesale.
// Validation runs before any mutation so a rejected call changes nothing.
func Apply(specs []content.FieldSpec, primary, secondary *content.Fields, inPrimary, inSecondary content.Fields, mode Mode) error {
	for _, f := range specs {
		if !f.Required {
			continue
		}
		sent := inPrimary.Has(f.Name)
		empty := isEmpty(f, inPrimary)
		switch {
		case mode == Create && (!sent || empty):
			return content.Invalid(f.Name, "is required")
		case mode == Update && sent && empty:
			return content.Invalid(f.Name, "cannot be empty")
		}
	}

	ensure(primary)
	ensure(secondary)
	for _, f := range specs {
		applyOne(f, primary, inPrimary, mode, false)
		if f.Localized {
			applyOne(f, secondary, inSecondary, mode, true)
		}
	}
	return nil
}

func applyOne(f content.FieldSpec, dst *content.Fields, in content.Fields, mode Mode, isSecondary bool) {
	switch f.Type {
	case content.ListField:
		v, ok := in.Lists[f.Name]
		if !ok {
			return
		}
		v = cleanList(v)
		if len(v) > 0 {
			dst.Lists[f.Name] = v
			return
		}
		if mode == Update && isSecondary {
			dst.Lists[f.Name] = []string{}
			return
		}
		delete(dst.Lists, f.Name)
	default:
		v, ok := in.Text[f.Name]
		if !ok {
			return
		}
		v = strings.TrimSpace(v)
		if v != "" {
			dst.Text[f.Name] = v
			return
		}
		if mode == Update && isSecondary {
			dst.Text[f.Name] = ""
			return
		}
		delete(dst.Text, f.Name)
	}
}

func isEmpty(f content.FieldSpec, in content.Fields) bool {
	if f.Type == content.ListField {
		return len(cleanList(in.Lists[f.Name])) == 0
	}
	return strings.TrimSpace(in.Text[f.Name]) == ""
}

func cleanList(v []string) []string {
	out := make([]string, 0, len(v))
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func ensure(f *content.Fields) {
	if f.Text == nil {
		f.Text = map[string]string{}
	}
	if f.Lists == nil {
		f.Lists = map[string][]string{}
	}
}
