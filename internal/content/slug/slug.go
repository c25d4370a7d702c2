// Package slug derives URL-safe, collection-unique identifiers from titles.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxAttempts bounds the numeric suffixes tried before falling back to a timestamp.
const MaxAttempts = 1000

// Letters that do not decompose into ASCII plus a combining mark.
var foldReplacer = strings.NewReplacer(
	"ı", "i", "İ", "i",
	"ß", "ss", "æ", "ae", "Æ", "ae",
	"ø", "o", "Ø", "o", "œ", "oe", "Œ", "oe",
	"ł", "l", "Ł", "l", "đ", "d", "Đ", "d",
	"þ", "th", "Þ", "th", "ð", "d", "Ð", "d",
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	separators   = regexp.MustCompile(`[\s-]+`)
)

// Normalize turns s into a slug. Empty results fall back to a timestamp so a
// slug is never empty.
func Normalize(s string) string {
	return normalize(s, time.Now)
}

func normalize(s string, now func() time.Time) string {
	out := fold(s)
	out = invalidChars.ReplaceAllString(out, "")
	out = separators.ReplaceAllString(out, "-")
	out = strings.Trim(out, "-")
	if out == "" {
		return strconv.FormatInt(now().UnixMilli(), 10)
	}
	return out
}

func fold(s string) string {
	s = foldReplacer.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Checker reports whether slug is already used by a record other than excludeID.
type Checker interface {
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
}

// Allocator hands out unique slugs for one collection.
type Allocator struct {
	checker     Checker
	maxAttempts int
	now         func() time.Time
}

func NewAllocator(c Checker) *Allocator {
	return &Allocator{checker: c, maxAttempts: MaxAttempts, now: time.Now}
}

// Allocate normalizes candidate and appends -1, -2, ... until the result is
// free. The uniqueness index on the collection remains the final guard.
func (a *Allocator) Allocate(ctx context.Context, candidate, excludeID string) (string, error) {
	base := normalize(candidate, a.now)
	taken, err := a.checker.SlugExists(ctx, base, excludeID)
	if err != nil {
		return "", fmt.Errorf("check slug %q: %w", base, err)
	}
	if !taken {
		return base, nil
	}
	for i := 1; i <= a.maxAttempts; i++ {
		next := base + "-" + strconv.Itoa(i)
		taken, err := a.checker.SlugExists(ctx, next, excludeID)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", next, err)
		}
		if !taken {
			return next, nil
		}
	}
	return base + "-" + strconv.FormatInt(a.now().UnixNano(), 10), nil
}
