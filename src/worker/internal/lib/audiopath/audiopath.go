package audiopath

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeRuns = regexp.MustCompile(`[^a-z0-9_]+`)

// MakeName derives the next artifact name in a stage chain:
// base name + stage suffix, original extension preserved.
// Stage suffixes must be unique within one job directory -
// that is the only thing keeping artifact names collision free.
func MakeName(path string, suffix string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem + suffix + ext
}

// SanitizeStem maps an arbitrary file stem to a safe canonical form:
// ASCII transliteration, lowercased, runs of anything outside
// [a-z0-9_] collapsed to a single underscore. Distinct stems must stay
// distinct - a collision here means one job's safe copy overwrites
// another's.
func SanitizeStem(stem string) string {
	decomposer := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(decomposer, stem)
	if err != nil {
		// normalization is best effort, fall back to the raw stem
		decomposed = stem
	}

	ascii := strings.ToLower(unidecode.Unidecode(decomposed))

	safe := strings.Trim(unsafeRuns.ReplaceAllString(ascii, "_"), "_")
	if safe == "" {
		// nothing survived transliteration, derive a stable stand-in
		// from the original stem instead of producing a dotfile
		sum := sha1.Sum([]byte(stem))
		safe = "track_" + hex.EncodeToString(sum[:4])
	}

	return safe
}

// SafeName returns the sibling path with a sanitized stem, keeping
// directory and extension as is.
func SafeName(path string) string {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(dir, SanitizeStem(stem)+ext)
}
