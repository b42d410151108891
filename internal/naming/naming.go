package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// illegalChars are the characters rejected by common filesystems.
const illegalChars = `\/*?:"<>|`

// Sanitize removes characters that are illegal in common filesystem names and
// trims surrounding whitespace. It never fails and is idempotent.
func Sanitize(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalChars, r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(cleaned)
}

// OutputFolderName derives the per-book folder name from an input path: the
// base name without its extension, sanitized.
func OutputFolderName(inputPath string) string {
	base := filepath.Base(inputPath)
	return Sanitize(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ChapterFileName builds the output name for the chapter at the 1-based
// index. The sanitized title is appended unless it is empty or made only of
// digits (superscript and circled forms included), which would just repeat
// the number. Titles are NFC-normalised first so decomposed accents produce
// the same name as precomposed ones.
func ChapterFileName(index int, title, ext string) string {
	safe := Sanitize(norm.NFC.String(title))
	if safe == "" || isDigits(safe) {
		return fmt.Sprintf("Chapter_%02d%s", index, ext)
	}
	return fmt.Sprintf("Chapter_%02d_%s%s", index, safe, ext)
}

// digitForms are the characters that carry a single digit value without
// being decimal digits (Numeric_Type=Digit): superscripts, subscripts,
// circled and parenthesized digits, and a few script-specific forms.
var digitForms = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00b2, Hi: 0x00b3, Stride: 1},
		{Lo: 0x00b9, Hi: 0x00b9, Stride: 1},
		{Lo: 0x1369, Hi: 0x1371, Stride: 1},
		{Lo: 0x19da, Hi: 0x19da, Stride: 1},
		{Lo: 0x2070, Hi: 0x2070, Stride: 1},
		{Lo: 0x2074, Hi: 0x2079, Stride: 1},
		{Lo: 0x2080, Hi: 0x2089, Stride: 1},
		{Lo: 0x2460, Hi: 0x2468, Stride: 1},
		{Lo: 0x2474, Hi: 0x247c, Stride: 1},
		{Lo: 0x2488, Hi: 0x2490, Stride: 1},
		{Lo: 0x24ea, Hi: 0x24ea, Stride: 1},
		{Lo: 0x24f5, Hi: 0x24fd, Stride: 1},
		{Lo: 0x24ff, Hi: 0x24ff, Stride: 1},
		{Lo: 0x2776, Hi: 0x277e, Stride: 1},
		{Lo: 0x2780, Hi: 0x2788, Stride: 1},
		{Lo: 0x278a, Hi: 0x2792, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x10a40, Hi: 0x10a43, Stride: 1},
		{Lo: 0x10e60, Hi: 0x10e68, Stride: 1},
		{Lo: 0x11052, Hi: 0x1105a, Stride: 1},
		{Lo: 0x1f100, Hi: 0x1f10a, Stride: 1},
	},
	LatinOffset: 2,
}

// isDigits reports whether s is non-empty and made only of digits, decimal
// or otherwise (so "²" and "③" count, "½" and "Ⅻ" do not).
func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && !unicode.Is(digitForms, r) {
			return false
		}
	}
	return s != ""
}
