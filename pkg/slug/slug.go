package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	// fold maps accented Latin letters to their ASCII base so catalog names
	// written with diacritics produce the same slug as their plain spelling.
	fold = strings.NewReplacer(
		"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
		"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"í", "i", "ì", "i", "î", "i", "ï", "i",
		"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ø", "o",
		"ú", "u", "ù", "u", "û", "u",
		"ñ", "n", "ß", "ss", "æ", "ae", "œ", "oe",
	)
)

// Make derives the URL slug of a product or category name, e.g.
// "Solar Panel 20W" → "solar-panel-20w", "Güneş Paneli" → "gunes-paneli".
func Make(name string) string {
	s := fold.Replace(strings.ToLower(strings.TrimSpace(name)))
	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}
