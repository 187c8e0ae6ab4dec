package language

import (
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Code is a canonical ISO 639-1 language code such as "hi" or "ta".
type Code string

func (c Code) String() string { return string(c) }

// DisplayName returns the English name for the code.
func (c Code) DisplayName() string { return DisplayName(string(c)) }

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	display string   // Human-readable name
	words   []string // Full word forms (e.g. "hindi")
}

var languages = []entry{
	{"en", "eng", "English", []string{"english"}},
	{"hi", "hin", "Hindi", []string{"hindi"}},
	{"ta", "tam", "Tamil", []string{"tamil"}},
	{"gu", "guj", "Gujarati", []string{"gujarati"}},
	{"te", "tel", "Telugu", []string{"telugu"}},
	{"bn", "ben", "Bengali", []string{"bengali", "bangla"}},
	{"mr", "mar", "Marathi", []string{"marathi"}},
	{"kn", "kan", "Kannada", []string{"kannada"}},
	{"ml", "mal", "Malayalam", []string{"malayalam"}},
	{"pa", "pan", "Punjabi", []string{"punjabi", "panjabi"}},
	{"ur", "urd", "Urdu", []string{"urdu"}},
	{"es", "spa", "Spanish", []string{"spanish"}},
	{"fr", "fra", "French", []string{"french"}},
	{"de", "deu", "German", []string{"german"}},
	{"pt", "por", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "Japanese", []string{"japanese"}},
	{"zh", "zho", "Chinese", []string{"chinese", "mandarin"}},
	{"ar", "ara", "Arabic", []string{"arabic"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages))
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(value string) *entry {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return nil
	}
	if e, ok := byCode2[value]; ok {
		return e
	}
	if e, ok := byCode3[value]; ok {
		return e
	}
	if e, ok := byWord[value]; ok {
		return e
	}
	return nil
}

// Parse converts a language word, ISO code, or BCP 47 tag into a Code.
func Parse(value string) (Code, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("language: empty value")
	}
	if e := lookup(trimmed); e != nil {
		return Code(e.code2), nil
	}
	tag, err := xlanguage.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("language: unrecognized %q", value)
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return "", fmt.Errorf("language: unrecognized %q", value)
	}
	code := base.String()
	if e := lookup(code); e != nil {
		return Code(e.code2), nil
	}
	if len(code) != 2 {
		return "", fmt.Errorf("language: %q has no two-letter code", value)
	}
	return Code(code), nil
}

// ToISO2 converts any recognized language code or word to ISO 639-1.
// Returns empty string for unrecognized input.
func ToISO2(value string) string {
	code, err := Parse(value)
	if err != nil {
		return ""
	}
	return string(code)
}

// ToISO3 converts any recognized language code to ISO 639-2 (3-letter).
// Returns "und" for unrecognized input.
func ToISO3(value string) string {
	if e := lookup(value); e != nil {
		return e.code3
	}
	code, err := Parse(value)
	if err != nil {
		return "und"
	}
	if e := lookup(string(code)); e != nil {
		return e.code3
	}
	base, _ := xlanguage.Make(string(code)).Base()
	if iso3 := base.ISO3(); iso3 != "" {
		return iso3
	}
	return "und"
}

// DisplayName returns a human-readable language name for any recognized code.
// Codes outside the built-in table fall back to CLDR English names.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Unknown"
	}
	if e := lookup(value); e != nil {
		return e.display
	}
	if code, err := Parse(value); err == nil {
		if e := lookup(string(code)); e != nil {
			return e.display
		}
		if name := display.English.Languages().Name(xlanguage.Make(string(code))); name != "" {
			return name
		}
	}
	return strings.ToUpper(strings.TrimSpace(value))
}

// PromptKey returns the lowercase English word used when asking a
// translation model to key its output by language.
func PromptKey(code Code) string {
	return strings.ToLower(DisplayName(string(code)))
}
