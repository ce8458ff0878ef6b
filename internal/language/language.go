package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Undetermined is the fallback code for tracks without language metadata.
const Undetermined = "und"

// alt3 maps ISO 639-2/B codes to the 639-2/T form golang.org/x/text parses.
var alt3 = map[string]string{
	"fre": "fra",
	"ger": "deu",
	"dut": "nld",
	"chi": "zho",
	"cze": "ces",
	"gre": "ell",
	"rum": "ron",
	"per": "fas",
	"slo": "slk",
	"arm": "hye",
	"geo": "kat",
	"ice": "isl",
	"alb": "sqi",
	"mac": "mkd",
	"may": "msa",
}

var englishNames = display.English.Languages()

// Normalize trims and lowercases a container language code, substituting the
// undetermined marker for empty values and mapping bibliographic ISO 639-2
// variants to their terminological form.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return Undetermined
	}
	if mapped, ok := alt3[code]; ok {
		return mapped
	}
	return code
}

// DisplayName returns a human-readable English name for a language code.
// Unrecognized or undetermined codes fall back to "Unknown".
func DisplayName(code string) string {
	code = Normalize(code)
	if code == Undetermined {
		return "Unknown"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "Unknown"
	}
	name := englishNames.Name(tag)
	if strings.TrimSpace(name) == "" {
		return "Unknown"
	}
	return name
}
