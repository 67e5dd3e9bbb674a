package sources

import (
	"strconv"
	"strings"
)

// EtymologyTemplate is one entry of a Wiktionary record's
// etymology_templates list.
type EtymologyTemplate struct {
	Name      string            `json:"name"`
	Args      map[string]string `json:"args"`
	Expansion string            `json:"expansion,omitempty"`
}

// Ancestry markers: the language is the second positional argument.
var directTemplates = map[string]bool{
	"inh": true, "inh+": true, "inherited": true,
	"der": true, "der+": true, "derived": true, "uder": true,
	"bor": true, "bor+": true, "borrowed": true, "lbor": true, "slbor": true, "ubor": true,
}

// Cognate markers: the language is the first positional argument.
var cognateTemplates = map[string]bool{
	"cog": true, "cognate": true, "ncog": true,
}

var compoundTemplates = map[string]bool{
	"compound": true, "com": true,
	"af": true, "affix": true,
	"prefix": true, "pre": true,
	"suffix": true, "suf": true,
	"confix": true, "con": true,
}

var germanicLangs = map[string]bool{
	"ang": true, "enm": true, "sco": true,
	"gem": true, "gem-pro": true, "gmw": true, "gmw-pro": true, "gmq": true, "gmq-pro": true, "gme": true,
	"non": true, "is": true, "fo": true, "da": true, "sv": true, "no": true, "nb": true, "nn": true,
	"odt": true, "dum": true, "nl": true, "af": true,
	"goh": true, "gmh": true, "de": true, "gml": true, "nds": true, "osx": true,
	"ofs": true, "fy": true, "got": true, "yi": true, "frk": true, "lb": true,
}

var romanceLangs = map[string]bool{
	"la": true, "itc-pro": true, "roa": true,
	"fro": true, "frm": true, "fr": true, "xno": true, "pro": true, "oc": true,
	"it": true, "es": true, "pt": true, "ca": true, "ro": true,
	"grc": true, "grc-koi": true, "el": true,
}

func isGermanic(lang string) bool {
	return germanicLangs[lang]
}

func isRomance(lang string) bool {
	if romanceLangs[lang] {
		return true
	}
	return strings.HasPrefix(lang, "la-") || strings.HasPrefix(lang, "roa-")
}

// ClassifyEtymology reports whether the templates mark a word as native.
// Germanic ancestry with no Romance ancestry is native; Romance alone or
// mixed evidence is not. Cognates are consulted only when no direct
// inheritance, derivation or borrowing markers exist.
func ClassifyEtymology(templates []EtymologyTemplate) bool {
	var direct bool
	var germanic, romance bool
	for _, t := range templates {
		if !directTemplates[t.Name] {
			continue
		}
		direct = true
		lang := t.Args["2"]
		germanic = germanic || isGermanic(lang)
		romance = romance || isRomance(lang)
	}
	if !direct {
		for _, t := range templates {
			if !cognateTemplates[t.Name] {
				continue
			}
			lang := t.Args["1"]
			germanic = germanic || isGermanic(lang)
			romance = romance || isRomance(lang)
		}
	}
	return germanic && !romance
}

// HasAncestry reports whether the templates carry a direct ancestry
// marker.
func HasAncestry(templates []EtymologyTemplate) bool {
	for _, t := range templates {
		if directTemplates[t.Name] {
			return true
		}
	}
	return false
}

// CompoundParts returns the English parts named by compound and affix
// templates, in order. Inline modifiers ("word<t:gloss>") are stripped and
// affix hyphens kept so "-ness" stays distinct from "ness".
func CompoundParts(templates []EtymologyTemplate) []string {
	var parts []string
	for _, t := range templates {
		if !compoundTemplates[t.Name] || t.Args["1"] != "en" {
			continue
		}
		for i := 2; ; i++ {
			part, ok := t.Args[strconv.Itoa(i)]
			if !ok {
				break
			}
			if j := strings.IndexByte(part, '<'); j >= 0 {
				part = part[:j]
			}
			part = strings.TrimSpace(part)
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return parts
}
