package dispatch

import "golang.org/x/text/language"

// ttsLanguages are the languages the speech workers ship voices for.
var ttsLanguages = []language.Tag{
	language.Korean,
	language.English,
	language.Japanese,
	language.Chinese,
}

var ttsMatcher = language.NewMatcher(ttsLanguages)

// NormalizeLanguage maps a BCP-47 tag (or loose variants like "EN-us") onto
// the closest worker-supported language code. Unrecognized input falls back
// to Korean, matching the default voice set.
func NormalizeLanguage(raw string) string {
	if raw == "" {
		return "ko"
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "ko"
	}
	_, idx, _ := ttsMatcher.Match(tag)
	base, _ := ttsLanguages[idx].Base()
	return base.String()
}
