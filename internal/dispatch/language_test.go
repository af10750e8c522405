package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"":           "ko",
		"ko":         "ko",
		"KO-KR":      "ko",
		"en":         "en",
		"EN-us":      "en",
		"ja":         "ja",
		"zh-Hans-CN": "zh",
		"not a tag":  "ko",
		"fr":         "ko",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLanguage(in), "input %q", in)
	}
}
