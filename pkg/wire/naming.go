package wire

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	splitRegex = regexp.MustCompile(`([A-Z]+[a-z0-9]*|[a-z0-9]+)`)
)

// WireName converts a Go identifier into its lower-camel wire form.
// Acronyms are not preserved: "BotID" becomes "botId".
func WireName(name string) string {
	words := splitRegex.FindAllString(name, -1)
	for i, word := range words {
		word = strings.ToLower(word)
		if i > 0 {
			runes := []rune(word)
			runes[0] = unicode.ToUpper(runes[0])
			word = string(runes)
		}
		words[i] = word
	}
	return strings.Join(words, "")
}

// tagName returns the wire name declared by a json struct tag and whether the
// tag marks the field optional.
func tagName(tag string) (string, bool) {
	name, opts, _ := strings.Cut(tag, ",")
	optional := name == "-"
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == "omitempty" {
			optional = true
		}
	}
	return name, optional
}
