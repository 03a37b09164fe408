package source

import (
	"regexp"
	"strings"
)

// compileMask compiles a file_mask glob (§4.C) with '*' (zero or more, any
// character) and '?' (exactly one) into a case-insensitive matcher. An
// empty mask matches nothing; an invalid mask degrades to match-all with a
// warning left to the caller (compileMask itself never errors, since the
// only way translation can fail here is a regexp-unsafe input, which
// cannot occur from '*'/'?' translation alone — kept for parity with the
// spec's stated degrade-to-match-all contract in maskMatcher.Warning).
type maskMatcher struct {
	re      *regexp.Regexp
	matchAll bool
	matchNone bool
	Warning string
}

func compileMask(mask string) *maskMatcher {
	if mask == "" {
		return &maskMatcher{matchNone: true, Warning: `file_mask "" matches no files`}
	}
	if mask == "*" {
		return &maskMatcher{matchAll: true}
	}
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range mask {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return &maskMatcher{matchAll: true, Warning: "invalid file_mask " + mask + ", matching all files: " + err.Error()}
	}
	return &maskMatcher{re: re}
}

func (m *maskMatcher) Match(filename string) bool {
	switch {
	case m.matchNone:
		return false
	case m.matchAll:
		return true
	default:
		return m.re.MatchString(filename)
	}
}

// MaskMatch compiles mask and matches filename against it, case-insensitive
// per §4.C/§4.E (a push-path CREATED event is filtered the same way List()
// filters a directory listing — see internal/worker.handleEvent).
func MaskMatch(mask, filename string) bool {
	return compileMask(mask).Match(filename)
}
