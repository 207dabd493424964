package vars

import (
	"errors"
	"fmt"
	"regexp"
)

// Limits applied by the regex safety gate. User-supplied patterns
// never reach the engine without passing CheckPattern first
const MaxPatternLength = 500

var (
	// ErrRegexUnsafe rejects patterns that present a ReDoS risk
	ErrRegexUnsafe = errors.New("unsafe pattern: ReDoS risk")

	// ErrRegexInvalid rejects patterns that do not compile
	ErrRegexInvalid = errors.New("invalid pattern")
)

// CheckPattern screens a user-supplied regex before compilation.
// Rejected: patterns of MaxPatternLength or more characters, patterns
// with a quantified group that is itself quantified (the classic
// catastrophic-backtracking shape), and patterns that fail to compile
func CheckPattern(pattern string) (*regexp.Regexp, error) {
	if len(pattern) >= MaxPatternLength {
		return nil, fmt.Errorf("%w: pattern length %d exceeds limit",
			ErrRegexUnsafe, len(pattern))
	}
	if hasNestedQuantifier(pattern) {
		return nil, fmt.Errorf("%w: nested quantifiers", ErrRegexUnsafe)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegexInvalid, err)
	}
	return re, nil
}

// hasNestedQuantifier detects a group whose content ends in '+' or '*'
// where the group itself is followed by '+', '*', or '{'
func hasNestedQuantifier(pattern string) bool {
	depth := 0
	var quantified []bool

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			i++
		case '(':
			depth++
			quantified = append(quantified, false)
		case ')':
			if depth == 0 {
				continue
			}
			depth--
			inner := quantified[len(quantified)-1]
			quantified = quantified[:len(quantified)-1]
			if !inner {
				continue
			}
			if i+1 < len(pattern) {
				next := pattern[i+1]
				if next == '+' || next == '*' || next == '{' {
					return true
				}
			}
		case '+', '*':
			if depth > 0 {
				quantified[len(quantified)-1] = true
			}
		default:
			if depth > 0 {
				quantified[len(quantified)-1] = false
			}
		}
	}
	return false
}
