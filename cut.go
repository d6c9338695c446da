package eerie

import "strings"

// trimPrefix returns s without the leading p, or false if s does not start with p.
func trimPrefix(s, p string) (string, bool) {
	if !strings.HasPrefix(s, p) {
		return "", false
	}
	return s[len(p):], true
}

// trimSuffix returns s without the trailing p, or false if s does not end with p.
func trimSuffix(s, p string) (string, bool) {
	if !strings.HasSuffix(s, p) {
		return "", false
	}
	return s[:len(s)-len(p)], true
}

// dropFirstLine returns everything after the first newline of s.
func dropFirstLine(s string) (string, bool) {
	_, rest, ok := strings.Cut(s, "\n")
	return rest, ok
}

// firstOf reports which of a or b occurs first in s and at which byte offset.
// On equal offsets the longer delimiter wins, since the shorter one is then
// necessarily a prefix of it.
func firstOf(s, a, b string) (which string, offset int, ok bool) {
	ia, ib := strings.Index(s, a), strings.Index(s, b)
	switch {
	case ia < 0 && ib < 0:
		return "", 0, false
	case ia < 0:
		return b, ib, true
	case ib < 0:
		return a, ia, true
	case ia < ib:
		return a, ia, true
	case ib < ia:
		return b, ib, true
	case len(b) > len(a):
		return b, ib, true
	default:
		return a, ia, true
	}
}
