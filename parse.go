package upstream

import "strings"

var policyPrefixes = map[string]RotationAlgorithm{
	"random:":       RotRandom,
	"master-slave:": RotMasterSlave,
	"round-robin:":  RotRoundRobin,
	"hash:":         RotHashed,
	"sequential:":   RotSequential,
}

// ParseLine recognises an optional policy prefix (random:, master-slave:,
// round-robin:, hash:, sequential:), then splits the remainder on any of
// ";, \t\n\r" and calls AddUpstream on each non-empty span. It returns
// true if at least one span was accepted — partial success still counts.
func (l *List) ParseLine(str string, defaultPort uint16, userData any) bool {
	return l.parseLine(str, defaultPort, userData)
}

// ParseLineLen is like ParseLine but only considers the first n bytes of
// str, mirroring the original's length-bounded variant for callers
// holding a non-NUL-terminated buffer.
func (l *List) ParseLineLen(str string, n int, defaultPort uint16, userData any) bool {
	if n < len(str) {
		str = str[:n]
	}
	return l.parseLine(str, defaultPort, userData)
}

// FromStrings feeds every element of entries to ParseLine, the Go-idiomatic
// replacement for the UCL-object-specific from_ucl: this module has no UCL
// dependency, and rspamd_upstreams_from_ucl itself does nothing but
// iterate a list of strings and call parse_line on each.
func (l *List) FromStrings(entries []string, defaultPort uint16, userData any) bool {
	accepted := false
	for _, s := range entries {
		if l.ParseLine(s, defaultPort, userData) {
			accepted = true
		}
	}
	return accepted
}

func (l *List) parseLine(str string, defaultPort uint16, userData any) bool {
	str = stripPolicyPrefix(l, str)

	accepted := false
	for _, span := range splitEntries(str) {
		if span == "" {
			continue
		}
		if l.AddUpstream(span, defaultPort, ParseModeDefault, userData) {
			accepted = true
		}
	}
	return accepted
}

// stripPolicyPrefix consumes a recognised "policy:" prefix from str,
// applying it as the list's rotation policy, and returns the remainder.
// An unrecognised prefix is left untouched; parsing proceeds with the
// list's existing policy.
func stripPolicyPrefix(l *List, str string) string {
	for prefix, alg := range policyPrefixes {
		if strings.HasPrefix(str, prefix) {
			l.SetRotation(alg)
			return str[len(prefix):]
		}
	}
	return str
}

// splitEntries splits on any of ';', ',', ' ', '\t', '\n', '\r'.
func splitEntries(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ';', ',', ' ', '\t', '\n', '\r':
			return true
		default:
			return false
		}
	})
}
