// Package affinity contains the parser of filter rules annotated with content
// blocker affinities.
//
// Two forms of annotations are recognized.  A block directive:
//
//	!#safari_cb_affinity(privacy,social)
//	||example.org^
//	!#safari_cb_affinity
//
// and an inline modifier:
//
//	||example.org^$affinity=privacy|social
//
// The inline modifier takes precedence over an enclosing block.
package affinity

import (
	"iter"
	"strings"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
)

// Rule is a single filter rule with its affinity.
type Rule struct {
	// Text is the original text of the rule.
	Text string

	// Affinity is the decoded affinity of the rule.  [blocker.AffinityNone]
	// means that the rule only applies to the default category of its filter.
	Affinity blocker.Affinity
}

// Annotation constants.
const (
	// DirectivePrefix is the prefix of the lines that open and close affinity
	// blocks.
	DirectivePrefix = "!#safari_cb_affinity"

	// modifierPrefix is the prefix of the inline affinity modifier.
	modifierPrefix = "affinity="
)

// Parse returns a sequence of rules parsed from lines.  The sequence is lazy and
// can be iterated over several times.  Empty lines and directive lines are not
// yielded.  Malformed annotations never cause an error, the rules they apply to
// get [blocker.AffinityNone] instead.
func Parse(lines []string) (rules iter.Seq[Rule]) {
	return func(yield func(r Rule) (cont bool)) {
		blockAff := blocker.AffinityNone
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if rest, ok := strings.CutPrefix(line, DirectivePrefix); ok {
				blockAff = parseDirective(rest)

				continue
			}

			aff := blockAff
			if inline, ok := parseModifier(line); ok {
				aff = inline
			}

			if !yield(Rule{Text: line, Affinity: aff}) {
				return
			}
		}
	}
}

// parseDirective parses the part of a directive line following
// [DirectivePrefix] and returns the affinity of the block it opens.  An empty
// rest closes the block.
func parseDirective(rest string) (a blocker.Affinity) {
	if rest == "" {
		return blocker.AffinityNone
	}

	names, ok := strings.CutPrefix(rest, "(")
	if !ok {
		return blocker.AffinityNone
	}

	names, ok = strings.CutSuffix(names, ")")
	if !ok {
		return blocker.AffinityNone
	}

	return parseNames(names, ",")
}

// parseModifier returns the affinity from the inline modifier of the rule, if
// there is one.  ok is false if the rule has no affinity modifier.
func parseModifier(rule string) (a blocker.Affinity, ok bool) {
	i := strings.LastIndexByte(rule, '$')
	if i < 0 {
		return blocker.AffinityNone, false
	}

	for mod := range strings.SplitSeq(rule[i+1:], ",") {
		names, found := strings.CutPrefix(strings.TrimSpace(mod), modifierPrefix)
		if found {
			return parseNames(names, "|"), true
		}
	}

	return blocker.AffinityNone, false
}

// parseNames parses a list of affinity names separated by sep.  If any of the
// names is unknown, the whole list is considered malformed and
// [blocker.AffinityNone] is returned.
func parseNames(names, sep string) (a blocker.Affinity) {
	for name := range strings.SplitSeq(names, sep) {
		na, ok := blocker.NewAffinity(name)
		if !ok {
			return blocker.AffinityNone
		}

		a |= na
	}

	return a
}
