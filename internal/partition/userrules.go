package partition

import (
	"strings"
)

// AllowlistRule returns the rule that disables filtering on the domain.
func AllowlistRule(domain string) (rule string) {
	return "@@||" + domain + "$document"
}

// InvertedAllowlistRule returns the rule that disables filtering on every
// domain except the given ones.  If domains is empty, the rule disables
// filtering everywhere.
func InvertedAllowlistRule(domains []string) (rule string) {
	const base = "@@||*$document"

	if len(domains) == 0 {
		return base
	}

	b := &strings.Builder{}
	b.WriteString(base)
	b.WriteString(",domain=")
	for i, d := range domains {
		if i > 0 {
			b.WriteByte('|')
		}

		b.WriteByte('~')
		b.WriteString(d)
	}

	return b.String()
}
