package converter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/urlfilter/rules"
)

// webKitEntry is a single entry of a WebKit content blocker.
type webKitEntry struct {
	Trigger *webKitTrigger `json:"trigger"`
	Action  *webKitAction  `json:"action"`
}

// webKitTrigger defines when an entry is applied.
type webKitTrigger struct {
	URLFilter                string   `json:"url-filter"`
	ResourceType             []string `json:"resource-type,omitempty"`
	LoadType                 []string `json:"load-type,omitempty"`
	IfDomain                 []string `json:"if-domain,omitempty"`
	UnlessDomain             []string `json:"unless-domain,omitempty"`
	URLFilterIsCaseSensitive bool     `json:"url-filter-is-case-sensitive,omitempty"`
}

// webKitAction defines what an entry does.
type webKitAction struct {
	Type     string `json:"type"`
	Selector string `json:"selector,omitempty"`
}

// Action types.
const (
	actionBlock               = "block"
	actionCSSDisplayNone      = "css-display-none"
	actionIgnorePreviousRules = "ignore-previous-rules"
)

// Regular-expression constants.
const (
	urlFilterAny          = ".*"
	urlFilterDomainPrefix = `^[^:]+://+([^:/]+\.)?`
	urlFilterSeparator    = `[/:?=&]`
)

// key returns a string that uniquely identifies the entry.
func (e *webKitEntry) key() (k string) {
	t := e.Trigger

	return fmt.Sprintf(
		"%s|%v|%v|%v|%v|%t|%s|%s",
		t.URLFilter,
		t.ResourceType,
		t.LoadType,
		t.IfDomain,
		t.UnlessDomain,
		t.URLFilterIsCaseSensitive,
		e.Action.Type,
		e.Action.Selector,
	)
}

// ErrDomainConflict is returned when a rule both includes and excludes
// domains, which WebKit does not support.
const ErrDomainConflict errors.Error = "both permitted and restricted domains"

// newCosmeticEntry converts an element-hiding rule into an entry.
func newCosmeticEntry(rule string) (e *webKitEntry, err error) {
	if strings.Contains(rule, "#@#") {
		return nil, errors.Error("element-hiding exceptions are not supported")
	}

	domains, selector, _ := strings.Cut(rule, "##")
	if selector == "" {
		return nil, ErrEmptyRule
	}

	t := &webKitTrigger{
		URLFilter: urlFilterAny,
	}

	if domains != "" {
		err = t.setDomains(strings.Split(domains, ","))
		if err != nil {
			// Don't wrap the error, because it's informative enough as is.
			return nil, err
		}
	}

	return &webKitEntry{
		Trigger: t,
		Action: &webKitAction{
			Type:     actionCSSDisplayNone,
			Selector: selector,
		},
	}, nil
}

// listID is the filter-list identifier passed to the urlfilter rule parser.
// The converted rules are not matched, so the value is not important.
const listID = 1

// newNetworkEntry converts a network rule into an entry.
func newNetworkEntry(rule string) (e *webKitEntry, err error) {
	pattern, opts := splitOptions(rule)

	text := pattern
	if len(opts) > 0 {
		text += "$" + strings.Join(opts, ",")
	}

	_, err = rules.NewNetworkRule(text, listID)
	if err != nil {
		return nil, fmt.Errorf("parsing network rule: %w", err)
	}

	pattern, isAllowlist := strings.CutPrefix(pattern, "@@")

	e = &webKitEntry{
		Trigger: &webKitTrigger{},
		Action: &webKitAction{
			Type: actionBlock,
		},
	}

	if isAllowlist {
		e.Action.Type = actionIgnorePreviousRules
	}

	t := e.Trigger
	for _, opt := range opts {
		err = t.applyOption(opt)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", opt, err)
		}
	}

	isDocument := slices.Contains(t.ResourceType, resourceDocument)
	if isAllowlist && isDocument {
		t.ResourceType = slices.DeleteFunc(t.ResourceType, func(rt string) (ok bool) {
			return rt == resourceDocument
		})

		if domain, ok := domainOnlyPattern(pattern); ok {
			if len(t.IfDomain) > 0 || len(t.UnlessDomain) > 0 {
				return nil, ErrDomainConflict
			}

			t.URLFilter = urlFilterAny
			t.IfDomain = []string{"*" + domain}

			return e, nil
		}
	}

	t.URLFilter = patternToURLFilter(pattern)

	return e, nil
}

// splitOptions splits the rule into its pattern and its options.  The affinity
// option is removed, since it only affects the partitioning of rules.
func splitOptions(rule string) (pattern string, opts []string) {
	start := 0
	if p := strings.TrimPrefix(rule, "@@"); strings.HasPrefix(p, "/") {
		// Skip the regular expression, since it can contain the dollar sign.
		start = strings.LastIndexByte(rule, '/')
	}

	i := strings.LastIndexByte(rule[start:], '$')
	if i < 0 {
		return rule, nil
	}

	i += start
	pattern = rule[:i]
	for opt := range strings.SplitSeq(rule[i+1:], ",") {
		opt = strings.TrimSpace(opt)
		if opt != "" && !strings.HasPrefix(opt, "affinity=") {
			opts = append(opts, opt)
		}
	}

	return pattern, opts
}

// domainOnlyPattern returns the domain if the pattern only matches a domain
// and its subdomains, for example "||example.org^".
func domainOnlyPattern(pattern string) (domain string, ok bool) {
	domain, ok = strings.CutPrefix(pattern, "||")
	if !ok {
		return "", false
	}

	domain = strings.TrimSuffix(domain, "^")
	if domain == "" || strings.ContainsAny(domain, "/*^|:?") {
		return "", false
	}

	return domain, true
}

// regexpSpecial are the characters that must be escaped in a URL filter.
const regexpSpecial = `\.+?()|[]{}$`

// patternToURLFilter converts a rule pattern into a WebKit URL filter.
func patternToURLFilter(pattern string) (f string) {
	if l := len(pattern); l > 1 && pattern[0] == '/' && pattern[l-1] == '/' {
		return pattern[1 : l-1]
	}

	b := &strings.Builder{}
	switch {
	case strings.HasPrefix(pattern, "||"):
		b.WriteString(urlFilterDomainPrefix)
		pattern = pattern[2:]
	case strings.HasPrefix(pattern, "|"):
		b.WriteByte('^')
		pattern = pattern[1:]
	default:
		// Go on.
	}

	pattern, isEnd := strings.CutSuffix(pattern, "|")
	for _, r := range pattern {
		switch {
		case r == '*':
			b.WriteString(urlFilterAny)
		case r == '^':
			b.WriteString(urlFilterSeparator)
		case strings.ContainsRune(regexpSpecial, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	if isEnd {
		b.WriteByte('$')
	}

	if b.Len() == 0 {
		return urlFilterAny
	}

	return b.String()
}

// Resource types.
const (
	resourceDocument = "document"
	resourceFont     = "font"
	resourceImage    = "image"
	resourceMedia    = "media"
	resourcePopup    = "popup"
	resourceRaw      = "raw"
	resourceScript   = "script"
	resourceStyle    = "style-sheet"
)

// resourceTypes maps rule options to WebKit resource types.
var resourceTypes = map[string]string{
	"document":       resourceDocument,
	"font":           resourceFont,
	"image":          resourceImage,
	"media":          resourceMedia,
	"other":          resourceRaw,
	"popup":          resourcePopup,
	"script":         resourceScript,
	"stylesheet":     resourceStyle,
	"websocket":      resourceRaw,
	"xmlhttprequest": resourceRaw,
}

// Load types.
const (
	loadFirstParty = "first-party"
	loadThirdParty = "third-party"
)

// applyOption applies the rule option to t.
func (t *webKitTrigger) applyOption(opt string) (err error) {
	name, val, _ := strings.Cut(opt, "=")
	switch name {
	case "third-party", "3p":
		t.LoadType = []string{loadThirdParty}
	case "~third-party", "first-party", "1p":
		t.LoadType = []string{loadFirstParty}
	case "match-case":
		t.URLFilterIsCaseSensitive = true
	case "domain":
		return t.setDomains(strings.Split(val, "|"))
	default:
		if rt, ok := resourceTypes[name]; ok && !slices.Contains(t.ResourceType, rt) {
			t.ResourceType = append(t.ResourceType, rt)
		}
	}

	return nil
}

// setDomains sets the permitted and restricted domains of t.  The restricted
// domains are prefixed with a tilde.
func (t *webKitTrigger) setDomains(domains []string) (err error) {
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}

		if restricted, ok := strings.CutPrefix(d, "~"); ok {
			t.UnlessDomain = append(t.UnlessDomain, "*"+restricted)
		} else {
			t.IfDomain = append(t.IfDomain, "*"+d)
		}
	}

	if len(t.IfDomain) > 0 && len(t.UnlessDomain) > 0 {
		return ErrDomainConflict
	}

	return nil
}
