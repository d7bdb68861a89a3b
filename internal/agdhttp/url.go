package agdhttp

import (
	"fmt"
	"net/url"

	"github.com/AdguardTeam/golibs/errors"
)

// ParseHTTPURL parses an absolute URL and makes sure that it is a valid HTTP(S)
// URL.  All returned errors will have the underlying type [*url.Error].
func ParseHTTPURL(s string) (u *url.URL, err error) {
	u, err = url.Parse(s)
	if err != nil {
		return nil, err
	}

	var parseErr error
	switch {
	case u.Host == "":
		parseErr = errors.Error("empty host")
	case u.Scheme != "http" && u.Scheme != "https":
		parseErr = fmt.Errorf("bad scheme %q", u.Scheme)
	default:
		return u, nil
	}

	return nil, &url.Error{
		Op:  "parse",
		URL: s,
		Err: parseErr,
	}
}
