package fetch

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// Prompter asks the user for things the fetch can't work out itself
type Prompter interface {
	// Credentials asks for a user name and password for realm on host
	Credentials(host, realm string) (user, pass string, err error)
	// Confirm asks a yes or no question
	Confirm(question string) bool
}

// parseRealm returns the realm of a Basic challenge
func parseRealm(challenge string) (string, error) {
	scheme, params, _ := strings.Cut(strings.TrimSpace(challenge), " ")
	if !strings.EqualFold(scheme, "Basic") {
		return "", errors.Errorf("unsupported authentication scheme %q", scheme)
	}
	lower := strings.ToLower(params)
	i := strings.Index(lower, "realm=")
	if i < 0 {
		return "", errors.Errorf("no realm in challenge %q", challenge)
	}
	realm := params[i+len("realm="):]
	if strings.HasPrefix(realm, `"`) {
		end := strings.IndexByte(realm[1:], '"')
		if end < 0 {
			return "", errors.Errorf("unterminated realm in challenge %q", challenge)
		}
		return realm[1 : end+1], nil
	}
	if end := strings.IndexAny(realm, ", "); end >= 0 {
		realm = realm[:end]
	}
	return realm, nil
}

// basicAuth makes the value of a Basic authorization header
func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// authorize returns the header value to retry a request to host with
// after a challenge for realm.
//
// The first time round cached credentials are used, then those from
// userinfo, and then the user is asked.  If they were rejected
// already the user is asked whether to try again.
func (f *Fetcher) authorize(host, realm string, userinfo *url.Userinfo, rejected bool) (string, error) {
	key := host + " " + realm
	if rejected {
		f.auth.Delete(key)
		if f.prompt == nil || !f.prompt.Confirm(fmt.Sprintf("Authorization failed for %q on %s. Retry", realm, host)) {
			return "", ErrAuthFailed
		}
	} else {
		if cred, ok := f.auth.Get(key); ok {
			return cred.(string), nil
		}
		if userinfo != nil {
			pass, _ := userinfo.Password()
			cred := basicAuth(userinfo.Username(), pass)
			f.auth.Set(key, cred, cache.DefaultExpiration)
			return cred, nil
		}
	}
	if f.prompt == nil {
		return "", errors.Wrapf(ErrAuthFailed, "no credentials for %q on %s", realm, host)
	}
	user, pass, err := f.prompt.Credentials(host, realm)
	if err != nil {
		return "", err
	}
	cred := basicAuth(user, pass)
	f.auth.Set(key, cred, cache.DefaultExpiration)
	return cred, nil
}
