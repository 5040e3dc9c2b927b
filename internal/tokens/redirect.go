package tokens

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

const defaultTokenType = "Bearer"

// maxExpiresIn is the largest expires_in representable as a [time.Duration].
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// ParseRedirect extracts a token from a redirect's query string (service=<provider>) and
// fragment (access_token, token_type, expires_in). Leading "?" and "#" are optional.
//
// expires is accepted as an alias of expires_in, token_type defaults to Bearer, and an
// expiry of 0 means the token does not expire.
func ParseRedirect(search, hash string, now time.Time) (models.Token, error) {
	query, err := url.ParseQuery(strings.TrimPrefix(search, "?"))
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: query: %w", shared.ErrInvalidArgument, err)
	}
	service := query.Get("service")
	if service == "" {
		return models.Token{}, fmt.Errorf("%w: service", shared.ErrMissingArgument)
	}
	provider, err := models.ParseProviderID(service)
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: %w", shared.ErrUnknownProvider, err)
	}

	fragment, err := url.ParseQuery(strings.TrimPrefix(hash, "#"))
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: fragment: %w", shared.ErrInvalidArgument, err)
	}

	access := fragment.Get("access_token")
	if access == "" {
		return models.Token{}, fmt.Errorf("%w: access_token", shared.ErrMissingArgument)
	}

	raw := fragment.Get("expires_in")
	if raw == "" {
		raw = fragment.Get("expires")
	}
	if raw == "" {
		return models.Token{}, fmt.Errorf("%w: expires_in", shared.ErrMissingArgument)
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds < 0 || seconds > maxExpiresIn {
		return models.Token{}, fmt.Errorf("%w: expires_in %q", shared.ErrInvalidArgument, raw)
	}

	tokenType := fragment.Get("token_type")
	if tokenType == "" {
		tokenType = defaultTokenType
	}

	return models.Token{
		Provider:    provider,
		AccessToken: access,
		TokenType:   tokenType,
		ExpiresAt:   expiry(now, seconds),
	}, nil
}

func expiry(now time.Time, seconds int64) *time.Time {
	if seconds == 0 {
		return nil
	}
	at := now.Add(time.Duration(seconds) * time.Second)
	return &at
}

// Location is an address whose query and fragment may carry an OAuth redirect.
type Location interface {
	Search() string
	Hash() string
	// Strip removes the query and fragment from the visible address.
	Strip()
}

// URLLocation adapts a [url.URL] to [Location].
type URLLocation struct {
	URL *url.URL
}

func (l URLLocation) Search() string { return l.URL.RawQuery }
func (l URLLocation) Hash() string {
	if l.URL.RawFragment != "" {
		return l.URL.RawFragment
	}
	return l.URL.Fragment
}

func (l URLLocation) Strip() {
	l.URL.RawQuery = ""
	l.URL.Fragment = ""
	l.URL.RawFragment = ""
}
