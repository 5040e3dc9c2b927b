// package models defines the data model for cross-provider playlist synchronization
package models

import (
	"fmt"
	"strings"
	"time"
)

// ProviderID is the canonical, lower-case name of a music provider.
type ProviderID string

const (
	Spotify ProviderID = "spotify"
	Deezer  ProviderID = "deezer"
	Fixture ProviderID = "fixture"
)

// KnownProviders lists every provider an adapter exists for, in display order.
var KnownProviders = []ProviderID{Spotify, Deezer, Fixture}

// ParseProviderID resolves a provider name case-insensitively ("Deezer" -> [Deezer]).
func ParseProviderID(name string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range KnownProviders {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

// DisplayName returns the provider's brand name.
func (p ProviderID) DisplayName() string {
	switch p {
	case Spotify:
		return "Spotify"
	case Deezer:
		return "Deezer"
	case Fixture:
		return "Fixture"
	default:
		return string(p)
	}
}

func (p ProviderID) String() string { return string(p) }

// Token is an OAuth access token for one provider.
//
// ExpiresAt is nil for tokens that do not expire (Deezer offline_access).
type Token struct {
	Provider     ProviderID
	AccessToken  string
	TokenType    string
	ExpiresAt    *time.Time
	RefreshToken string
}

// Expired reports whether the token has an expiry at or before now.
func (t Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// ConnectionStatus is a state of the per-provider connection state machine.
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connecting
	Connected
	ConnectionError
)

func (s ConnectionStatus) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectionError:
		return "error"
	default:
		return ""
	}
}

// ProviderConnection is the registry-owned connection state of one provider.
type ProviderConnection struct {
	Provider  ProviderID
	Status    ConnectionStatus
	Token     *Token
	LastError error
}

// Playlist is a read-only snapshot of a provider playlist.
type Playlist struct {
	Provider   ProviderID `json:"provider"`
	ExternalID string     `json:"external_id"`
	Title      string     `json:"title"`
	TrackCount int        `json:"track_count"`
}

// Song is a track reference. ExternalID is provider-specific and empty for songs
// not yet located on a given provider.
type Song struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

func (s Song) String() string {
	return s.Artist + " - " + s.Title
}
