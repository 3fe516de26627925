package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// Storage key of the connection registry
const ConnectionsKey = "mari_hub_connections"

type ProviderID string

const (
	ProviderGoogleAds     ProviderID = "google_ads"
	ProviderMetaAds       ProviderID = "meta_ads"
	ProviderGA4           ProviderID = "ga4"
	ProviderSearchConsole ProviderID = "gsc"
)

// LiveProviders is the fixed order live sources are merged in
var LiveProviders = []ProviderID{
	ProviderGoogleAds,
	ProviderMetaAds,
	ProviderGA4,
	ProviderSearchConsole,
}

// Label returns the provider name stamped on records
func (p ProviderID) Label() string {
	switch p {
	case ProviderGoogleAds:
		return "Google Ads"
	case ProviderMetaAds:
		return "Meta Ads"
	case ProviderGA4:
		return "Analytics"
	case ProviderSearchConsole:
		return "Search Console"
	}
	return string(p)
}

func (p ProviderID) Known() bool {
	for _, known := range LiveProviders {
		if p == known {
			return true
		}
	}
	return false
}

// IsGoogle reports whether the provider is served by a Google API
func (p ProviderID) IsGoogle() bool {
	return p == ProviderGoogleAds || p == ProviderGA4 || p == ProviderSearchConsole
}

// ConnectionStatus is the per-provider authorization state
type ConnectionStatus struct {
	Provider    ProviderID `json:"provider"`
	IsConnected bool       `json:"isConnected"`
	AccessToken string     `json:"accessToken,omitempty"`
	TokenExpiry *time.Time `json:"tokenExpiry,omitempty"`
	AccountID   string     `json:"accountId,omitempty"`
	LastSync    int64      `json:"lastSync,omitempty"`
}

// Usable reports whether a live fetch can be attempted
func (c ConnectionStatus) Usable() bool {
	return c.IsConnected && c.AccessToken != ""
}

func (c ConnectionStatus) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: c.AccessToken,
		TokenType:   "Bearer",
	}
	if c.TokenExpiry != nil {
		tok.Expiry = *c.TokenExpiry
	}
	return tok
}
