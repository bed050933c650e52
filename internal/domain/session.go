package domain

import "time"

// Session is the offline access token Shopify granted to a shop
type Session struct {
	Shop        string    `json:"shop" bson:"shop"`
	AccessToken string    `json:"accessToken" bson:"accessToken"`
	Scope       string    `json:"scope" bson:"scope"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// OAuthStateTTL bounds how long an authorization redirect may stay in flight
const OAuthStateTTL = 10 * time.Minute

// OAuthState is the in-flight record of an authorization redirect, keyed by State
type OAuthState struct {
	State     string    `json:"state" bson:"_id"`
	Nonce     string    `json:"nonce" bson:"nonce"`
	Shop      string    `json:"shop" bson:"shop"`
	Host      string    `json:"host" bson:"host"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Expired reports whether the state can no longer complete an authorization
func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionToken is the decoded App Bridge session token of an embedded admin request
type SessionToken struct {
	Shop      string    `json:"shop"`
	User      string    `json:"user"`
	SessionID string    `json:"sessionId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
