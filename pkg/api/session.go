package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// KeyType distinguishes developer account keys from user-group keys.
type KeyType int

const (
	KeyTypeAccount KeyType = 0
	KeyTypeUser    KeyType = 1
)

// UserKey is a developer API key/secret pair.
type UserKey struct {
	Key    string
	Secret string
	Type   KeyType
}

var sigEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// SignAPIMessage returns the signature of msg under secret, as attached to a
// session context by WithUserKey.
func SignAPIMessage(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return "b" + strings.ToLower(sigEncoding.EncodeToString(mac.Sum(nil)))
}

// SessionContext carries the authorization material for remote calls.
//
// It is a value type: every With* method returns a derived copy, so a context
// bound to one thread is never silently reused for another.
type SessionContext struct {
	Host      string   `json:"host,omitempty"`
	APIKey    string   `json:"x-hub-api-key,omitempty"`
	KeyType   KeyType  `json:"x-hub-key-type,omitempty"`
	APISig    string   `json:"x-hub-api-sig,omitempty"`
	APISigMsg string   `json:"x-hub-api-sig-msg,omitempty"`
	Token     string   `json:"authorization,omitempty"`
	Thread    ThreadID `json:"x-hub-thread-id,omitempty"`
}

// NewSessionContext returns an empty context for the given endpoint.
func NewSessionContext(host string) SessionContext {
	return SessionContext{Host: host}
}

// WithUserKey attaches a developer key and a signature that expires at
// expiry.
func (c SessionContext) WithUserKey(k UserKey, expiry time.Time) SessionContext {
	msg := expiry.UTC().Format(time.RFC3339)
	c.APIKey = k.Key
	c.KeyType = k.Type
	c.APISigMsg = msg
	c.APISig = SignAPIMessage(k.Secret, msg)
	return c
}

// WithToken attaches a bearer token.
func (c SessionContext) WithToken(token string) SessionContext {
	c.Token = token
	return c
}

// WithThread scopes the context to a thread.
func (c SessionContext) WithThread(id ThreadID) SessionContext {
	c.Thread = id
	return c
}

// SignatureExpiry parses the expiry embedded in the signature message.
func (c SessionContext) SignatureExpiry() (time.Time, error) {
	if c.APISigMsg == "" {
		return time.Time{}, fmt.Errorf("session context has no signature")
	}
	t, err := time.Parse(time.RFC3339, c.APISigMsg)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse signature expiry: %w", err)
	}
	return t, nil
}

// Expired reports whether the signature is missing, malformed, or not valid
// after now.
func (c SessionContext) Expired(now time.Time) bool {
	exp, err := c.SignatureExpiry()
	if err != nil {
		return true
	}
	return !exp.After(now)
}

// ToJSON serializes the context for persistence.
func (c SessionContext) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// SessionContextFromJSON restores a serialized context. A non-empty host
// replaces the stored endpoint.
func SessionContextFromJSON(data []byte, host string) (SessionContext, error) {
	var c SessionContext
	if err := json.Unmarshal(data, &c); err != nil {
		return SessionContext{}, fmt.Errorf("decode session context: %w", err)
	}
	if host != "" {
		c.Host = host
	}
	return c, nil
}
