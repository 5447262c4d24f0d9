package backend

import "context"

// TokenStore holds the bearer credentials of one caller.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	Tokens() (accessToken, refreshToken string)
	SetTokens(accessToken, refreshToken string)
	ClearTokens()
}

// StaticToken is a non-refreshable service credential.
type StaticToken string

// Tokens implements TokenStore.
func (t StaticToken) Tokens() (string, string) { return string(t), "" }

// SetTokens implements TokenStore.
func (StaticToken) SetTokens(string, string) {}

// ClearTokens implements TokenStore.
func (StaticToken) ClearTokens() {}

type tokensContextKey struct{}

// WithTokens binds a token store to ctx; authenticated calls made with the
// returned context use and refresh those tokens.
func WithTokens(ctx context.Context, store TokenStore) context.Context {
	return context.WithValue(ctx, tokensContextKey{}, store)
}

// TokensFromContext returns the token store bound to ctx, if any.
func TokensFromContext(ctx context.Context) TokenStore {
	store, _ := ctx.Value(tokensContextKey{}).(TokenStore)
	return store
}
