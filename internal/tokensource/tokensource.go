package tokensource

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// New reads the API key from store once and returns a token source serving it as a
// non-expiring bearer token.
func New(ctx context.Context, store Store) (oauth2.TokenSource, error) {
	key, err := store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("load upstream API key: %w", err)
	}
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: key,
		TokenType:   "Bearer",
	}), nil
}
