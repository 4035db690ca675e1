// Package tokensource loads the upstream API key and exposes it as an oauth2.TokenSource.
//
// The key lives in one of three stores:
//   - EnvStore reads an environment variable and is read-only
//   - FileStore keeps the key in a file readable only by the owner
//   - KeyringStore uses the operating system keyring
//
// # Usage
//
//	store := tokensource.NewKeyringStore()
//	ts, err := tokensource.New(ctx, store)
//	// ts implements oauth2.TokenSource and can be used with oauth2.Transport
//
// Writing an empty key clears the stored value:
//
//	err := store.Write(ctx, "")
package tokensource
