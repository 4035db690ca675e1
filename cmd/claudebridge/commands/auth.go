package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/claudebridge/internal/app"
	"github.com/florianilch/claudebridge/internal/tokensource"
)

// authCommand returns the 'auth' subcommand for managing the upstream API key.
func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the upstream API key",
		Commands: []*cli.Command{
			{
				Name:   "set-key",
				Usage:  "Save the upstream API key to the configured storage",
				Action: authSetKeyAction,
			},
			{
				Name:   "clear-key",
				Usage:  "Remove the upstream API key from the configured storage",
				Action: authClearKeyAction,
			},
			{
				Name:   "status",
				Usage:  "Report whether an upstream API key is available",
				Action: authStatusAction,
			},
		},
	}
}

// writableStore returns the configured store, rejecting env storage which is read-only.
func writableStore(cmd *cli.Command) (tokensource.Store, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.Storage == app.TokenStorageTypeEnv {
		return nil, fmt.Errorf("cannot modify env storage (read-only). Set %s or configure file or keyring storage", cfg.Auth.EnvKey)
	}

	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}
	return store, nil
}

func authSetKeyAction(ctx context.Context, cmd *cli.Command) error {
	store, err := writableStore(cmd)
	if err != nil {
		return err
	}

	key, err := readKey(ctx, cmd.Root().Reader)
	if err != nil {
		return err
	}
	if key == "" {
		return errors.New("API key cannot be empty")
	}

	if err := store.Write(ctx, key); err != nil {
		return fmt.Errorf("failed to write API key: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, "API key saved to configured storage")
	return nil
}

func authClearKeyAction(ctx context.Context, cmd *cli.Command) error {
	store, err := writableStore(cmd)
	if err != nil {
		return err
	}

	// Clear via empty write to keep the storage abstraction.
	if err := store.Write(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear API key: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, "API key cleared from configured storage")
	return nil
}

func authStatusAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}

	out := cmd.Root().Writer
	key, err := store.Read(ctx)
	switch {
	case errors.Is(err, tokensource.ErrNoToken):
		fmt.Fprintf(out, "No API key found (storage: %s)\n", cfg.Auth.Storage)
		return nil
	case err != nil:
		return fmt.Errorf("failed to read API key: %w", err)
	}

	fmt.Fprintf(out, "API key configured (storage: %s): %s\n", cfg.Auth.Storage, maskKey(key))
	return nil
}

// maskKey keeps only enough of key to tell keys apart.
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-7) + key[len(key)-4:]
}

// readKey prompts for the key without echo on a terminal and reads one line otherwise, so
// the key can be piped in.
func readKey(ctx context.Context, in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		key, err := readSecureInput(ctx, f, "Enter upstream API key: ")
		return strings.TrimSpace(key), err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecureInput reads user input with hidden display and context cancellation support.
// Goroutine+select pattern required because term.ReadPassword has no native context support.
func readSecureInput(ctx context.Context, f *os.File, prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(f.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.value, nil
	}
}
