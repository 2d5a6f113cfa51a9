// Command invoicepilot-oauth-init authorizes the ledger worker against a
// personal Google account and saves the refresh token to
// GOOGLE_OAUTH_TOKEN_FILE.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"invoicepilot/internal/archive/google"
	"invoicepilot/internal/cli"
	"invoicepilot/internal/config"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := config.Load()

	if err := run(cfg); err != nil {
		logger.Error("OAuth initialization failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	conf, err := google.OAuthConfig(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return err
	}
	outFile := cfg.GoogleOAuthTokenFile
	if outFile == "" {
		outFile = "token.json"
	}

	// The redirect URI must be listed on the OAuth client.
	conf.RedirectURL = "http://localhost:" + cfg.OAuthRedirectPort + "/callback"

	state, err := randomState()
	if err != nil {
		return err
	}

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			results <- result{err: fmt.Errorf("authorization denied: %s", q.Get("error"))}
		case q.Get("state") != state:
			http.Error(w, "State mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			results <- result{code: q.Get("code")}
		}
	})
	srv := &http.Server{
		Addr:              ":" + cfg.OAuthRedirectPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- result{err: fmt.Errorf("callback server: %w", err)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := cli.ShutdownContext(2 * time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var res result
	select {
	case res = <-results:
	case <-ctx.Done():
		return errors.New("authorization timed out")
	}
	if res.err != nil {
		return res.err
	}

	tok, err := conf.Exchange(ctx, res.code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	if err := saveToken(outFile, tok); err != nil {
		return err
	}
	fmt.Printf("Saved token to %s\n", outFile)
	return nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
