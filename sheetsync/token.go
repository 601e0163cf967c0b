package sheetsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

// tokenCache persists the OAuth2 token as JSON on disk so subsequent runs
// skip the interactive flow while the refresh token stays valid.
type tokenCache struct {
	path string
}

func (c tokenCache) load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode cached token: %w", err)
	}
	return &tok, nil
}

func (c tokenCache) save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, data, 0o600)
}

// savingSource wraps a TokenSource and writes each token it mints back to
// the cache, so refreshed tokens survive restarts.
type savingSource struct {
	src    oauth2.TokenSource
	cache  tokenCache
	client *Client
}

func (s savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if err := s.cache.save(tok); err != nil {
		s.client.logger.Warn("sheetsync: failed to cache refreshed token", "error", err)
	}
	return tok, nil
}

// tokenSource builds the token source used for all Sheets calls. It prefers
// the cached token, refreshing it when expired; when no usable token
// exists it runs the interactive browser flow.
func (c *Client) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(c.cfg.CredentialsFile)
	if err != nil {
		return nil, &AuthError{Op: "load credentials", Cause: err}
	}
	oc, err := google.ConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, &AuthError{Op: "parse credentials", Cause: err}
	}

	cache := tokenCache{path: c.cfg.TokenFile}
	tok, err := cache.load()
	if err == nil && (tok.Valid() || tok.RefreshToken != "") {
		src := oc.TokenSource(ctx, tok)
		if fresh, err := src.Token(); err == nil {
			if err := cache.save(fresh); err != nil {
				c.logger.Warn("sheetsync: failed to cache token", "error", err)
			}
			return oauth2.ReuseTokenSource(fresh, savingSource{src: src, cache: cache, client: c}), nil
		}
		c.logger.Warn("sheetsync: cached token unusable, re-authorizing")
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("sheetsync: failed to load cached token", "error", err)
	}

	tok, err = c.interactiveFlow(ctx, oc)
	if err != nil {
		return nil, &AuthError{Op: "interactive flow", Cause: err}
	}
	if err := cache.save(tok); err != nil {
		c.logger.Warn("sheetsync: failed to cache token", "error", err)
	}
	src := oc.TokenSource(ctx, tok)
	return oauth2.ReuseTokenSource(tok, savingSource{src: src, cache: cache, client: c}), nil
}

// interactiveFlow runs the local-redirect authorization code flow: a
// loopback HTTP listener on an ephemeral port receives the callback, the
// authorization URL is surfaced through OnAuthURL, and the flow blocks
// until the callback arrives or ctx is canceled.
func (c *Client) interactiveFlow(ctx context.Context, oc *oauth2.Config) (*oauth2.Token, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}
	defer lis.Close()

	oc.RedirectURL = fmt.Sprintf("http://%s/oauth/callback", lis.Addr())
	state := uuid.NewString()

	type callback struct {
		code string
		err  error
	}
	results := make(chan callback, 1)

	r := chi.NewRouter()
	r.Get("/oauth/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		var res callback
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			res.err = errors.New("oauth callback state mismatch")
		case q.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusBadRequest)
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			res.err = errors.New("oauth callback missing code")
		default:
			fmt.Fprintln(w, "Authorization received. You can close this tab.")
			res.code = q.Get("code")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: r}
	go srv.Serve(lis)
	defer srv.Close()

	authURL := oc.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if c.cfg.OnAuthURL != nil {
		c.cfg.OnAuthURL(authURL)
	}
	c.logger.Info("sheetsync: authorization required", "url", authURL)

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := oc.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("exchange authorization code: %w", err)
		}
		return tok, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
