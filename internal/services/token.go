package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// tokenGuard owns the OAuth token shared by every request.
//
// Reads take a read lock. Refreshes go through a single-flight group so concurrent callers that see
// an expired or rejected token wait on one refresh instead of each starting their own.
type tokenGuard struct {
	mu        sync.RWMutex
	token     *oauth2.Token
	config    *oauth2.Config
	client    *http.Client
	group     singleflight.Group
	onRefresh func(*oauth2.Token)
	refreshes int
}

func newTokenGuard(config *oauth2.Config, client *http.Client, onRefresh func(*oauth2.Token)) *tokenGuard {
	return &tokenGuard{config: config, client: client, onRefresh: onRefresh}
}

func (g *tokenGuard) set(t *oauth2.Token) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = t
}

func (g *tokenGuard) current() *oauth2.Token {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// Token returns a valid token, refreshing it first when it has expired.
func (g *tokenGuard) Token(ctx context.Context) (*oauth2.Token, error) {
	tok := g.current()
	if tok == nil {
		return nil, shared.ErrNotAuthenticated
	}
	if tok.Valid() {
		return tok, nil
	}
	return g.Refresh(ctx, tok)
}

// Refresh replaces stale with a fresh token. When another caller already replaced stale, its token is returned.
func (g *tokenGuard) Refresh(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error) {
	v, err, _ := g.group.Do("refresh", func() (any, error) {
		cur := g.current()
		if cur != nil && cur != stale && cur.Valid() {
			return cur, nil
		}
		if cur == nil || cur.RefreshToken == "" {
			return nil, shared.ErrNoRefreshToken
		}

		if g.client != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
		}
		fresh, err := g.config.TokenSource(ctx, &oauth2.Token{RefreshToken: cur.RefreshToken}).Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		}
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = cur.RefreshToken
		}

		g.mu.Lock()
		g.token = fresh
		g.refreshes++
		g.mu.Unlock()

		if g.onRefresh != nil {
			g.onRefresh(fresh)
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}
