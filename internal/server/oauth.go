package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultCallbackPath is served when the redirect URI has no path.
const DefaultCallbackPath = "/callback"

// Exchanger trades an authorization code for a token. Implemented by services.SpotifyService.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthResult is the outcome of one authorization callback.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>chartx: {{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .box { text-align: center; background: white; padding: 2rem;
               border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="box">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
	Color   template.CSS
}

// OAuthHandler serves the authorization code redirect. It accepts exactly one callback.
type OAuthHandler struct {
	exchanger Exchanger
	path      string
	state     string
	results   chan OAuthResult
	once      sync.Once
	hit       atomic.Bool
}

// NewOAuthHandler creates a handler serving the path of redirectURI.
// state must be unguessable; it is compared against the state echoed by the provider.
func NewOAuthHandler(exchanger Exchanger, redirectURI, state string) *OAuthHandler {
	return &OAuthHandler{
		exchanger: exchanger,
		path:      CallbackPath(redirectURI),
		state:     state,
		results:   make(chan OAuthResult, 1),
	}
}

// CallbackPath returns the path component of redirectURI, or [DefaultCallbackPath].
func CallbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" || u.Path == "/" {
		return DefaultCallbackPath
	}
	return u.Path
}

// Routes returns the redirect path.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP checks state, exchanges the code and publishes the result on [OAuthHandler.Result].
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.hit.CompareAndSwap(false, true) {
		h.render(w, http.StatusBadRequest, "Already authorized", "This callback was already processed.")
		return
	}

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		h.render(w, http.StatusBadRequest, "Authorization failed", "The state parameter did not match. Run chartx auth again.")
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.Send(OAuthResult{err: err})
		h.render(w, http.StatusBadRequest, "Authorization failed", "Spotify did not grant access.")
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		h.render(w, http.StatusInternalServerError, "Authorization failed", "The authorization code could not be exchanged.")
		return
	}

	h.Send(OAuthResult{Token: token})
	h.render(w, http.StatusOK, "✓ Authorization successful", "You can close this window and return to the terminal.")
}

func (h *OAuthHandler) render(w http.ResponseWriter, status int, title, message string) {
	color := template.CSS("#1DB954")
	if status != http.StatusOK {
		color = "#E22134"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	resultPage.Execute(w, pageData{Title: title, Message: message, Color: color})
}

// Send publishes result. Only the first call has any effect.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}
