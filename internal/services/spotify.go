// Spotify Web API implementation of [Catalog] and [PlaylistWriter]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	Product     string `json:"product"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Public       bool         `json:"public"`
	URI          string       `json:"uri"`
	ExternalURLs externalURLs `json:"external_urls"`
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	Credentials shared.SpotifyConfig
	Public      bool         // visibility of created playlists
	HTTPClient  *http.Client // used for API and token requests
	BaseURL     string       // API root, defaults to the public Web API
	AuthURL     string
	TokenURL    string
	OnToken     func(*oauth2.Token) // called whenever a new token is obtained
	Logger      *log.Logger
}

// SpotifyService talks to the Spotify Web API.
//
// It is safe for concurrent use. The OAuth token lives in a guard that serializes refreshes.
type SpotifyService struct {
	config     *oauth2.Config
	tokens     *tokenGuard
	httpClient *http.Client
	baseURL    string
	public     bool
	onToken    func(*oauth2.Token)
	logger     *log.Logger

	userMu sync.Mutex
	userID string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// A stored refresh token in the credentials is loaded so the service is usable without a new authorization.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	creds := opts.Credentials
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	authURL, tokenURL := opts.AuthURL, opts.TokenURL
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	config := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &SpotifyService{
		config:     config,
		httpClient: client,
		baseURL:    baseURL,
		public:     opts.Public,
		onToken:    opts.OnToken,
		logger:     logger,
	}
	s.tokens = newTokenGuard(config, opts.HTTPClient, s.handleToken)

	if tok := creds.Token(); tok != nil {
		s.tokens.set(tok)
	}

	return s, nil
}

func (s *SpotifyService) handleToken(t *oauth2.Token) {
	s.logger.Debug("spotify token refreshed", "expiry", t.Expiry)
	if s.onToken != nil {
		s.onToken(t)
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Config exposes the OAuth2 configuration for the authorization code flow.
func (s *SpotifyService) Config() *oauth2.Config {
	return s.config
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and starts using it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if s.tokens.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.tokens.client)
	}
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	s.tokens.set(token)
	if s.onToken != nil {
		s.onToken(token)
	}
	return token, nil
}

// Authenticate installs credentials. Expects an "access_token", a "refresh_token", or an "auth_code".
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	access, refresh := credentials["access_token"], credentials["refresh_token"]
	if access != "" || refresh != "" {
		tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
		if access == "" {
			tok.Expiry = time.Unix(1, 0)
		}
		s.tokens.set(tok)
		return nil
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		_, err := s.Exchange(ctx, authCode)
		return err
	}

	return fmt.Errorf("%w: missing access_token, refresh_token or auth_code", shared.ErrMissingCredentials)
}

// Authenticated reports whether a token is loaded.
func (s *SpotifyService) Authenticated() bool {
	return s.tokens.current() != nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// A 401 forces one token refresh and a single replay; any other failure is mapped to a typed error.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return &shared.AuthError{Err: err}
	}

	resp, err := s.send(ctx, method, endpoint, payload, tok)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		s.logger.Debug("spotify rejected token, refreshing", "endpoint", endpoint)

		if tok, err = s.tokens.Refresh(ctx, tok); err != nil {
			return &shared.AuthError{StatusCode: http.StatusUnauthorized, Err: err}
		}
		if resp, err = s.send(ctx, method, endpoint, payload, tok); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (s *SpotifyService) send(ctx context.Context, method, endpoint string, payload []byte, tok *oauth2.Token) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &shared.ServiceUnavailableError{Err: err}
	}
	return resp, nil
}

// statusError maps a non-2xx response to a typed error.
func statusError(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &shared.AuthError{StatusCode: code, Err: errors.New(readSnippet(resp.Body))}
	case code == http.StatusTooManyRequests:
		return &shared.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	case code >= 500:
		return &shared.ServiceUnavailableError{StatusCode: code}
	default:
		return &shared.APIError{StatusCode: code, Body: readSnippet(resp.Body)}
	}
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unparseable values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	s.userMu.Lock()
	s.userID = user.ID
	s.userMu.Unlock()

	return &user, nil
}

func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.userMu.Lock()
	id := s.userID
	s.userMu.Unlock()
	if id != "" {
		return id, nil
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// SearchTracks implements [Catalog].
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidArgument)
	}
	limit = min(max(limit, 1), 50)

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	var response searchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]models.MatchCandidate, 0, len(response.Tracks.Items))
	for _, tr := range response.Tracks.Items {
		if tr.ID == "" {
			continue
		}
		names := make([]string, len(tr.Artists))
		for i, a := range tr.Artists {
			names[i] = a.Name
		}
		candidates = append(candidates, models.MatchCandidate{
			ExternalID: tr.ID,
			Title:      tr.Name,
			Artist:     strings.Join(names, ", "),
			Popularity: tr.Popularity,
			DurationMs: tr.DurationMS,
		})
	}

	return candidates, nil
}

// CreatePlaylist implements [PlaylistWriter].
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (*models.RemotePlaylist, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	body := createPlaylistRequest{Name: name, Description: description, Public: s.public}

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}

	return &models.RemotePlaylist{ID: playlist.ID, Name: playlist.Name, URL: playlist.ExternalURLs.Spotify}, nil
}

// AddTracks implements [PlaylistWriter].
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	if len(externalIDs) > MaxTracksPerRequest {
		return fmt.Errorf("%w: at most %d tracks per request, got %d", shared.ErrInvalidArgument, MaxTracksPerRequest, len(externalIDs))
	}

	uris := make([]string, len(externalIDs))
	for i, id := range externalIDs {
		uris[i] = "spotify:track:" + id
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, addTracksRequest{URIs: uris}, nil)
}
