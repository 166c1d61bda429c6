package services

import (
	"context"

	"github.com/desertthunder/chartx/internal/models"
)

// Catalog searches the target service for tracks.
type Catalog interface {
	// SearchTracks runs a free-text query and returns at most limit candidates in service order.
	//
	// Failures are typed: [shared.AuthError], [shared.RateLimitError], [shared.ServiceUnavailableError] or [shared.APIError].
	SearchTracks(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error)
}

// PlaylistWriter creates playlists and appends tracks to them.
type PlaylistWriter interface {
	// CreatePlaylist creates an empty playlist owned by the authenticated user.
	CreatePlaylist(ctx context.Context, name, description string) (*models.RemotePlaylist, error)

	// AddTracks appends externalIDs, in order, to the end of the playlist. At most [MaxTracksPerRequest] per call.
	AddTracks(ctx context.Context, playlistID string, externalIDs []string) error
}

// MaxTracksPerRequest is the most tracks Spotify accepts in one add request.
const MaxTracksPerRequest = 100
