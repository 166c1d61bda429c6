package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/chartx/internal/server"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization, and exchanges the code for tokens.
// The tokens are saved to the config file as soon as the exchange succeeds.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or the environment", shared.ErrMissingCredentials, r.configPath)
	}

	svc, err := r.spotify()
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	state := shared.GenerateID()
	authURL := svc.AuthURL(state)
	handler := server.NewOAuthHandler(svc, svc.Config().RedirectURL, state)
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)

	token, err := server.AwaitCallback(ctx, handler, server.CallbackOpts{
		Addr:    addr,
		Timeout: cmd.Duration("timeout"),
		Logger:  shared.WithLogger(r.logger, "component", "oauth"),
		Ready: func(bound string) {
			r.logger.Infof("OAuth callback server listening at %v", bound)
			if cmd.Bool("no-browser") {
				r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
			} else {
				r.writePlain("→ Opening browser for Spotify authorization...\n")
				if err := shared.OpenBrowser(authURL); err != nil {
					r.logger.Warnf("failed to open browser automatically %v", err)
					r.writePlainln("⚠ Could not open browser automatically.")
					r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
				}
			}
			r.writePlain("→ Waiting for authorization...\n")
		},
	})
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s\n", r.configPath)
	}
	if token.RefreshToken == "" {
		r.logger.Warn("no refresh token received, you will need to authorize again when the access token expires")
	}

	if user, err := svc.CurrentUser(ctx); err != nil {
		r.logger.Warn("could not fetch Spotify profile", "error", err)
	} else {
		r.writePlain("Signed in as %s (%s)\n", user.DisplayName, user.ID)
	}

	r.writePlain("\nYou can now use: chartx build <source>\n")
	return nil
}
