package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/models"
)

const (
	discordAPIBase         = "https://discord.com/api/v9"
	discordCustomStatusMax = 128
)

// updateDiscord sets the user's custom status through the settings endpoint.
func (u *Updater) updateDiscord(ctx context.Context, cfg *models.UserConfigForUpdater, snap fronting.Snapshot) error {
	text := fronting.FormatStatus(fronting.Format{
		MaxLength:          discordCustomStatusMax,
		Prefix:             cfg.StatusPrefix,
		StatusIfNoFronters: cfg.StatusNoFronts,
		TruncateNamesTo:    cfg.StatusTruncateNamesTo,
	}, snap)

	body, err := json.Marshal(map[string]any{
		"custom_status": map[string]string{"text": text},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		discordAPIBase+"/users/@me/settings", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", cfg.DiscordToken)
	req.Header.Set("Content-Type", "application/json")

	return u.doExpectOK(req, "discord custom status")
}

// updateDiscordStatusMessage asks the companion bot to edit the user's pinned
// status message. The bot owns the message; we only hand it the new text.
func (u *Updater) updateDiscordStatusMessage(ctx context.Context, cfg *models.UserConfigForUpdater, snap fronting.Snapshot) error {
	text := fronting.FormatStatus(fronting.Format{
		Prefix:             cfg.StatusPrefix,
		StatusIfNoFronters: cfg.StatusNoFronts,
		TruncateNamesTo:    cfg.StatusTruncateNamesTo,
	}, snap)

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		u.deps.DiscordStatusMessageURL+"/v1/status-message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.DiscordStatusMessageToken)
	req.Header.Set("Content-Type", "application/json")

	return u.doExpectOK(req, "discord status message")
}

// doExpectOK runs the request and treats any non-2xx response as an error,
// reading a short error excerpt from the body.
func (u *Updater) doExpectOK(req *http.Request, what string) error {
	resp, err := u.deps.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("%s: status %d: %s", what, resp.StatusCode, string(excerpt))
}
