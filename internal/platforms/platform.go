package platforms

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/models"
)

// CookieSaver persists a refreshed VRChat session cookie between processor
// restarts.
type CookieSaver interface {
	SaveVRChatCookie(ctx context.Context, userID, cookie string) error
}

// PageCache stores rendered website pages for the public endpoint.
type PageCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Deps bundles the process-wide collaborators adapters need. Per-user session
// state lives inside each Updater instance, never here.
type Deps struct {
	Log  *slog.Logger
	HTTP *http.Client

	CookieSaver CookieSaver
	Publisher   *WebsitePublisher // nil when no bucket is configured
	PageCache   PageCache         // nil when redis is unavailable

	// DiscordStatusMessageURL points at the companion bot that owns the
	// pinned status message; empty when that deployment feature is off.
	DiscordStatusMessageURL string
	StatusMessageAvailable  bool
}

// SupportedPlatforms lists the platforms this deployment can drive. The
// pinned-message editor is only offered when the companion bot exists.
func SupportedPlatforms(deps Deps) []models.Platform {
	supported := []models.Platform{
		models.PlatformDiscord,
		models.PlatformVRChat,
		models.PlatformWebsite,
		models.PlatformPluralKit,
	}
	if deps.StatusMessageAvailable {
		supported = append(supported, models.PlatformDiscordStatusMessage)
	}
	return supported
}

// Updater is one platform adapter instance owned by exactly one change
// processor. The Platform set is closed, so every operation dispatches over
// the known variants instead of an open interface.
type Updater struct {
	platform models.Platform
	deps     Deps

	lastErr error

	// per-variant session state, exclusively owned by this instance
	vrchat    vrchatSession
	pluralkit pluralkitSession
}

func NewUpdater(platform models.Platform, deps Deps) *Updater {
	return &Updater{platform: platform, deps: deps}
}

func (u *Updater) Platform() models.Platform {
	return u.platform
}

// Enabled is a pure function of configuration.
func (u *Updater) Enabled(cfg *models.UserConfigForUpdater) bool {
	switch u.platform {
	case models.PlatformDiscord:
		return cfg.EnableDiscord
	case models.PlatformDiscordStatusMessage:
		return cfg.EnableDiscordStatusMessage
	case models.PlatformVRChat:
		return cfg.EnableVRChat
	case models.PlatformWebsite:
		return cfg.EnableWebsite
	case models.PlatformPluralKit:
		return cfg.EnablePluralKit
	}
	return false
}

func (u *Updater) configured(cfg *models.UserConfigForUpdater) bool {
	switch u.platform {
	case models.PlatformDiscord:
		return cfg.DiscordToken != ""
	case models.PlatformDiscordStatusMessage:
		return cfg.DiscordStatusMessageToken != "" && u.deps.DiscordStatusMessageURL != ""
	case models.PlatformVRChat:
		return cfg.VRChatUsername != "" && cfg.VRChatPassword != ""
	case models.PlatformWebsite:
		return cfg.WebsiteURLName != "" && u.deps.Publisher != nil
	case models.PlatformPluralKit:
		return cfg.PluralKitToken != ""
	}
	return false
}

// Setup establishes the session state later calls rely on. It is called once
// per processor lifetime and is safe to skip for stateless variants.
func (u *Updater) Setup(ctx context.Context, cfg *models.UserConfigForUpdater) error {
	if !u.configured(cfg) {
		u.lastErr = nil
		return nil
	}

	var err error
	switch u.platform {
	case models.PlatformVRChat:
		err = u.setupVRChat(ctx, cfg)
	case models.PlatformPluralKit:
		err = u.setupPluralKit(ctx, cfg)
	case models.PlatformDiscord, models.PlatformDiscordStatusMessage, models.PlatformWebsite:
		// no session bootstrap needed
	}

	u.lastErr = err
	return err
}

// UpdateFrontingStatus pushes the snapshot to the platform, formatted per its
// constraints. The outcome is remembered for Status. An enabled but
// unconfigured platform is skipped, same as Setup: Status reports
// NotConfigured and the cycle carries on.
func (u *Updater) UpdateFrontingStatus(ctx context.Context, cfg *models.UserConfigForUpdater, snap fronting.Snapshot) error {
	if !u.configured(cfg) {
		u.lastErr = nil
		return nil
	}

	var err error
	switch u.platform {
	case models.PlatformDiscord:
		err = u.updateDiscord(ctx, cfg, snap)
	case models.PlatformDiscordStatusMessage:
		err = u.updateDiscordStatusMessage(ctx, cfg, snap)
	case models.PlatformVRChat:
		err = u.updateVRChat(ctx, cfg, snap)
	case models.PlatformWebsite:
		err = u.updateWebsite(ctx, cfg, snap)
	case models.PlatformPluralKit:
		err = u.updatePluralKit(ctx, cfg, snap)
	}

	u.lastErr = err
	return err
}

// Status summarizes the adapter's last known outcome. Cheap and synchronous:
// it never touches the network.
func (u *Updater) Status(cfg *models.UserConfigForUpdater) models.UpdaterStatus {
	if !u.Enabled(cfg) {
		return models.StatusDisabledValue()
	}
	if !u.configured(cfg) {
		return models.StatusNotConfiguredValue()
	}
	if u.lastErr != nil {
		return models.StatusErrorValue(u.lastErr)
	}
	return models.StatusOkValue()
}
