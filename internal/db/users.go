package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GollyTicker/PluralSync/internal/models"
	"github.com/GollyTicker/PluralSync/internal/security"
)

// UserStore reads per-user updater configuration and manages account rows.
// Secrets are stored in enc__* columns encrypted with a per-user AES-GCM key.
type UserStore struct {
	log    *slog.Logger
	db     *DB
	appKey []byte
}

func NewUserStore(log *slog.Logger, dbConn *DB, appKey []byte) *UserStore {
	return &UserStore{log: log, db: dbConn, appKey: appKey}
}

// GetUserConfig fetches a user's settings plus decrypted secrets. Processors
// call this once at setup; the returned config is owned by the caller.
func (s *UserStore) GetUserConfig(ctx context.Context, userID string) (models.UserConfigForUpdater, error) {
	cfg := models.UserConfigForUpdater{UserID: userID}

	var (
		encSimplyPlural  string
		encDiscord       string
		encDiscordStatus string
		encVRChatUser    string
		encVRChatPass    string
		encVRChatCookie  string
		encPluralKit     string
	)

	err := s.db.Pool.QueryRow(ctx,
		`SELECT
			status_prefix,
			status_no_fronts,
			status_truncate_names_to,
			website_system_name,
			website_url_name,
			enable_discord,
			enable_discord_status_message,
			enable_vrchat,
			enable_website,
			enable_pluralkit,
			history_limit,
			history_truncate_after_days,
			COALESCE(enc__simply_plural_token, ''),
			COALESCE(enc__discord_token, ''),
			COALESCE(enc__discord_status_message_token, ''),
			COALESCE(enc__vrchat_username, ''),
			COALESCE(enc__vrchat_password, ''),
			COALESCE(enc__vrchat_cookie, ''),
			COALESCE(enc__pluralkit_token, '')
		 FROM users WHERE id = $1`,
		userID,
	).Scan(
		&cfg.StatusPrefix,
		&cfg.StatusNoFronts,
		&cfg.StatusTruncateNamesTo,
		&cfg.WebsiteSystemName,
		&cfg.WebsiteURLName,
		&cfg.EnableDiscord,
		&cfg.EnableDiscordStatusMessage,
		&cfg.EnableVRChat,
		&cfg.EnableWebsite,
		&cfg.EnablePluralKit,
		&cfg.HistoryLimit,
		&cfg.HistoryTruncateAfterDays,
		&encSimplyPlural,
		&encDiscord,
		&encDiscordStatus,
		&encVRChatUser,
		&encVRChatPass,
		&encVRChatCookie,
		&encPluralKit,
	)
	if err != nil {
		return models.UserConfigForUpdater{}, fmt.Errorf("fetch user config: %w", err)
	}

	key := security.UserKey(userID, s.appKey)
	secrets := []struct {
		enc string
		out *string
	}{
		{encSimplyPlural, &cfg.SimplyPluralToken},
		{encDiscord, &cfg.DiscordToken},
		{encDiscordStatus, &cfg.DiscordStatusMessageToken},
		{encVRChatUser, &cfg.VRChatUsername},
		{encVRChatPass, &cfg.VRChatPassword},
		{encVRChatCookie, &cfg.VRChatCookie},
		{encPluralKit, &cfg.PluralKitToken},
	}
	for _, sec := range secrets {
		plain, err := security.DecryptSecret(sec.enc, key)
		if err != nil {
			return models.UserConfigForUpdater{}, fmt.Errorf("decrypt user secret: %w", err)
		}
		*sec.out = plain
	}

	return cfg, nil
}

// SaveVRChatCookie persists a refreshed VRChat session cookie so the next
// processor start can reuse the session instead of re-authenticating.
func (s *UserStore) SaveVRChatCookie(ctx context.Context, userID, cookie string) error {
	key := security.UserKey(userID, s.appKey)
	enc, err := security.EncryptSecret(cookie, key)
	if err != nil {
		return fmt.Errorf("encrypt vrchat cookie: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx,
		`UPDATE users SET enc__vrchat_cookie = $1 WHERE id = $2`,
		enc, userID,
	)
	if err != nil {
		return fmt.Errorf("save vrchat cookie: %w", err)
	}
	return nil
}

// ListUserIDs returns every account; the boot sequence starts one processor
// per returned id.
func (s *UserStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT id FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindUserIDByWebsiteURLName resolves a public website name to a user id.
func (s *UserStore) FindUserIDByWebsiteURLName(ctx context.Context, urlName string) (string, error) {
	var id string
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id FROM users WHERE website_url_name = $1`,
		urlName,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("find user by website url name: %w", err)
	}
	return id, nil
}

// DeleteUser removes the account row; history and related rows cascade.
// Callers must stop the user's processor first (best effort).
func (s *UserStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("user_deleted", "user_id", userID)
	return nil
}
