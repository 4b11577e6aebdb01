package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/models"
)

const (
	vrchatAPIBase = "https://api.vrchat.cloud/api/1"
	// VRChat caps statusDescription at 32 characters
	vrchatStatusMax = 32
	vrchatUserAgent = "PluralSync/1.0"
)

// vrchatSession holds the authenticated session for one user's VRChat
// adapter. Single owner: only the owning processor touches it, so no lock.
type vrchatSession struct {
	cookie       string
	vrchatUserID string
	authed       bool
}

type vrchatUserResponse struct {
	ID                    string   `json:"id"`
	RequiresTwoFactorAuth []string `json:"requiresTwoFactorAuth"`
}

// setupVRChat validates the stored session cookie against the auth endpoint.
// A fresh username/password login may require a second factor, which the sync
// service cannot answer; in that case setup fails and the user has to refresh
// the cookie through the app.
func (u *Updater) setupVRChat(ctx context.Context, cfg *models.UserConfigForUpdater) error {
	u.vrchat = vrchatSession{cookie: cfg.VRChatCookie}

	if u.vrchat.cookie != "" {
		if err := u.vrchatVerifyCookie(ctx); err == nil {
			return nil
		}
		u.deps.Log.Info("vrchat_cookie_expired", "user_id", cfg.UserID)
	}

	cookie, err := u.vrchatLogin(ctx, cfg)
	if err != nil {
		return err
	}

	u.vrchat.cookie = cookie
	if err := u.vrchatVerifyCookie(ctx); err != nil {
		return err
	}

	// best effort: remember the fresh cookie for the next processor start
	if u.deps.CookieSaver != nil {
		if err := u.deps.CookieSaver.SaveVRChatCookie(ctx, cfg.UserID, cookie); err != nil {
			u.deps.Log.Warn("vrchat_cookie_save_failed", "user_id", cfg.UserID, "error", err)
		}
	}
	return nil
}

func (u *Updater) vrchatVerifyCookie(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vrchatAPIBase+"/auth/user", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", vrchatUserAgent)
	req.Header.Set("Cookie", "auth="+u.vrchat.cookie)

	resp, err := u.deps.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("vrchat auth check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		u.vrchat.authed = false
		return fmt.Errorf("vrchat auth check: status %d", resp.StatusCode)
	}

	var user vrchatUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return fmt.Errorf("vrchat auth check: %w", err)
	}
	if len(user.RequiresTwoFactorAuth) > 0 {
		u.vrchat.authed = false
		return errors.New("vrchat session requires two-factor verification; refresh the cookie in the app")
	}

	u.vrchat.vrchatUserID = user.ID
	u.vrchat.authed = true
	return nil
}

func (u *Updater) vrchatLogin(ctx context.Context, cfg *models.UserConfigForUpdater) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vrchatAPIBase+"/auth/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", vrchatUserAgent)
	req.SetBasicAuth(cfg.VRChatUsername, cfg.VRChatPassword)

	resp, err := u.deps.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("vrchat login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vrchat login: status %d", resp.StatusCode)
	}

	for _, c := range resp.Cookies() {
		if c.Name == "auth" {
			return c.Value, nil
		}
	}
	return "", errors.New("vrchat login: no auth cookie in response")
}

// updateVRChat writes the fronting status into the profile's status
// description. Names are cleaned to VRChat's accepted charset.
func (u *Updater) updateVRChat(ctx context.Context, cfg *models.UserConfigForUpdater, snap fronting.Snapshot) error {
	if !u.vrchat.authed {
		return errors.New("vrchat session not established")
	}

	text := fronting.FormatStatus(fronting.Format{
		MaxLength:          vrchatStatusMax,
		Cleaning:           fronting.CleanForVRChat,
		Prefix:             cfg.StatusPrefix,
		StatusIfNoFronters: cfg.StatusNoFronts,
		TruncateNamesTo:    cfg.StatusTruncateNamesTo,
	}, snap)

	body, err := json.Marshal(map[string]string{"statusDescription": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/users/%s", vrchatAPIBase, u.vrchat.vrchatUserID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", vrchatUserAgent)
	req.Header.Set("Cookie", "auth="+u.vrchat.cookie)
	req.Header.Set("Content-Type", "application/json")

	return u.doExpectOK(req, "vrchat status")
}
