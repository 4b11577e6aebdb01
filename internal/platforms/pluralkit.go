package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/models"
)

const pluralkitAPIBase = "https://api.pluralkit.me/v2"

// pluralkitSession caches the PluralKit member directory so each push only
// costs one request. Populated at setup, owned by one processor.
type pluralkitSession struct {
	memberIDByName map[string]string
}

type pkMember struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// setupPluralKit loads the member list for name-to-id resolution.
func (u *Updater) setupPluralKit(ctx context.Context, cfg *models.UserConfigForUpdater) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		pluralkitAPIBase+"/systems/@me/members", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", cfg.PluralKitToken)

	resp, err := u.deps.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("pluralkit members: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pluralkit members: status %d", resp.StatusCode)
	}

	var members []pkMember
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return fmt.Errorf("pluralkit members: %w", err)
	}

	index := make(map[string]string, len(members))
	for _, m := range members {
		index[strings.ToLower(m.Name)] = m.ID
		if m.DisplayName != "" {
			index[strings.ToLower(m.DisplayName)] = m.ID
		}
	}
	u.pluralkit.memberIDByName = index
	return nil
}

// updatePluralKit registers a switch with the members matching the snapshot
// by name. Unmatched fronters (custom fronts, renamed members) are skipped.
func (u *Updater) updatePluralKit(ctx context.Context, cfg *models.UserConfigForUpdater, snap fronting.Snapshot) error {
	if u.pluralkit.memberIDByName == nil {
		return errors.New("pluralkit member directory not loaded")
	}

	memberIDs := make([]string, 0, len(snap.Fronters))
	for _, f := range snap.Fronters {
		if id, ok := u.pluralkit.memberIDByName[strings.ToLower(f.Name)]; ok {
			memberIDs = append(memberIDs, id)
		} else {
			u.deps.Log.Debug("pluralkit_member_unmatched",
				"user_id", cfg.UserID,
				"member_name", f.Name,
			)
		}
	}

	body, err := json.Marshal(map[string]any{"members": memberIDs})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		pluralkitAPIBase+"/systems/@me/switches", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", cfg.PluralKitToken)
	req.Header.Set("Content-Type", "application/json")

	return u.doExpectOK(req, "pluralkit switch")
}
