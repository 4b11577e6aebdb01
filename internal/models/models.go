package models

import "time"

// Platform identifies one external sync target. The set is closed: every
// per-user map in the updater is keyed by these values.
type Platform string

const (
	PlatformDiscord              Platform = "discord"
	PlatformDiscordStatusMessage Platform = "discord_status_message"
	PlatformVRChat               Platform = "vrchat"
	PlatformWebsite              Platform = "website"
	PlatformPluralKit            Platform = "pluralkit"
)

type StatusKind string

const (
	StatusDisabled      StatusKind = "disabled"
	StatusNotConfigured StatusKind = "not_configured"
	StatusOk            StatusKind = "ok"
	StatusError         StatusKind = "error"
)

// UpdaterStatus is the last-known outcome for one (user, platform) pair.
// It is overwritten on every cycle, never accumulated.
type UpdaterStatus struct {
	Kind  StatusKind `json:"kind"`
	Error string     `json:"error,omitempty"`
}

func StatusOkValue() UpdaterStatus       { return UpdaterStatus{Kind: StatusOk} }
func StatusDisabledValue() UpdaterStatus { return UpdaterStatus{Kind: StatusDisabled} }
func StatusNotConfiguredValue() UpdaterStatus {
	return UpdaterStatus{Kind: StatusNotConfigured}
}
func StatusErrorValue(err error) UpdaterStatus {
	return UpdaterStatus{Kind: StatusError, Error: err.Error()}
}

// UserConfigForUpdater carries the settings and decrypted secrets one change
// processor needs. It is fetched fresh at processor start and owned by that
// processor; nothing mutates it concurrently.
type UserConfigForUpdater struct {
	UserID string

	StatusPrefix          string
	StatusNoFronts        string
	StatusTruncateNamesTo int

	WebsiteSystemName string
	WebsiteURLName    string

	EnableDiscord              bool
	EnableDiscordStatusMessage bool
	EnableVRChat               bool
	EnableWebsite              bool
	EnablePluralKit            bool

	HistoryLimit             int
	HistoryTruncateAfterDays int

	// decrypted secrets; never log these
	SimplyPluralToken         string
	DiscordToken              string
	DiscordStatusMessageToken string
	VRChatUsername            string
	VRChatPassword            string
	VRChatCookie              string
	PluralKitToken            string
}

type UserRow struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
