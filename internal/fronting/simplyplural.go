package fronting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// SimplyPluralClient reads a user's current fronting state from the Simply
// Plural API and subscribes to its socket for change notifications.
type SimplyPluralClient struct {
	log       *slog.Logger
	apiURL    string
	socketURL string
	http      *http.Client
}

func NewSimplyPluralClient(log *slog.Logger, apiURL, socketURL string) *SimplyPluralClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &SimplyPluralClient{
		log:       log,
		apiURL:    strings.TrimRight(apiURL, "/"),
		socketURL: socketURL,
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

type spMeDoc struct {
	ID string `json:"id"`
}

type spFrontDoc struct {
	Content struct {
		Member    string `json:"member"`
		StartTime int64  `json:"startTime"`
		Custom    bool   `json:"custom"`
	} `json:"content"`
}

type spMemberDoc struct {
	Content struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatarUrl"`
	} `json:"content"`
}

// FetchFronters returns the user's current fronting snapshot.
func (c *SimplyPluralClient) FetchFronters(ctx context.Context, token string) (Snapshot, error) {
	var me spMeDoc
	if err := c.getJSON(ctx, token, "/v2/me", &me); err != nil {
		return Snapshot{}, fmt.Errorf("fetch system id: %w", err)
	}

	var fronts []spFrontDoc
	if err := c.getJSON(ctx, token, "/v2/fronters", &fronts); err != nil {
		return Snapshot{}, fmt.Errorf("fetch fronters: %w", err)
	}

	snap := Snapshot{ObservedAt: time.Now().UTC()}
	for _, f := range fronts {
		fronter := Fronter{
			MemberID:    f.Content.Member,
			CustomFront: f.Content.Custom,
		}
		if f.Content.StartTime > 0 {
			fronter.StartedAt = time.UnixMilli(f.Content.StartTime).UTC()
		}

		var member spMemberDoc
		path := fmt.Sprintf("/v2/member/%s/%s", me.ID, f.Content.Member)
		if err := c.getJSON(ctx, token, path, &member); err != nil {
			// a deleted or private member must not sink the whole snapshot
			c.log.Warn("simply_plural_member_fetch_failed",
				"member_id", f.Content.Member,
				"error", err,
			)
			fronter.Name = "Unknown"
		} else {
			fronter.Name = member.Content.Name
			fronter.AvatarURL = member.Content.AvatarURL
		}

		snap.Fronters = append(snap.Fronters, fronter)
	}

	return snap, nil
}

func (c *SimplyPluralClient) getJSON(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("simply plural api returned status %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

type spSocketMsg struct {
	Msg    string `json:"msg"`
	Target string `json:"target"`
}

// Listen subscribes to the Simply Plural socket and invokes onChange whenever
// a front-related update arrives. It returns when ctx is cancelled or the
// connection drops; the caller decides whether to reconnect.
func (c *SimplyPluralClient) Listen(ctx context.Context, token string, onChange func()) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.socketURL, nil)
	if err != nil {
		return fmt.Errorf("dial socket: %w", err)
	}
	defer conn.Close()

	auth := map[string]string{"op": "authenticate", "token": token}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	// the server expects periodic pings or it drops the session
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read socket: %w", err)
		}

		var msg spSocketMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // keepalive frames are not json
		}

		if msg.Msg == "update" && (msg.Target == "frontHistory" || msg.Target == "fronters" || msg.Target == "members") {
			onChange()
		}
	}
}
