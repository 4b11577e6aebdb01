package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GollyTicker/PluralSync/internal/updater"
)

func isValidUserID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_'
		if !ok {
			return false
		}
	}
	return true
}

func (s *Server) userIDParam(c *gin.Context) (string, bool) {
	userID := c.Param("user_id")
	if !isValidUserID(userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_user_id", "message": "invalid user_id"}})
		return "", false
	}
	return userID, true
}

func (s *Server) getStatuses(c *gin.Context) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	statuses, running := s.manager.Statuses(userID)
	if !running {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "updater_not_running", "message": "no updater running for this user"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"running":  true,
		"statuses": statuses,
	})
}

func (s *Server) getHistory(c *gin.Context) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_limit", "message": "limit must be between 1 and 500"}})
			return
		}
		limit = n
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	entries, err := s.history.ListRecent(ctx, userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "db_error", "message": err.Error()}})
		return
	}

	type historyResp struct {
		StatusText string    `json:"status_text"`
		CreatedAt  time.Time `json:"created_at"`
	}
	resp := make([]historyResp, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyResp{StatusText: e.StatusText, CreatedAt: e.CreatedAt})
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "history": resp})
}

// getFrontPage serves the public fronting page. The rendered HTML lives in
// redis; on a miss we fall back to the published bucket copy.
func (s *Server) getFrontPage(c *gin.Context) {
	urlName := strings.ToLower(c.Param("url_name"))
	if !isValidUserID(urlName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_url_name", "message": "invalid url name"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	cacheKey := "website:page:" + urlName
	if page, err := s.redis.Get(ctx, cacheKey); err == nil && page != "" {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
		return
	}

	// verify the name exists before redirecting anywhere
	if _, err := s.users.FindUserIDByWebsiteURLName(ctx, urlName); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "no fronting page with this name"}})
		return
	}

	if s.cfg.WebsitePublicURL != "" {
		c.Redirect(http.StatusFound, fmt.Sprintf("%s/front/%s/index.html",
			strings.TrimRight(s.cfg.WebsitePublicURL, "/"), urlName))
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "page_not_ready", "message": "fronting page not generated yet"}})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	status := "healthy"
	if dbStatus != "connected" || redisStatus != "connected" {
		status = "unhealthy"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"database":         dbStatus,
		"redis":            redisStatus,
		"running_updaters": len(s.manager.RunningUsers()),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listUpdaters(c *gin.Context) {
	ids := s.manager.RunningUsers()

	type updaterResp struct {
		UserID   string `json:"user_id"`
		Statuses any    `json:"statuses"`
	}
	resp := make([]updaterResp, 0, len(ids))
	for _, id := range ids {
		statuses, _ := s.manager.Statuses(id)
		resp = append(resp, updaterResp{UserID: id, Statuses: statuses})
	}

	c.JSON(http.StatusOK, gin.H{"updaters": resp, "count": len(resp)})
}

func (s *Server) startUpdater(c *gin.Context) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.service.StartUser(ctx, userID); err != nil {
		if errors.Is(err, updater.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "already_running", "message": "updater already running"}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "start_failed", "message": err.Error()}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) stopUpdater(c *gin.Context) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	if err := s.service.StopUser(userID); err != nil {
		if errors.Is(err, updater.ErrNotRunning) {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_running", "message": "no updater running for this user"}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "stop_failed", "message": err.Error()}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) restartUpdater(c *gin.Context) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.service.RestartUser(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "restart_failed", "message": err.Error()}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteUser(c *gin.Context) {
	userID, ok := s.userIDParam(c)
	if !ok {
		return
	}

	// stop first so no processor keeps writing for a deleted account
	if err := s.service.StopUser(userID); err != nil && !errors.Is(err, updater.ErrNotRunning) {
		s.log.Warn("updater_stop_before_delete_failed", "user_id", userID, "error", err)
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "db_error", "message": err.Error()}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
