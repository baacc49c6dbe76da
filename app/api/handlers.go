package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/cine-comb/app/database"
)

const (
	defaultListLimit = 30
	maxListLimit     = 365
	feedItems        = 20
)

// NewHandler builds the HTTP handlers. runs and cache may be nil.
func NewHandler(snapshots SnapshotReader, reports ReportReader, runs RunTrigger, cache HealthChecker, feed *ReportFeed) *Handler {
	return &Handler{
		snapshots: snapshots,
		reports:   reports,
		runs:      runs,
		cache:     cache,
		feed:      feed,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if snapshots, err := h.snapshots.List(ctx, 1); err != nil {
		slog.Error("Database error", "operation", "list_snapshots", "error", err)
		health["status"] = "degraded"
	} else if len(snapshots) > 0 {
		health["latest_snapshot"] = snapshots[0].Date
	}

	if report, err := h.reports.Latest(ctx); err == nil {
		health["latest_report"] = report.CreatedAt.Format(time.RFC3339)
	}

	if h.cache != nil {
		cacheHealth := h.cache.Health(ctx)
		health["cache"] = cacheHealth
		if cacheHealth["status"] != "healthy" {
			health["status"] = "degraded"
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetLatestReport(c *gin.Context) {
	report, err := h.reports.Latest(c.Request.Context())
	if errors.Is(err, database.ErrReportNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "latest_report", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Snapshot-Date", report.SnapshotDate)
	c.Header("X-Reference-Date", report.ReferenceDate)
	c.Header("X-Last-Updated", report.CreatedAt.Format(time.RFC3339))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Content))
}

func (h *Handler) GetReportFeed(c *gin.Context) {
	reports, err := h.reports.List(c.Request.Context(), feedItems)
	if err != nil {
		slog.Error("Database error", "operation", "list_reports", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.feed.Run(reports)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(reports)))
	c.String(http.StatusOK, rss)
}

func (h *Handler) APIListSnapshots(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 365"})
			return
		}
		limit = n
	}

	snapshots, err := h.snapshots.List(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_snapshots", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]gin.H, 0, len(snapshots))
	for _, s := range snapshots {
		items = append(items, gin.H{
			"date":     s.Date,
			"taken_at": s.TakenAt.Format(time.RFC3339),
			"movies":   s.MovieCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": items,
		"total":     len(items),
	})
}

func (h *Handler) APIGetSnapshot(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse(database.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	stored, err := h.snapshots.Get(c.Request.Context(), date)
	if errors.Is(err, database.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Snapshot not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_snapshot", "date", date, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":     stored.Date,
		"taken_at": stored.TakenAt.Format(time.RFC3339),
		"movies":   stored.Snapshot,
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not running"})
		return
	}

	id, err := h.runs.TriggerRun()
	if err != nil {
		slog.Error("Error enqueueing scrape task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue scrape task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Scrape run enqueued",
		"task":    gin.H{"id": id, "type": "scrape"},
	})
}
