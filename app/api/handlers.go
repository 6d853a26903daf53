package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/podcomb/podcomb/app/database"
	"github.com/podcomb/podcomb/app/tasks"
)

func NewHandler(podcastRepo database.PodcastRepository, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		podcastRepo: podcastRepo,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.podcastRepo.GetStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := gin.H{
		"podcasts": gin.H{
			"total":  stats.Total,
			"active": stats.Active,
			"due":    stats.Due,
		},
		"episodes": stats.Episodes,
	}

	if last, ok := h.scheduler.LastPass(); ok {
		response["last_pass"] = gin.H{
			"queued":    last.Queued,
			"updated":   last.Updated,
			"unchanged": last.Unchanged,
			"failed":    last.Failed,
			"duration":  last.Duration.String(),
		}
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetPodcast(c *gin.Context) {
	id := c.Param("id")

	podcast, err := h.podcastRepo.GetPodcast(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_podcast", "podcast_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if podcast == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Podcast not found"})
		return
	}

	response := gin.H{
		"id":          podcast.ID,
		"feed_url":    podcast.FeedURL,
		"title":       podcast.Title,
		"link":        podcast.Link,
		"language":    podcast.Language,
		"owner":       podcast.Owner,
		"explicit":    podcast.Explicit,
		"active":      podcast.Active,
		"http_status": podcast.HTTPStatus,
		"frequency":   podcast.Frequency.String(),
		"queued":      podcast.Queued,
		"parsed_at":   podcast.ParsedAt,
		"pub_date":    podcast.PubDate,
	}
	if podcast.ParserError != "" {
		response["parser_error"] = string(podcast.ParserError)
	}

	c.JSON(http.StatusOK, response)
}

// QueuePodcast flags a podcast for the next ingestion pass, bypassing its
// polling frequency.
func (h *Handler) QueuePodcast(c *gin.Context) {
	id := c.Param("id")

	queued, err := h.podcastRepo.Queue(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "queue_podcast", "podcast_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !queued {
		c.JSON(http.StatusNotFound, gin.H{"error": "Podcast not found"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"queued":     true,
		"podcast_id": id,
	})
}
