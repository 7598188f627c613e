package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"messaging-service/internal/events"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

const cleanupBatchSize = 500

type CleanupResult struct {
	TotalProcessed      int      `json:"totalProcessed"`
	SuccessfulDeletions int      `json:"successfulDeletions"`
	FailedDeletions     int      `json:"failedDeletions"`
	Errors              []string `json:"errors"`
}

type CleanupStatistics struct {
	TotalOldMessages int64     `json:"totalOldMessages"`
	OldImageMessages int64     `json:"oldImageMessages"`
	OldVoiceMessages int64     `json:"oldVoiceMessages"`
	ExpiredImages    int64     `json:"expiredImages"`
	ExpiredVoice     int64     `json:"expiredVoice"`
	CutoffDate       time.Time `json:"cutoffDate"`
}

// MediaCleaner expires image and voice messages past the retention window. The object
// is removed from storage and the message is rewritten to a text placeholder that
// remembers the original type.
type MediaCleaner struct {
	messages  repositories.MessageRepository
	media     MediaStore
	events    events.Publisher
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewMediaCleaner(messages repositories.MessageRepository, media MediaStore, pub events.Publisher, retention time.Duration, log zerolog.Logger) *MediaCleaner {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &MediaCleaner{
		messages:  messages,
		media:     media,
		events:    pub,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

func (c *MediaCleaner) cutoff() time.Time {
	return c.now().Add(-c.retention)
}

// Cleanup processes every eligible message in batches. A storage failure still rewrites
// the message so it is not retried forever.
func (c *MediaCleaner) Cleanup(ctx context.Context) (CleanupResult, error) {
	result := CleanupResult{Errors: []string{}}
	cutoff := c.cutoff()

	for {
		batch, err := c.messages.ListExpiredMedia(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			return result, translate("list expired media", err)
		}
		if len(batch) == 0 {
			break
		}
		rewritten := 0
		for _, msg := range batch {
			result.TotalProcessed++
			if err := c.media.RemoveURL(ctx, msg.Content.Body); err != nil {
				result.FailedDeletions++
				result.Errors = append(result.Errors, fmt.Sprintf("remove object for message %s: %v", msg.ID, err))
				c.log.Warn().Err(err).Str("message_id", msg.ID).Msg("media object not removed")
			} else {
				result.SuccessfulDeletions++
			}

			content := models.ExpiredContent
			content.OriginalType = msg.Type
			if _, err := c.messages.ReplaceContent(ctx, msg.ID, models.MessageText, content, true, c.now()); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("rewrite message %s: %v", msg.ID, err))
				c.log.Error().Err(err).Str("message_id", msg.ID).Msg("expired message not rewritten")
				continue
			}
			rewritten++
		}
		if rewritten == 0 {
			// every rewrite failed; the same batch would come back
			break
		}
		if len(batch) < cleanupBatchSize {
			break
		}
	}

	observability.AddMediaExpired(result.TotalProcessed)
	if result.TotalProcessed > 0 {
		c.events.Publish(ctx, events.New(events.MediaExpired, "", "", map[string]any{
			"processed": result.TotalProcessed,
			"failed":    result.FailedDeletions,
			"cutoff":    cutoff,
		}))
	}
	c.log.Info().
		Int("processed", result.TotalProcessed).
		Int("removed", result.SuccessfulDeletions).
		Int("failed", result.FailedDeletions).
		Msg("media cleanup finished")
	return result, nil
}

func (c *MediaCleaner) Statistics(ctx context.Context) (CleanupStatistics, error) {
	cutoff := c.cutoff()
	eligible, err := c.messages.CountMediaBefore(ctx, cutoff)
	if err != nil {
		return CleanupStatistics{}, translate("count eligible media", err)
	}
	expired, err := c.messages.CountExpired(ctx)
	if err != nil {
		return CleanupStatistics{}, translate("count expired media", err)
	}
	return CleanupStatistics{
		TotalOldMessages: eligible[models.MessageImage] + eligible[models.MessageVoice],
		OldImageMessages: eligible[models.MessageImage],
		OldVoiceMessages: eligible[models.MessageVoice],
		ExpiredImages:    expired[models.MessageImage],
		ExpiredVoice:     expired[models.MessageVoice],
		CutoffDate:       cutoff,
	}, nil
}

// Run cleans up once per interval until ctx is done.
func (c *MediaCleaner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Cleanup(ctx); err != nil && ctx.Err() == nil {
				c.log.Error().Err(err).Msg("media cleanup failed")
			}
		}
	}
}
