package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

// ProgressEvent is a job status snapshot broadcast to live listeners.
type ProgressEvent struct {
	JobID    uuid.UUID        `json:"job_id"`
	Status   domain.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Message  string           `json:"message,omitempty"`
	AudioURL string           `json:"audio_url,omitempty"`
}

// ProgressPublisher fans job progress out to listeners. Delivery is best effort.
type ProgressPublisher interface {
	Publish(ctx context.Context, event ProgressEvent) error
}
