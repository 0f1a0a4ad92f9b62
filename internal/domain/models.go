package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Job is the persisted record of one PDF-to-audio conversion request.
type Job struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	UserID             uuid.UUID       `db:"user_id" json:"user_id"`
	OriginalFilename   string          `db:"original_filename" json:"original_filename"`
	PDFKey             string          `db:"pdf_s3_key" json:"pdf_s3_key"`
	AudioKey           *string         `db:"audio_s3_key" json:"audio_s3_key"`
	AudioURL           *string         `db:"audio_s3_url" json:"audio_s3_url"`
	Status             JobStatus       `db:"status" json:"status"`
	ProgressPercentage int             `db:"progress_percentage" json:"progress_percentage"`
	ErrorMessage       *string         `db:"error_message" json:"error_message"`
	VoiceProvider      VoiceProvider   `db:"voice_provider" json:"voice_provider"`
	VoiceType          string          `db:"voice_type" json:"voice_type"`
	ReadingSpeed       float64         `db:"reading_speed" json:"reading_speed"`
	IncludeSummary     bool            `db:"include_summary" json:"include_summary"`
	ConversionMode     ConversionMode  `db:"conversion_mode" json:"conversion_mode"`
	EstimatedCost      decimal.Decimal `db:"estimated_cost" json:"estimated_cost"`
	CharsProcessed     int             `db:"chars_processed" json:"chars_processed"`
	TokensUsed         int             `db:"tokens_used" json:"tokens_used"`
	Attempts           int             `db:"attempts" json:"attempts"`
	RetryAfter         *time.Time      `db:"retry_after" json:"retry_after"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	StartedAt          *time.Time      `db:"started_at" json:"started_at"`
	CompletedAt        *time.Time      `db:"completed_at" json:"completed_at"`
}

// ConversionParams are the job options the pipeline consumes.
type ConversionParams struct {
	VoiceProvider  VoiceProvider
	VoiceType      string
	ReadingSpeed   float64
	IncludeSummary bool
	Mode           ConversionMode
}

// Params extracts the conversion options from the job record.
func (j *Job) Params() ConversionParams {
	return ConversionParams{
		VoiceProvider:  j.VoiceProvider,
		VoiceType:      j.VoiceType,
		ReadingSpeed:   j.ReadingSpeed,
		IncludeSummary: j.IncludeSummary,
		Mode:           j.ConversionMode,
	}
}

// AudioObjectKey is the storage key the final audio of this job is uploaded to.
func (j *Job) AudioObjectKey() string {
	return "audio/" + j.UserID.String() + "/" + j.ID.String() + ".mp3"
}

// TransformedText is the text that will be spoken, tagged with the mode that
// produced it and the LLM tokens spent producing it.
type TransformedText struct {
	Text       string
	Mode       ConversionMode
	TokensUsed int
}

// TextChunk is one bounded segment of the final narration text.
type TextChunk struct {
	Index int
	Text  string
}

// AudioChunk is the synthesized audio for exactly one TextChunk, on disk.
type AudioChunk struct {
	Index int
	Path  string
}

// UsageStats accumulates billable usage for one job run.
type UsageStats struct {
	CharactersSynthesized int `json:"characters_synthesized"`
	LLMTokensUsed         int `json:"llm_tokens_used"`
}

// AddCharacters records n synthesized characters.
func (u *UsageStats) AddCharacters(n int) {
	u.CharactersSynthesized += n
}

// AddTokens records n LLM tokens.
func (u *UsageStats) AddTokens(n int) {
	if n > 0 {
		u.LLMTokensUsed += n
	}
}

// ConversionResult is what a pipeline run hands back to its caller.
type ConversionResult struct {
	AudioFilePath string
	EstimatedCost decimal.Decimal
	Usage         UsageStats
}

// ProgressFunc receives integer progress percentages in non-decreasing order.
type ProgressFunc func(progress int)
