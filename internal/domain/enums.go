package domain

// JobStatus represents the lifecycle of a conversion job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// VoiceProvider identifies a text-to-speech backend.
type VoiceProvider string

const (
	ProviderOpenAI     VoiceProvider = "openai"
	ProviderGoogle     VoiceProvider = "google"
	ProviderAWSPolly   VoiceProvider = "aws_polly"
	ProviderAzure      VoiceProvider = "azure"
	ProviderElevenLabs VoiceProvider = "eleven_labs"
	ProviderMock       VoiceProvider = "mock"
)

// ConversionMode selects how the extracted text is turned into narration.
type ConversionMode string

const (
	ModeFull               ConversionMode = "full"
	ModeSummary            ConversionMode = "summary"
	ModeExplanation        ConversionMode = "explanation"
	ModeSummaryExplanation ConversionMode = "summary_explanation"
	ModeFullExplanation    ConversionMode = "full_explanation"
)

// AllowedConversionModes lists every mode a job may request.
var AllowedConversionModes = map[ConversionMode]bool{
	ModeFull:               true,
	ModeSummary:            true,
	ModeExplanation:        true,
	ModeSummaryExplanation: true,
	ModeFullExplanation:    true,
}

// Valid reports whether m is a known conversion mode.
func (m ConversionMode) Valid() bool {
	return AllowedConversionModes[m]
}

// NeedsLLM reports whether running m (with the given summary flag) requires
// at least one LLM call.
func (m ConversionMode) NeedsLLM(includeSummary bool) bool {
	if m == ModeFull {
		return includeSummary
	}
	return true
}

const (
	MinReadingSpeed = 0.5
	MaxReadingSpeed = 2.0
)
