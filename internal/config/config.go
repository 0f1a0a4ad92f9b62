package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	S3        S3Config
	Log       LogConfig
	Queue     QueueConfig
	Retention RetentionConfig
	Redis     RedisConfig
	LLM       LLMConfig
	TTS       TTSConfig
	Audio     AudioConfig
	Pipeline  PipelineConfig
	Cost      CostConfig
}

// ServerConfig holds the worker's health server settings.
type ServerConfig struct {
	HealthAddr  string `mapstructure:"health_addr"`
	Environment string `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 (or S3-compatible) settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// QueueConfig holds job queue worker settings.
type QueueConfig struct {
	PollIntervalSecs   int           `mapstructure:"poll_interval_secs"`
	Concurrency        int           `mapstructure:"concurrency"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	RetryCountdownSecs int           `mapstructure:"retry_countdown_secs"`
	SoftTimeLimit      time.Duration `mapstructure:"soft_time_limit"`
	HardTimeLimit      time.Duration `mapstructure:"hard_time_limit"`
}

// RetentionConfig controls the sweep of old completed jobs.
type RetentionConfig struct {
	MaxAgeDays    int           `mapstructure:"max_age_days"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
}

// RedisConfig holds the progress broadcast connection. An empty Addr disables it.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// LLMProviderConfig holds settings for a single OpenAI-compatible LLM endpoint.
type LLMProviderConfig struct {
	Provider         string `mapstructure:"provider"`
	APIKey           string `mapstructure:"api_key"`
	BaseURL          string `mapstructure:"base_url"`
	SummaryModel     string `mapstructure:"summary_model"`
	ExplanationModel string `mapstructure:"explanation_model"`
	TimeoutSecs      int    `mapstructure:"timeout_secs"`
}

// Configured reports whether the provider has credentials.
func (p *LLMProviderConfig) Configured() bool {
	return p != nil && strings.TrimSpace(p.APIKey) != ""
}

// LLMConfig holds the content transformer settings. The gateway provider
// takes precedence over the direct one.
type LLMConfig struct {
	Gateway       LLMProviderConfig `mapstructure:"gateway"`
	Direct        LLMProviderConfig `mapstructure:"direct"`
	MaxInputChars int               `mapstructure:"max_input_chars"`
	MaxAttempts   int               `mapstructure:"max_attempts"`
}

// ActiveProvider returns the provider config selected by precedence, or nil
// when neither has credentials.
func (l *LLMConfig) ActiveProvider() *LLMProviderConfig {
	if l.Gateway.Configured() {
		return &l.Gateway
	}
	if l.Direct.Configured() {
		return &l.Direct
	}
	return nil
}

// OpenAITTSConfig holds OpenAI speech settings.
type OpenAITTSConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// GoogleTTSConfig holds Google Cloud Text-to-Speech settings.
type GoogleTTSConfig struct {
	CredentialsJSON string            `mapstructure:"credentials_json"`
	CredentialsFile string            `mapstructure:"credentials_file"`
	Endpoint        string            `mapstructure:"endpoint"`
	Voices          map[string]string `mapstructure:"voices"`
}

// PollyTTSConfig holds AWS Polly settings.
type PollyTTSConfig struct {
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Engine    string `mapstructure:"engine"`
	Endpoint  string `mapstructure:"endpoint"`
}

// AzureTTSConfig holds Azure Speech settings.
type AzureTTSConfig struct {
	Key      string `mapstructure:"key"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// ElevenLabsTTSConfig holds ElevenLabs settings.
type ElevenLabsTTSConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// TTSConfig holds per-provider speech settings.
type TTSConfig struct {
	TestingMode bool `mapstructure:"testing_mode"`
	TimeoutSecs int  `mapstructure:"timeout_secs"`
	OpenAI      OpenAITTSConfig
	Google      GoogleTTSConfig
	Polly       PollyTTSConfig
	Azure       AzureTTSConfig
	ElevenLabs  ElevenLabsTTSConfig
}

// BaseURLFor returns the configured endpoint override of a provider, or ""
// when it talks to the vendor's public API.
func (t *TTSConfig) BaseURLFor(provider string) string {
	switch provider {
	case "openai":
		return t.OpenAI.BaseURL
	case "google":
		return t.Google.Endpoint
	case "aws_polly":
		return t.Polly.Endpoint
	case "azure":
		return t.Azure.Endpoint
	case "eleven_labs":
		return t.ElevenLabs.BaseURL
	}
	return ""
}

// AudioConfig holds audio assembly settings.
type AudioConfig struct {
	FFmpegPath        string `mapstructure:"ffmpeg_path"`
	RawConcatFallback bool   `mapstructure:"raw_concat_fallback"`
}

// PipelineConfig holds conversion pipeline settings.
type PipelineConfig struct {
	MaxChunkChars        int    `mapstructure:"max_chunk_chars"`
	SynthesisConcurrency int    `mapstructure:"synthesis_concurrency"`
	WorkDir              string `mapstructure:"work_dir"`
	OCRLanguage          string `mapstructure:"ocr_language"`
}

// CostConfig holds the per-unit rates used for cost estimation.
type CostConfig struct {
	// TTSRates are USD per 1M characters, keyed by provider id.
	TTSRates map[string]float64 `mapstructure:"tts_rates"`
	// GoogleStandardRate and GooglePremiumRate are USD per 1M characters.
	GoogleStandardRate float64 `mapstructure:"google_standard_rate"`
	GooglePremiumRate  float64 `mapstructure:"google_premium_rate"`
	// PremiumVoiceMarkers identify premium Google voices by substring.
	PremiumVoiceMarkers []string `mapstructure:"premium_voice_markers"`
	// LLMInputPer1K and LLMOutputPer1K are USD per 1K tokens.
	LLMInputPer1K  float64 `mapstructure:"llm_input_per_1k"`
	LLMOutputPer1K float64 `mapstructure:"llm_output_per_1k"`
	// LocalEndpointMarkers zero the TTS cost when found in a provider's base URL.
	LocalEndpointMarkers []string `mapstructure:"local_endpoint_markers"`
}

// Load reads configuration from environment variables with the PDF2AUDIO_ prefix.
// It has no side effects; see ApplyEnvironment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PDF2AUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.health_addr", ":8081")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "pdf2audio")
	v.SetDefault("db.password", "pdf2audio_secret")
	v.SetDefault("db.name", "pdf2audio_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "pdf2audio-uploads")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 5)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.retry_countdown_secs", 60)
	v.SetDefault("queue.soft_time_limit", "25m")
	v.SetDefault("queue.hard_time_limit", "30m")

	// Retention defaults
	v.SetDefault("retention.max_age_days", 30)
	v.SetDefault("retention.sweep_interval", "24h")
	v.SetDefault("retention.batch_size", 100)

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "pdf2audio:jobs")

	// LLM defaults
	v.SetDefault("llm.gateway.provider", "openrouter")
	v.SetDefault("llm.gateway.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.gateway.summary_model", "google/gemini-2.0-flash-001:free")
	v.SetDefault("llm.gateway.explanation_model", "google/gemini-2.0-flash-001:free")
	v.SetDefault("llm.gateway.timeout_secs", 120)
	v.SetDefault("llm.direct.provider", "openai")
	v.SetDefault("llm.direct.base_url", "")
	v.SetDefault("llm.direct.summary_model", "gpt-3.5-turbo")
	v.SetDefault("llm.direct.explanation_model", "gpt-4")
	v.SetDefault("llm.direct.timeout_secs", 120)
	v.SetDefault("llm.max_input_chars", 100000)
	v.SetDefault("llm.max_attempts", 5)

	// TTS defaults
	v.SetDefault("tts.testing_mode", false)
	v.SetDefault("tts.timeout_secs", 90)
	v.SetDefault("tts.openai.model", "tts-1")
	v.SetDefault("tts.google.endpoint", "https://texttospeech.googleapis.com/v1/text:synthesize")
	v.SetDefault("tts.polly.region", "us-east-1")
	v.SetDefault("tts.polly.engine", "neural")
	v.SetDefault("tts.elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("tts.elevenlabs.model", "eleven_multilingual_v2")

	// Audio defaults
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.raw_concat_fallback", false)

	// Pipeline defaults
	v.SetDefault("pipeline.max_chunk_chars", 4500)
	v.SetDefault("pipeline.synthesis_concurrency", 1)
	v.SetDefault("pipeline.work_dir", "")
	v.SetDefault("pipeline.ocr_language", "eng")

	// Cost defaults (USD)
	v.SetDefault("cost.openai_rate", 15.0)
	v.SetDefault("cost.aws_polly_rate", 16.0)
	v.SetDefault("cost.azure_rate", 16.0)
	v.SetDefault("cost.eleven_labs_rate", 300.0)
	v.SetDefault("cost.google_standard_rate", 4.0)
	v.SetDefault("cost.google_premium_rate", 30.0)
	v.SetDefault("cost.premium_voice_markers", "Chirp,Studio,premium")
	v.SetDefault("cost.llm_input_per_1k", 0.0005)
	v.SetDefault("cost.llm_output_per_1k", 0.0015)
	v.SetDefault("cost.local_endpoint_markers", "localhost,127.0.0.1,0.0.0.0,host.docker.internal")

	// Bind environment variables explicitly for nested keys. Credentials also
	// accept their conventional unprefixed names.
	envBindings := map[string][]string{
		"server.health_addr":             {"PDF2AUDIO_SERVER_HEALTH_ADDR"},
		"server.environment":             {"PDF2AUDIO_SERVER_ENVIRONMENT", "ENVIRONMENT"},
		"db.host":                        {"PDF2AUDIO_DB_HOST"},
		"db.port":                        {"PDF2AUDIO_DB_PORT"},
		"db.user":                        {"PDF2AUDIO_DB_USER"},
		"db.password":                    {"PDF2AUDIO_DB_PASSWORD"},
		"db.name":                        {"PDF2AUDIO_DB_NAME"},
		"db.sslmode":                     {"PDF2AUDIO_DB_SSLMODE"},
		"db.max_open":                    {"PDF2AUDIO_DB_MAX_OPEN"},
		"db.max_idle":                    {"PDF2AUDIO_DB_MAX_IDLE"},
		"s3.region":                      {"PDF2AUDIO_S3_REGION", "AWS_REGION"},
		"s3.bucket":                      {"PDF2AUDIO_S3_BUCKET", "S3_BUCKET_NAME"},
		"s3.endpoint":                    {"PDF2AUDIO_S3_ENDPOINT", "AWS_ENDPOINT_URL"},
		"s3.access_key":                  {"PDF2AUDIO_S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID"},
		"s3.secret_key":                  {"PDF2AUDIO_S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"},
		"s3.presign_expiry":              {"PDF2AUDIO_S3_PRESIGN_EXPIRY"},
		"log.level":                      {"PDF2AUDIO_LOG_LEVEL", "LOG_LEVEL"},
		"log.format":                     {"PDF2AUDIO_LOG_FORMAT", "LOG_FORMAT"},
		"queue.poll_interval_secs":       {"PDF2AUDIO_QUEUE_POLL_INTERVAL_SECS"},
		"queue.concurrency":              {"PDF2AUDIO_QUEUE_CONCURRENCY"},
		"queue.max_attempts":             {"PDF2AUDIO_QUEUE_MAX_ATTEMPTS"},
		"queue.retry_countdown_secs":     {"PDF2AUDIO_QUEUE_RETRY_COUNTDOWN_SECS"},
		"queue.soft_time_limit":          {"PDF2AUDIO_QUEUE_SOFT_TIME_LIMIT"},
		"queue.hard_time_limit":          {"PDF2AUDIO_QUEUE_HARD_TIME_LIMIT"},
		"retention.max_age_days":         {"PDF2AUDIO_RETENTION_MAX_AGE_DAYS"},
		"retention.sweep_interval":       {"PDF2AUDIO_RETENTION_SWEEP_INTERVAL"},
		"retention.batch_size":           {"PDF2AUDIO_RETENTION_BATCH_SIZE"},
		"redis.addr":                     {"PDF2AUDIO_REDIS_ADDR"},
		"redis.password":                 {"PDF2AUDIO_REDIS_PASSWORD"},
		"redis.db":                       {"PDF2AUDIO_REDIS_DB"},
		"redis.channel_prefix":           {"PDF2AUDIO_REDIS_CHANNEL_PREFIX"},
		"llm.gateway.api_key":            {"PDF2AUDIO_LLM_GATEWAY_API_KEY", "OPENROUTER_API_KEY"},
		"llm.gateway.base_url":           {"PDF2AUDIO_LLM_GATEWAY_BASE_URL"},
		"llm.gateway.summary_model":      {"PDF2AUDIO_LLM_GATEWAY_SUMMARY_MODEL", "LLM_MODEL"},
		"llm.gateway.explanation_model":  {"PDF2AUDIO_LLM_GATEWAY_EXPLANATION_MODEL", "LLM_MODEL"},
		"llm.gateway.timeout_secs":       {"PDF2AUDIO_LLM_GATEWAY_TIMEOUT_SECS"},
		"llm.direct.api_key":             {"PDF2AUDIO_LLM_DIRECT_API_KEY", "OPENAI_API_KEY"},
		"llm.direct.base_url":            {"PDF2AUDIO_LLM_DIRECT_BASE_URL"},
		"llm.direct.summary_model":       {"PDF2AUDIO_LLM_DIRECT_SUMMARY_MODEL"},
		"llm.direct.explanation_model":   {"PDF2AUDIO_LLM_DIRECT_EXPLANATION_MODEL"},
		"llm.direct.timeout_secs":        {"PDF2AUDIO_LLM_DIRECT_TIMEOUT_SECS"},
		"llm.max_input_chars":            {"PDF2AUDIO_LLM_MAX_INPUT_CHARS"},
		"llm.max_attempts":               {"PDF2AUDIO_LLM_MAX_ATTEMPTS"},
		"tts.testing_mode":               {"PDF2AUDIO_TTS_TESTING_MODE", "TESTING_MODE"},
		"tts.timeout_secs":               {"PDF2AUDIO_TTS_TIMEOUT_SECS"},
		"tts.openai.api_key":             {"PDF2AUDIO_TTS_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"tts.openai.base_url":            {"PDF2AUDIO_TTS_OPENAI_BASE_URL"},
		"tts.openai.model":               {"PDF2AUDIO_TTS_OPENAI_MODEL"},
		"tts.google.credentials_json":    {"PDF2AUDIO_TTS_GOOGLE_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS_JSON"},
		"tts.google.credentials_file":    {"PDF2AUDIO_TTS_GOOGLE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"},
		"tts.google.endpoint":            {"PDF2AUDIO_TTS_GOOGLE_ENDPOINT"},
		"tts.polly.region":               {"PDF2AUDIO_TTS_POLLY_REGION", "AWS_REGION"},
		"tts.polly.access_key":           {"PDF2AUDIO_TTS_POLLY_ACCESS_KEY", "AWS_ACCESS_KEY_ID"},
		"tts.polly.secret_key":           {"PDF2AUDIO_TTS_POLLY_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"},
		"tts.polly.engine":               {"PDF2AUDIO_TTS_POLLY_ENGINE"},
		"tts.polly.endpoint":             {"PDF2AUDIO_TTS_POLLY_ENDPOINT"},
		"tts.azure.key":                  {"PDF2AUDIO_TTS_AZURE_KEY", "AZURE_SPEECH_KEY"},
		"tts.azure.region":               {"PDF2AUDIO_TTS_AZURE_REGION", "AZURE_SPEECH_REGION"},
		"tts.azure.endpoint":             {"PDF2AUDIO_TTS_AZURE_ENDPOINT"},
		"tts.elevenlabs.api_key":         {"PDF2AUDIO_TTS_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY"},
		"tts.elevenlabs.base_url":        {"PDF2AUDIO_TTS_ELEVENLABS_BASE_URL"},
		"tts.elevenlabs.model":           {"PDF2AUDIO_TTS_ELEVENLABS_MODEL"},
		"audio.ffmpeg_path":              {"PDF2AUDIO_AUDIO_FFMPEG_PATH"},
		"audio.raw_concat_fallback":      {"PDF2AUDIO_AUDIO_RAW_CONCAT_FALLBACK"},
		"pipeline.max_chunk_chars":       {"PDF2AUDIO_PIPELINE_MAX_CHUNK_CHARS"},
		"pipeline.synthesis_concurrency": {"PDF2AUDIO_PIPELINE_SYNTHESIS_CONCURRENCY"},
		"pipeline.work_dir":              {"PDF2AUDIO_PIPELINE_WORK_DIR"},
		"pipeline.ocr_language":          {"PDF2AUDIO_PIPELINE_OCR_LANGUAGE"},
		"cost.openai_rate":               {"PDF2AUDIO_COST_OPENAI_RATE"},
		"cost.aws_polly_rate":            {"PDF2AUDIO_COST_AWS_POLLY_RATE"},
		"cost.azure_rate":                {"PDF2AUDIO_COST_AZURE_RATE"},
		"cost.eleven_labs_rate":          {"PDF2AUDIO_COST_ELEVEN_LABS_RATE"},
		"cost.google_standard_rate":      {"PDF2AUDIO_COST_GOOGLE_STANDARD_RATE", "GOOGLE_TTS_COST_WAVENET"},
		"cost.google_premium_rate":       {"PDF2AUDIO_COST_GOOGLE_PREMIUM_RATE", "GOOGLE_TTS_COST_CHIRP"},
		"cost.premium_voice_markers":     {"PDF2AUDIO_COST_PREMIUM_VOICE_MARKERS"},
		"cost.llm_input_per_1k":          {"PDF2AUDIO_COST_LLM_INPUT_PER_1K"},
		"cost.llm_output_per_1k":         {"PDF2AUDIO_COST_LLM_OUTPUT_PER_1K"},
		"cost.local_endpoint_markers":    {"PDF2AUDIO_COST_LOCAL_ENDPOINT_MARKERS"},
	}
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	// Google voice table: semantic key -> voice name.
	for key, voice := range defaultGoogleVoices {
		cfgKey := "tts.google.voices." + key
		v.SetDefault(cfgKey, voice)
		_ = v.BindEnv(cfgKey, "PDF2AUDIO_TTS_GOOGLE_VOICE_"+strings.ToUpper(key), "GOOGLE_VOICE_"+strings.ToUpper(key))
	}

	cfg := &Config{}

	cfg.Server = ServerConfig{
		HealthAddr:  v.GetString("server.health_addr"),
		Environment: v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Queue = QueueConfig{
		PollIntervalSecs:   v.GetInt("queue.poll_interval_secs"),
		Concurrency:        v.GetInt("queue.concurrency"),
		MaxAttempts:        v.GetInt("queue.max_attempts"),
		RetryCountdownSecs: v.GetInt("queue.retry_countdown_secs"),
		SoftTimeLimit:      v.GetDuration("queue.soft_time_limit"),
		HardTimeLimit:      v.GetDuration("queue.hard_time_limit"),
	}
	cfg.Retention = RetentionConfig{
		MaxAgeDays:    v.GetInt("retention.max_age_days"),
		SweepInterval: v.GetDuration("retention.sweep_interval"),
		BatchSize:     v.GetInt("retention.batch_size"),
	}
	cfg.Redis = RedisConfig{
		Addr:          v.GetString("redis.addr"),
		Password:      v.GetString("redis.password"),
		DB:            v.GetInt("redis.db"),
		ChannelPrefix: v.GetString("redis.channel_prefix"),
	}
	cfg.LLM = LLMConfig{
		Gateway:       loadLLMProvider(v, "llm.gateway"),
		Direct:        loadLLMProvider(v, "llm.direct"),
		MaxInputChars: v.GetInt("llm.max_input_chars"),
		MaxAttempts:   v.GetInt("llm.max_attempts"),
	}

	voices := make(map[string]string, len(defaultGoogleVoices))
	for key := range defaultGoogleVoices {
		voices[key] = v.GetString("tts.google.voices." + key)
	}
	cfg.TTS = TTSConfig{
		TestingMode: v.GetBool("tts.testing_mode"),
		TimeoutSecs: v.GetInt("tts.timeout_secs"),
		OpenAI: OpenAITTSConfig{
			APIKey:  v.GetString("tts.openai.api_key"),
			BaseURL: v.GetString("tts.openai.base_url"),
			Model:   v.GetString("tts.openai.model"),
		},
		Google: GoogleTTSConfig{
			CredentialsJSON: v.GetString("tts.google.credentials_json"),
			CredentialsFile: v.GetString("tts.google.credentials_file"),
			Endpoint:        v.GetString("tts.google.endpoint"),
			Voices:          voices,
		},
		Polly: PollyTTSConfig{
			Region:    v.GetString("tts.polly.region"),
			AccessKey: v.GetString("tts.polly.access_key"),
			SecretKey: v.GetString("tts.polly.secret_key"),
			Engine:    v.GetString("tts.polly.engine"),
			Endpoint:  v.GetString("tts.polly.endpoint"),
		},
		Azure: AzureTTSConfig{
			Key:      v.GetString("tts.azure.key"),
			Region:   v.GetString("tts.azure.region"),
			Endpoint: v.GetString("tts.azure.endpoint"),
		},
		ElevenLabs: ElevenLabsTTSConfig{
			APIKey:  v.GetString("tts.elevenlabs.api_key"),
			BaseURL: v.GetString("tts.elevenlabs.base_url"),
			Model:   v.GetString("tts.elevenlabs.model"),
		},
	}
	cfg.Audio = AudioConfig{
		FFmpegPath:        v.GetString("audio.ffmpeg_path"),
		RawConcatFallback: v.GetBool("audio.raw_concat_fallback"),
	}
	cfg.Pipeline = PipelineConfig{
		MaxChunkChars:        v.GetInt("pipeline.max_chunk_chars"),
		SynthesisConcurrency: v.GetInt("pipeline.synthesis_concurrency"),
		WorkDir:              v.GetString("pipeline.work_dir"),
		OCRLanguage:          v.GetString("pipeline.ocr_language"),
	}
	cfg.Cost = CostConfig{
		TTSRates: map[string]float64{
			"openai":      v.GetFloat64("cost.openai_rate"),
			"aws_polly":   v.GetFloat64("cost.aws_polly_rate"),
			"azure":       v.GetFloat64("cost.azure_rate"),
			"eleven_labs": v.GetFloat64("cost.eleven_labs_rate"),
			"mock":        0,
		},
		GoogleStandardRate:   v.GetFloat64("cost.google_standard_rate"),
		GooglePremiumRate:    v.GetFloat64("cost.google_premium_rate"),
		PremiumVoiceMarkers:  splitList(v.GetString("cost.premium_voice_markers")),
		LLMInputPer1K:        v.GetFloat64("cost.llm_input_per_1k"),
		LLMOutputPer1K:       v.GetFloat64("cost.llm_output_per_1k"),
		LocalEndpointMarkers: splitList(v.GetString("cost.local_endpoint_markers")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultGoogleVoices maps the semantic voice keys to Google voice names.
// Premium keys default to Chirp3 HD voices.
var defaultGoogleVoices = map[string]string{
	"us_female_std":     "en-US-Wavenet-C",
	"us_male_std":       "en-US-Wavenet-I",
	"gb_female_std":     "en-GB-Wavenet-F",
	"gb_male_std":       "en-GB-Wavenet-O",
	"us_female_premium": "en-US-Chirp3-HD-Sulafat",
	"us_male_premium":   "en-US-Chirp3-HD-Enceladus",
	"gb_female_premium": "en-GB-Chirp3-HD-Despina",
	"gb_male_premium":   "en-GB-Chirp3-HD-Umbriel",
}

func loadLLMProvider(v *viper.Viper, prefix string) LLMProviderConfig {
	return LLMProviderConfig{
		Provider:         v.GetString(prefix + ".provider"),
		APIKey:           v.GetString(prefix + ".api_key"),
		BaseURL:          v.GetString(prefix + ".base_url"),
		SummaryModel:     v.GetString(prefix + ".summary_model"),
		ExplanationModel: v.GetString(prefix + ".explanation_model"),
		TimeoutSecs:      v.GetInt(prefix + ".timeout_secs"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.MaxChunkChars <= 0 {
		return fmt.Errorf("pipeline.max_chunk_chars must be positive, got %d", c.Pipeline.MaxChunkChars)
	}
	if c.Pipeline.SynthesisConcurrency < 1 {
		c.Pipeline.SynthesisConcurrency = 1
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be at least 1, got %d", c.Queue.Concurrency)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1, got %d", c.LLM.MaxAttempts)
	}
	return nil
}

// IsProduction reports whether the worker runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// WorkRoot returns the directory job working directories are created under.
func (c *Config) WorkRoot() string {
	if c.Pipeline.WorkDir != "" {
		return c.Pipeline.WorkDir
	}
	return os.TempDir()
}
