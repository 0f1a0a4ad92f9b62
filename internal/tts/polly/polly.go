// Package polly synthesizes speech with Amazon Polly.
package polly

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
)

const defaultVoice = types.VoiceIdJoanna

var voiceMapping = map[string]types.VoiceId{
	"default":       types.VoiceIdJoanna,
	"female":        types.VoiceIdJoanna,
	"male":          types.VoiceIdMatthew,
	"us_female_std": types.VoiceIdJoanna,
	"us_male_std":   types.VoiceIdMatthew,
	"gb_female_std": types.VoiceIdAmy,
	"gb_male_std":   types.VoiceIdBrian,
}

// API is the subset of the Polly client used here.
type API interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Synthesizer implements port.SpeechSynthesizer for Amazon Polly.
type Synthesizer struct {
	api    API
	engine types.Engine
}

// NewSynthesizer creates a Polly synthesizer from static keys when present,
// else the default AWS credential chain.
func NewSynthesizer(ctx context.Context, cfg *config.PollyTTSConfig) (*Synthesizer, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var pollyOpts []func(*polly.Options)
	if cfg.Endpoint != "" {
		pollyOpts = append(pollyOpts, func(o *polly.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewSynthesizerWithAPI(polly.NewFromConfig(awsCfg, pollyOpts...), cfg.Engine), nil
}

// NewSynthesizerWithAPI wraps an existing Polly client (for testing).
func NewSynthesizerWithAPI(api API, engine string) *Synthesizer {
	e := types.Engine(engine)
	if e == "" {
		e = types.EngineNeural
	}
	return &Synthesizer{api: api, engine: e}
}

// ResolveVoice maps a selector to a Polly voice id. Polly voice ids pass
// through; unknown selectors get Joanna.
func ResolveVoice(selector string) types.VoiceId {
	trimmed := strings.TrimSpace(selector)
	if v, ok := voiceMapping[strings.ToLower(trimmed)]; ok {
		return v
	}
	for _, v := range types.VoiceId("").Values() {
		if string(v) == trimmed {
			return v
		}
	}
	return defaultVoice
}

// BuildSSML wraps text in a prosody element carrying speed as a percentage.
func BuildSSML(text string, speed float64) string {
	rate := fmt.Sprintf("%d%%", int(speed*100))
	return `<speak><prosody rate="` + rate + `">` + html.EscapeString(text) + `</prosody></speak>`
}

// Synthesize returns MP3 audio for text.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	out, err := s.api.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(BuildSSML(text, speed)),
		TextType:     types.TextTypeSsml,
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      ResolveVoice(voice),
		Engine:       s.engine,
	})
	if err != nil {
		return nil, fmt.Errorf("polly synthesize: %w", err)
	}
	if out.AudioStream == nil {
		return nil, errors.New("polly returned no audio stream")
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("polly audio read: %w", err)
	}
	return audio, nil
}
