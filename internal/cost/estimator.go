// Package cost estimates the informational price of a conversion.
package cost

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

const resultPlaces = 6

var (
	oneMillion  = decimal.NewFromInt(1_000_000)
	oneThousand = decimal.NewFromInt(1000)
	two         = decimal.NewFromInt(2)
)

// Estimator prices TTS characters and LLM tokens from configured rates.
type Estimator struct {
	ttsRates        map[domain.VoiceProvider]decimal.Decimal
	googleStandard  decimal.Decimal
	googlePremium   decimal.Decimal
	premiumMarkers  []string
	googleVoices    map[string]string
	llmPer1K        decimal.Decimal
	localMarkers    []string
	providerBaseURL func(provider string) string
}

// NewEstimator builds an Estimator. tts may be nil when no provider uses a
// custom endpoint.
func NewEstimator(cfg *config.CostConfig, tts *config.TTSConfig) *Estimator {
	e := &Estimator{
		ttsRates:       make(map[domain.VoiceProvider]decimal.Decimal, len(cfg.TTSRates)),
		googleStandard: decimal.NewFromFloat(cfg.GoogleStandardRate),
		googlePremium:  decimal.NewFromFloat(cfg.GooglePremiumRate),
		premiumMarkers: lowerAll(cfg.PremiumVoiceMarkers),
		llmPer1K: decimal.NewFromFloat(cfg.LLMInputPer1K).
			Add(decimal.NewFromFloat(cfg.LLMOutputPer1K)).
			Div(two),
		localMarkers:    lowerAll(cfg.LocalEndpointMarkers),
		providerBaseURL: func(string) string { return "" },
	}
	for provider, rate := range cfg.TTSRates {
		e.ttsRates[domain.VoiceProvider(provider)] = decimal.NewFromFloat(rate)
	}
	if tts != nil {
		e.providerBaseURL = tts.BaseURLFor
		e.googleVoices = tts.Google.Voices
	}
	return e
}

// Estimate returns the cost of narrating text plus tokensUsed LLM tokens,
// rounded to 6 decimal places.
func (e *Estimator) Estimate(provider domain.VoiceProvider, voice, text string, tokensUsed int) decimal.Decimal {
	return e.EstimateCharacters(provider, voice, utf8.RuneCountInString(text), tokensUsed)
}

// EstimateCharacters is Estimate for a known character count.
func (e *Estimator) EstimateCharacters(provider domain.VoiceProvider, voice string, chars, tokensUsed int) decimal.Decimal {
	return e.TTSCost(provider, voice, chars).
		Add(e.LLMCost(tokensUsed)).
		Round(resultPlaces)
}

// TTSCost is chars / 1M times the provider's rate. Providers pointed at a
// local endpoint cost nothing.
func (e *Estimator) TTSCost(provider domain.VoiceProvider, voice string, chars int) decimal.Decimal {
	if chars <= 0 || e.isLocal(provider) {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(chars)).Div(oneMillion).Mul(e.rateFor(provider, voice))
}

// LLMCost is tokens / 1K times the mean of the input and output rates.
func (e *Estimator) LLMCost(tokens int) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(tokens)).Div(oneThousand).Mul(e.llmPer1K)
}

func (e *Estimator) rateFor(provider domain.VoiceProvider, voice string) decimal.Decimal {
	if provider == domain.ProviderGoogle {
		if e.isPremiumVoice(voice) {
			return e.googlePremium
		}
		return e.googleStandard
	}
	return e.ttsRates[provider]
}

// isPremiumVoice matches the selector, and the voice it maps to, against the
// premium markers.
func (e *Estimator) isPremiumVoice(voice string) bool {
	candidates := []string{strings.ToLower(voice)}
	if mapped, ok := e.googleVoices[strings.ToLower(strings.TrimSpace(voice))]; ok {
		candidates = append(candidates, strings.ToLower(mapped))
	}
	for _, c := range candidates {
		for _, marker := range e.premiumMarkers {
			if marker != "" && strings.Contains(c, marker) {
				return true
			}
		}
	}
	return false
}

func (e *Estimator) isLocal(provider domain.VoiceProvider) bool {
	base := strings.ToLower(e.providerBaseURL(string(provider)))
	if base == "" {
		return false
	}
	for _, marker := range e.localMarkers {
		if marker != "" && strings.Contains(base, marker) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
