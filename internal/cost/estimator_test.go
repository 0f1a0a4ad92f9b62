package cost_test

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/cost"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

func testCostConfig() *config.CostConfig {
	return &config.CostConfig{
		TTSRates: map[string]float64{
			"openai":      15,
			"aws_polly":   16,
			"azure":       16,
			"eleven_labs": 300,
			"mock":        0,
		},
		GoogleStandardRate:   4,
		GooglePremiumRate:    30,
		PremiumVoiceMarkers:  []string{"Chirp", "Studio", "premium"},
		LLMInputPer1K:        0.0005,
		LLMOutputPer1K:       0.0015,
		LocalEndpointMarkers: []string{"localhost", "127.0.0.1"},
	}
}

func TestEstimate_MockIsFree(t *testing.T) {
	e := cost.NewEstimator(testCostConfig(), nil)

	got := e.Estimate(domain.ProviderMock, "default", "Hello World", 0)

	assert.True(t, got.IsZero())
}

func TestEstimate_ProviderRate(t *testing.T) {
	e := cost.NewEstimator(testCostConfig(), nil)

	got := e.EstimateCharacters(domain.ProviderOpenAI, "alloy", 1_000_000, 0)

	assert.Equal(t, "15", got.String())
}

func TestEstimate_GoogleTiers(t *testing.T) {
	tts := &config.TTSConfig{Google: config.GoogleTTSConfig{Voices: map[string]string{
		"us_female_std":     "en-US-Wavenet-C",
		"us_female_premium": "en-US-Chirp3-HD-Sulafat",
		"gb_male_hd":        "en-GB-Chirp3-HD-Umbriel",
	}}}
	e := cost.NewEstimator(testCostConfig(), tts)

	assert.Equal(t, "4", e.EstimateCharacters(domain.ProviderGoogle, "us_female_std", 1_000_000, 0).String())
	assert.Equal(t, "30", e.EstimateCharacters(domain.ProviderGoogle, "us_female_premium", 1_000_000, 0).String())
	assert.Equal(t, "30", e.EstimateCharacters(domain.ProviderGoogle, "gb_male_hd", 1_000_000, 0).String())
	assert.Equal(t, "30", e.EstimateCharacters(domain.ProviderGoogle, "en-US-Studio-O", 1_000_000, 0).String())
}

func TestEstimate_LocalEndpointZeroesTTS(t *testing.T) {
	tts := &config.TTSConfig{OpenAI: config.OpenAITTSConfig{BaseURL: "http://localhost:8880/v1"}}
	e := cost.NewEstimator(testCostConfig(), tts)

	assert.True(t, e.TTSCost(domain.ProviderOpenAI, "alloy", 500_000).IsZero())
	assert.False(t, e.TTSCost(domain.ProviderAzure, "", 500_000).IsZero())
}

func TestEstimate_LLMUsesAverageRate(t *testing.T) {
	e := cost.NewEstimator(testCostConfig(), nil)

	got := e.EstimateCharacters(domain.ProviderMock, "", 0, 2000)

	assert.True(t, decimal.RequireFromString("0.002").Equal(got), got.String())
}

func TestEstimate_RoundsToSixPlaces(t *testing.T) {
	e := cost.NewEstimator(testCostConfig(), nil)

	got := e.EstimateCharacters(domain.ProviderOpenAI, "", 1, 1)

	// 0.000015 + 0.000001
	assert.Equal(t, "0.000016", got.String())
}

func TestEstimate_CountsRunes(t *testing.T) {
	e := cost.NewEstimator(testCostConfig(), nil)

	assert.True(t, e.Estimate(domain.ProviderElevenLabs, "", "héllo", 0).
		Equal(e.EstimateCharacters(domain.ProviderElevenLabs, "", 5, 0)))
}

func TestEstimate_Monotonic(t *testing.T) {
	e := cost.NewEstimator(testCostConfig(), nil)
	rng := rand.New(rand.NewPCG(7, 11))
	providers := []domain.VoiceProvider{
		domain.ProviderOpenAI, domain.ProviderGoogle, domain.ProviderAWSPolly,
		domain.ProviderAzure, domain.ProviderElevenLabs, domain.ProviderMock,
	}

	for i := 0; i < 200; i++ {
		p := providers[rng.IntN(len(providers))]
		chars := rng.IntN(2_000_000)
		tokens := rng.IntN(50_000)
		base := e.EstimateCharacters(p, "default", chars, tokens)

		moreChars := e.EstimateCharacters(p, "default", chars+rng.IntN(10_000), tokens)
		moreTokens := e.EstimateCharacters(p, "default", chars, tokens+rng.IntN(10_000))

		assert.True(t, moreChars.GreaterThanOrEqual(base), "chars %s %d", p, chars)
		assert.True(t, moreTokens.GreaterThanOrEqual(base), "tokens %s %d", p, tokens)
	}
}

func TestEstimate_EmptyText(t *testing.T) {
	e := cost.NewEstimator(testCostConfig(), nil)

	assert.True(t, e.Estimate(domain.ProviderAzure, "", "", 0).IsZero())
}
