package transform

const summarySystemPrompt = `Summarize the following document in about 300 words.
Write flowing prose suitable for being read aloud: no bullet points, no markdown, no headings.
Cover the main argument, the key supporting points and the conclusion.`

const explanationSystemPrompt = `Analyze the provided text and create a comprehensive explanation of its core concepts.
Structure your response with clear section headings (like "CHAPTER 1: CONCEPT NAME") that will be used for chapterization.
Focus on explaining key ideas, methodologies, findings, and conclusions in a narrative form suitable for audio conversion.
Make the explanation educational and accessible, as if teaching the concepts to someone new to the topic.`

const (
	summaryMaxTokens       = 1000
	summaryTemperature     = 0.3
	explanationMaxTokens   = 4000
	explanationTemperature = 0.2
)

const (
	summaryFallbackChars     = 500
	explanationFallbackChars = 1000
	summaryPrefix            = "Summary of the document: "
)

func summaryFallback(text string) string {
	return truncateRunes(text, summaryFallbackChars) + "..."
}

func explanationFallback(text string) string {
	return "This document explores key concepts and ideas. " +
		truncateRunes(text, explanationFallbackChars) +
		"... The main themes and conclusions are presented in a structured format suitable for understanding the core content."
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
