package scraper

import "github.com/xhad/de5chat/internal/models"

const DefaultFallbackText = "DE5 is building an AI and blockchain-powered tokenization platform that democratizes capital access, creates liquidity, and supports a more inclusive financial ecosystem. DE5 aims to provide tokenization solutions for SMEs and investors."

// FallbackDocument is the single synthetic document indexed when no page
// could be loaded, so the index is never built empty.
func FallbackDocument(text string) models.Document {
	if text == "" {
		text = DefaultFallbackText
	}
	return models.Document{
		URL:      models.FallbackSource,
		Title:    "DE5",
		Content:  text,
		Metadata: map[string]interface{}{"source": models.FallbackSource},
	}
}
