package services

import (
	"context"
	"fmt"
	"log"
)

// DescriptionGenerator writes the marketing description of a new product.
type DescriptionGenerator interface {
	Describe(ctx context.Context, productName string) string
}

// FallbackDescription is used when no generated description is available.
func FallbackDescription(productName string) string {
	return fmt.Sprintf("Experience the new %s, designed for excellence.", productName)
}

// TextDescriptionGenerator asks a text generator for descriptions and falls
// back to FallbackDescription when it is disabled or fails.
type TextDescriptionGenerator struct {
	gen TextGenerator
}

// NewTextDescriptionGenerator creates a TextDescriptionGenerator. gen may be nil.
func NewTextDescriptionGenerator(gen TextGenerator) *TextDescriptionGenerator {
	return &TextDescriptionGenerator{gen: gen}
}

func (g *TextDescriptionGenerator) Describe(ctx context.Context, productName string) string {
	if g.gen == nil || !g.gen.Enabled() {
		return FallbackDescription(productName)
	}
	prompt := fmt.Sprintf("Generate a short, exciting, one-sentence marketing description for this phone model: %s.", productName)
	text, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		log.Printf("Error generating description for %s, falling back: %v", productName, err)
		return FallbackDescription(productName)
	}
	return text
}
