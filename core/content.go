package core

import (
	"context"
	"strings"
)

// HomeContentKey is the record id of the homepage hero in the content collection.
const HomeContentKey = "homepage"

// HomeContent is the hero section shown at the top of the public homepage.
type HomeContent struct {
	HeroTitle    string `json:"heroTitle" bson:"heroTitle"`
	HeroSubtitle string `json:"heroSubtitle" bson:"heroSubtitle"`
	HeroText     string `json:"heroText" bson:"heroText"`
}

// ContentStore persists the fixed-field site content.
type ContentStore interface {
	// GetHomeContent returns ErrNotFound until the hero has been saved once.
	GetHomeContent(ctx context.Context) (*HomeContent, error)

	// PutHomeContent overwrites every hero field.
	PutHomeContent(ctx context.Context, c *HomeContent) error
}

// Trimmed returns a copy with surrounding whitespace removed from the single
// line fields. HeroText keeps its line breaks.
func (c HomeContent) Trimmed() HomeContent {
	c.HeroTitle = strings.TrimSpace(c.HeroTitle)
	c.HeroSubtitle = strings.TrimSpace(c.HeroSubtitle)
	c.HeroText = strings.TrimRight(c.HeroText, " \t\r\n")
	return c
}
