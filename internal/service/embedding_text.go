package service

import (
	"fmt"
	"strings"
)

// Canonical text representations fed to the encoder. These are pure string
// builders; keeping them side-effect free makes the embedding pipeline
// deterministic for a given entity state.

const (
	postContentWordLimit   = 200
	userSnippetLimit       = 10
	userTextPlaceholder    = "general interests"
	rootCategoryMarker     = "main category"
	subcategoryMarkerStamp = "subcategory level %d"
)

// PostText builds the embedding text for a post: title, the first 200 words
// of content, the hierarchical category path (or flat name), and tags.
// Empty components are omitted.
func PostText(title, content, categoryPath string, tags []string) string {
	var parts []string

	if title != "" {
		parts = append(parts, title)
	}

	if content != "" {
		words := strings.Fields(content)
		if len(words) > postContentWordLimit {
			words = words[:postContentWordLimit]
		}
		parts = append(parts, strings.Join(words, " "))
	}

	if categoryPath != "" {
		parts = append(parts, "Category: "+categoryPath)
	}

	if len(tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}

	return strings.Join(parts, " ")
}

// CategoryText builds the embedding text for a category. Subcategories carry
// their parent's name as a prefix and a level marker; root categories are
// marked "main category".
func CategoryText(name, description, parentName string, level int) string {
	text := name
	if description != "" {
		text += " " + description
	}

	if parentName != "" && level > 0 {
		text = parentName + " " + text
	}

	if level > 0 {
		text += " " + fmt.Sprintf(subcategoryMarkerStamp, level)
	} else {
		text += " " + rootCategoryMarker
	}

	return text
}

// UserText builds the embedding text for a user from favorite category names
// and up to the 10 most recent interaction snippets. An empty result is
// replaced with a placeholder so the encoder never sees an empty string.
func UserText(favoriteCategories, recentSnippets []string) string {
	text := strings.Join(favoriteCategories, " ")

	if len(recentSnippets) > 0 {
		recent := recentSnippets
		if len(recent) > userSnippetLimit {
			recent = recent[len(recent)-userSnippetLimit:]
		}
		if text != "" {
			text += " "
		}
		text += strings.Join(recent, " ")
	}

	if strings.TrimSpace(text) == "" {
		return userTextPlaceholder
	}
	return text
}
