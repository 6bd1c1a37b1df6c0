package service

import (
	"strings"
	"testing"
)

func TestPostText(t *testing.T) {
	testCases := []struct {
		name         string
		title        string
		content      string
		categoryPath string
		tags         []string
		want         string
	}{
		{
			name:         "all components",
			title:        "Graph Theory Basics",
			content:      "An introduction to vertices and edges.",
			categoryPath: "Science > Math",
			tags:         []string{"graphs", "math"},
			want:         "Graph Theory Basics An introduction to vertices and edges. Category: Science > Math Tags: graphs, math",
		},
		{
			name:    "title only",
			title:   "Hello",
			content: "",
			want:    "Hello",
		},
		{
			name:         "no tags",
			title:        "Hello",
			content:      "World",
			categoryPath: "General",
			want:         "Hello World Category: General",
		},
		{
			name: "everything empty",
			want: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := PostText(tc.title, tc.content, tc.categoryPath, tc.tags)
			if got != tc.want {
				t.Errorf("PostText = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPostTextTruncatesContent(t *testing.T) {
	words := make([]string, 300)
	for i := range words {
		words[i] = "word"
	}
	got := PostText("", strings.Join(words, " "), "", nil)

	if n := len(strings.Fields(got)); n != 200 {
		t.Errorf("truncated content has %d words, want 200", n)
	}
}

func TestCategoryText(t *testing.T) {
	testCases := []struct {
		name         string
		categoryName string
		description  string
		parentName   string
		level        int
		want         string
	}{
		{
			name:         "root category",
			categoryName: "Science",
			description:  "All things science",
			level:        0,
			want:         "Science All things science main category",
		},
		{
			name:         "root without description",
			categoryName: "Science",
			want:         "Science main category",
		},
		{
			name:         "subcategory with parent",
			categoryName: "Physics",
			description:  "Matter and energy",
			parentName:   "Science",
			level:        1,
			want:         "Science Physics Matter and energy subcategory level 1",
		},
		{
			name:         "deep subcategory",
			categoryName: "Optics",
			parentName:   "Physics",
			level:        2,
			want:         "Physics Optics subcategory level 2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CategoryText(tc.categoryName, tc.description, tc.parentName, tc.level)
			if got != tc.want {
				t.Errorf("CategoryText = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUserText(t *testing.T) {
	testCases := []struct {
		name      string
		favorites []string
		snippets  []string
		want      string
	}{
		{
			name:      "favorites and snippets",
			favorites: []string{"Science", "Music"},
			snippets:  []string{"post one", "post two"},
			want:      "Science Music post one post two",
		},
		{
			name:     "snippets only",
			snippets: []string{"post one"},
			want:     "post one",
		},
		{
			name: "nothing at all",
			want: "general interests",
		},
		{
			name:      "whitespace favorites only",
			favorites: []string{" "},
			want:      "general interests",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := UserText(tc.favorites, tc.snippets)
			if got != tc.want {
				t.Errorf("UserText = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUserTextSnippetLimit(t *testing.T) {
	snippets := make([]string, 15)
	for i := range snippets {
		snippets[i] = "s"
	}
	snippets[14] = "newest"

	got := UserText(nil, snippets)
	fields := strings.Fields(got)

	if len(fields) != 10 {
		t.Fatalf("got %d snippets, want 10", len(fields))
	}
	if fields[9] != "newest" {
		t.Errorf("most recent snippet dropped: last field = %q", fields[9])
	}
}
