package enrich

import (
	"strings"
	"testing"
)

func TestExtractMeta(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head>
<title>Understanding WAL Mode</title>
<meta name="description" content="How SQLite write-ahead logging works.">
<meta property="og:site_name" content="SQLite Docs">
</head>
<body><p>ignored</p></body>
</html>`

	meta := ExtractMeta(strings.NewReader(page))
	if meta.Title != "Understanding WAL Mode" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "How SQLite write-ahead logging works." {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.SiteName != "SQLite Docs" {
		t.Errorf("SiteName = %q", meta.SiteName)
	}
}

func TestExtractMeta_OpenGraphFallbacks(t *testing.T) {
	page := `<head>
<meta property="og:title" content="OG Title">
<meta property="og:description" content="OG description.">
</head>`

	meta := ExtractMeta(strings.NewReader(page))
	if meta.Title != "OG Title" {
		t.Errorf("Title = %q, want the og:title fallback", meta.Title)
	}
	if meta.Description != "OG description." {
		t.Errorf("Description = %q", meta.Description)
	}
}

func TestExtractMeta_TitleTagWinsOverOpenGraph(t *testing.T) {
	page := `<head>
<title>Real Title</title>
<meta property="og:title" content="OG Title">
</head>`

	meta := ExtractMeta(strings.NewReader(page))
	if meta.Title != "Real Title" {
		t.Errorf("Title = %q, want the title tag", meta.Title)
	}
}

func TestExtractMeta_StopsAtBody(t *testing.T) {
	page := `<head><title>Head Title</title></head>
<body><meta name="description" content="should be ignored"></body>`

	meta := ExtractMeta(strings.NewReader(page))
	if meta.Description != "" {
		t.Errorf("Description = %q, want metadata in body ignored", meta.Description)
	}
}

func TestExtractMeta_MalformedInput(t *testing.T) {
	for _, page := range []string{
		"",
		"not html at all",
		"<title>unclosed",
		"<meta name=description>",
	} {
		// Must not panic or loop; returned metadata may be partial.
		_ = ExtractMeta(strings.NewReader(page))
	}
}
