// Package render turns post lists into HTML fragments, the page shell and
// RSS. Every render rebuilds its output from scratch.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"slices"

	"github.com/blackmichael/onchain-posts/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	shortPrefixLen = 6
	shortSuffixLen = 4
	avatarBaseURL  = "https://api.dicebear.com/7.x/identicon/svg"
)

// ShortAddress returns the first 6 and last 4 characters of s joined with
// an ellipsis. Strings shorter than 10 characters are returned unchanged.
func ShortAddress(s string) string {
	if len(s) < shortPrefixLen+shortSuffixLen {
		return s
	}
	return s[:shortPrefixLen] + "..." + s[len(s)-shortSuffixLen:]
}

// AvatarURL derives an avatar image URL from the author identifier. The
// same author always gets the same avatar.
func AvatarURL(author domain.Account) string {
	return avatarBaseURL + "?seed=" + url.QueryEscape(string(author))
}

// SortPosts returns a copy of posts ordered by timestamp, newest first.
// Posts with equal timestamps keep their input order.
func SortPosts(posts []domain.Post) []domain.Post {
	sorted := slices.Clone(posts)
	slices.SortStableFunc(sorted, func(a, b domain.Post) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return sorted
}

// PageData fills the page shell.
type PageData struct {
	Title      string
	Contract   string
	SocketPath string
}

// Renderer executes the embedded templates. Post content is escaped.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"short":  func(a domain.Account) string { return ShortAddress(string(a)) },
		"avatar": AvatarURL,
	}
	tmpl, err := template.New("render").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Posts writes one row per post, newest first. An empty list writes nothing.
func (r *Renderer) Posts(w io.Writer, posts []domain.Post) error {
	if err := r.tmpl.ExecuteTemplate(w, "posts", SortPosts(posts)); err != nil {
		return fmt.Errorf("render posts: %w", err)
	}
	return nil
}

// PostsHTML is Posts into a string.
func (r *Renderer) PostsHTML(posts []domain.Post) (string, error) {
	var buf bytes.Buffer
	if err := r.Posts(&buf, posts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Page writes the page shell.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	if err := r.tmpl.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}
