package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/feeds"

	"github.com/blackmichael/onchain-posts/internal/domain"
)

const feedTitleWords = 12

// Feed builds an RSS/Atom feed of posts as read by account, newest first.
func Feed(posts []domain.Post, account domain.Account, link string) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       "Posts for " + ShortAddress(string(account)),
		Link:        &feeds.Link{Href: link},
		Id:          fmt.Sprintf("onchain-posts-%s", strings.ToLower(string(account))),
		Description: "Posts read from the posts contract",
	}

	for _, post := range SortPosts(posts) {
		created := time.Unix(post.Timestamp, 0).UTC()
		item := &feeds.Item{
			Title:       feedTitle(post.Content),
			Link:        &feeds.Link{Href: link},
			Author:      &feeds.Author{Name: ShortAddress(string(post.Author))},
			Id:          string(post.Author) + "#" + strconv.FormatUint(post.ID, 10),
			Created:     created,
			Description: post.Content,
		}
		if created.After(feed.Updated) {
			feed.Updated = created
		}
		feed.Items = append(feed.Items, item)
	}

	return feed
}

func feedTitle(content string) string {
	title := strings.TrimSpace(content)
	if utf8.RuneCountInString(title) > 50 {
		words := strings.Fields(title)
		if len(words) > feedTitleWords {
			words = words[:feedTitleWords]
		}
		title = strings.Join(words, " ")
	}
	return title
}
