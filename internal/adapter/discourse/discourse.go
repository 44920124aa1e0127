// Package discourse is a minimal client for the Discourse-forum external
// collaborator named in spec.md: the full forum crawler (posts, revisions,
// post-likes, users) is out of scope, but the grouper needs a read path onto
// a DAO's open/non-archived/visible topics, optionally filtered by a
// category whitelist. This package implements only that contract, fetched
// over the same paginated REST shape the corpus's governance scanners use.
package discourse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"governance-indexer/internal/models"
)

// topicNamespace seeds deterministic topic ids: the same (forum, external
// topic id) pair always maps to the same uuid.UUID so repeated fetches
// upsert the same row instead of duplicating it.
var topicNamespace = uuid.MustParse("6f5e9b1a-6b21-4a6e-9d1f-9b5b9c2a9a10")

type categoriesResponse struct {
	CategoryList struct {
		Categories []struct {
			ID   int64  `json:"id"`
			Slug string `json:"slug"`
		} `json:"categories"`
	} `json:"category_list"`
}

type latestTopicsResponse struct {
	TopicList struct {
		MoreTopicsURL string `json:"more_topics_url,omitempty"`
		Topics        []rawTopic `json:"topics"`
	} `json:"topic_list"`
}

type rawTopic struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	CategoryID int64  `json:"category_id"`
	Closed     bool   `json:"closed"`
	Archived   bool   `json:"archived"`
	Visible    bool   `json:"visible"`
	CreatedAt  string `json:"created_at"`
}

// Client fetches topics from a single Discourse forum instance. Callers
// stamp the returned rows' DaoDiscourseID themselves since one forum may
// back more than one DAO's category subset.
type Client struct {
	BaseURL           string
	CategoryWhitelist map[int64]bool
	httpClient        *http.Client
}

func New(baseURL string, categoryWhitelist []int64) *Client {
	wl := make(map[int64]bool, len(categoryWhitelist))
	for _, c := range categoryWhitelist {
		wl[c] = true
	}
	return &Client{
		BaseURL:           baseURL,
		CategoryWhitelist: wl,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchTopics pages through /latest.json ascending by creation time,
// stopping once a page returns no topics, and filters by the configured
// category whitelist (if any) plus the open/non-archived/visible contract.
func (c *Client) FetchTopics(ctx context.Context, maxPages int) ([]models.DiscourseTopic, error) {
	var out []models.DiscourseTopic

	for page := 0; page < maxPages; page++ {
		url := fmt.Sprintf("%s/latest.json?order=created&ascending=true&page=%d", c.BaseURL, page)
		var resp latestTopicsResponse
		if err := c.getJSON(ctx, url, &resp); err != nil {
			return out, err
		}
		if len(resp.TopicList.Topics) == 0 {
			break
		}
		for _, t := range resp.TopicList.Topics {
			if !t.Visible || t.Archived || t.Closed {
				continue
			}
			if len(c.CategoryWhitelist) > 0 && !c.CategoryWhitelist[t.CategoryID] {
				continue
			}
			createdAt, _ := time.Parse(time.RFC3339, t.CreatedAt)
			id := uuid.NewSHA1(topicNamespace, []byte(fmt.Sprintf("%s:%d", c.BaseURL, t.ID)))
			out = append(out, models.DiscourseTopic{
				ID:         id,
				Title:      t.Title,
				Slug:       t.Slug,
				CategoryID: t.CategoryID,
				Closed:     t.Closed,
				Archived:   t.Archived,
				Visible:    t.Visible,
				CreatedAt:  createdAt,
			})
		}
	}
	return out, nil
}

// FetchCategories resolves the forum's category list into a slug -> id map.
func (c *Client) FetchCategories(ctx context.Context) (map[string]int64, error) {
	var resp categoriesResponse
	if err := c.getJSON(ctx, c.BaseURL+"/categories.json", &resp); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(resp.CategoryList.Categories))
	for _, cat := range resp.CategoryList.Categories {
		out[cat.Slug] = cat.ID
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discourse: %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
