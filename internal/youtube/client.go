package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"dailycast/internal/config"
	"dailycast/internal/services"
)

const defaultAPIBaseURL = "https://www.googleapis.com/youtube/v3"

// VideoInfo is the metadata captured for a link at enqueue time.
type VideoInfo struct {
	ID              string
	Title           string
	Description     string
	DurationSeconds int
	ThumbnailURL    string
}

// Client looks up public video metadata through the Data API.
type Client struct {
	http    *resty.Client
	apiKey  string
	baseURL string
}

// NewClient builds a Data API client from configuration.
func NewClient(cfg *config.Config) *Client {
	baseURL := cfg.YouTube.APIBaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	http := resty.New().
		SetTimeout(time.Duration(cfg.YouTube.RequestTimeout) * time.Second)
	return &Client{
		http:    http,
		apiKey:  cfg.YouTube.APIKey,
		baseURL: baseURL,
	}
}

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string               `json:"title"`
			Description string               `json:"description"`
			Thumbnails  map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Lookup fetches title, description, duration, and the best thumbnail
// for a video id.
func (c *Client) Lookup(ctx context.Context, videoID string) (*VideoInfo, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: youtube api key is not configured", services.ErrConfiguration)
	}

	var payload videoListResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part": "snippet,contentDetails",
			"id":   videoID,
			"key":  c.apiKey,
		}).
		SetResult(&payload).
		SetError(&payload).
		Get(c.baseURL + "/videos")
	if err != nil {
		return nil, fmt.Errorf("%w: videos.list: %v", services.ErrTransient, err)
	}
	if resp.IsError() {
		if payload.Error.Message != "" {
			return nil, fmt.Errorf("videos.list: %s (status %d)", payload.Error.Message, resp.StatusCode())
		}
		return nil, fmt.Errorf("videos.list: status %d", resp.StatusCode())
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("%w: video %s", services.ErrNotFound, videoID)
	}

	item := payload.Items[0]
	duration, err := ParseISO8601Duration(item.ContentDetails.Duration)
	if err != nil {
		return nil, err
	}

	return &VideoInfo{
		ID:              item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		DurationSeconds: duration,
		ThumbnailURL:    bestThumbnail(item.Snippet.Thumbnails),
	}, nil
}

func bestThumbnail(thumbnails map[string]thumbnail) string {
	best := ""
	bestWidth := -1
	for _, thumb := range thumbnails {
		if thumb.Width > bestWidth {
			best = thumb.URL
			bestWidth = thumb.Width
		}
	}
	return best
}
