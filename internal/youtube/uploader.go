package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"dailycast/internal/config"
	"dailycast/internal/services"
)

const defaultUploadBaseURL = "https://www.googleapis.com/upload/youtube/v3"

// Uploader performs resumable video uploads using a stored OAuth token.
type Uploader struct {
	http          *resty.Client
	tokenPath     string
	uploadBaseURL string
}

// NewUploader builds an uploader from configuration.
func NewUploader(cfg *config.Config) *Uploader {
	baseURL := cfg.YouTube.UploadBaseURL
	if baseURL == "" {
		baseURL = defaultUploadBaseURL
	}
	// No client-level timeout: a large upload legitimately runs for a
	// long time. The run context bounds it instead.
	return &Uploader{
		http:          resty.New(),
		tokenPath:     cfg.YouTube.TokenPath,
		uploadBaseURL: baseURL,
	}
}

// UploadRequest describes one video to publish.
type UploadRequest struct {
	FilePath    string
	Title       string
	Description string
	Privacy     string
}

type oauthToken struct {
	Token        string `json:"token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenURI     string `json:"token_uri"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Expiry       string `json:"expiry"`
}

func (t *oauthToken) bearer() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Token
}

func (t *oauthToken) expired() bool {
	if t.Expiry == "" {
		return false
	}
	expiry, err := time.Parse(time.RFC3339, t.Expiry)
	if err != nil {
		return false
	}
	return time.Now().After(expiry.Add(-time.Minute))
}

func (u *Uploader) loadToken(ctx context.Context) (*oauthToken, error) {
	raw, err := os.ReadFile(u.tokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read oauth token: %v", services.ErrConfiguration, err)
	}
	var token oauthToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("%w: parse oauth token: %v", services.ErrConfiguration, err)
	}
	if token.bearer() == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: oauth token file has no credentials", services.ErrConfiguration)
	}
	if token.expired() && token.RefreshToken != "" {
		if err := u.refreshToken(ctx, &token); err != nil {
			return nil, err
		}
	}
	return &token, nil
}

func (u *Uploader) refreshToken(ctx context.Context, token *oauthToken) error {
	if token.TokenURI == "" || token.ClientID == "" || token.ClientSecret == "" {
		return fmt.Errorf("%w: oauth token is expired and cannot be refreshed", services.ErrConfiguration)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	resp, err := u.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     token.ClientID,
			"client_secret": token.ClientSecret,
			"refresh_token": token.RefreshToken,
			"grant_type":    "refresh_token",
		}).
		SetResult(&result).
		Post(token.TokenURI)
	if err != nil {
		return fmt.Errorf("%w: refresh oauth token: %v", services.ErrTransient, err)
	}
	if resp.IsError() {
		return fmt.Errorf("refresh oauth token: status %d", resp.StatusCode())
	}

	token.AccessToken = result.AccessToken
	token.Token = result.AccessToken
	if result.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second).Format(time.RFC3339)
	}

	// Best effort: persist the refreshed token so the next run skips
	// the refresh round trip.
	if raw, err := json.MarshalIndent(token, "", "  "); err == nil {
		_ = os.WriteFile(u.tokenPath, raw, 0o600)
	}
	return nil
}

// Upload publishes a file and returns the new remote video id. The
// upload is resumable on the wire but treated as one shot here; a
// failed session is retried from scratch on the next run.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (string, error) {
	token, err := u.loadToken(ctx)
	if err != nil {
		return "", err
	}

	metadata := map[string]any{
		"snippet": map[string]any{
			"title":       req.Title,
			"description": req.Description,
		},
		"status": map[string]any{
			"privacyStatus": req.Privacy,
		},
	}

	initResp, err := u.http.R().
		SetContext(ctx).
		SetAuthToken(token.bearer()).
		SetHeader("X-Upload-Content-Type", "video/*").
		SetBody(metadata).
		Post(u.uploadBaseURL + "/videos?uploadType=resumable&part=snippet,status")
	if err != nil {
		return "", fmt.Errorf("%w: start upload session: %v", services.ErrTransient, err)
	}
	if initResp.IsError() {
		return "", fmt.Errorf("start upload session: status %d: %s", initResp.StatusCode(), initResp.String())
	}
	sessionURL := initResp.Header().Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("start upload session: missing session location")
	}

	file, err := os.Open(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat upload file: %w", err)
	}

	// The media body streams straight from disk. resty buffers reader
	// bodies fully in memory before sending, which a multi-gigabyte
	// video does not survive.
	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, file)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	uploadReq.ContentLength = info.Size()
	uploadReq.Header.Set("Authorization", "Bearer "+token.bearer())
	uploadReq.Header.Set("Content-Type", "video/*")

	uploadResp, err := u.http.GetClient().Do(uploadReq)
	if err != nil {
		return "", fmt.Errorf("%w: upload video: %v", services.ErrTransient, err)
	}
	defer uploadResp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(uploadResp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read upload response: %v", services.ErrTransient, err)
	}
	if uploadResp.StatusCode >= 300 {
		return "", fmt.Errorf("upload video: status %d: %s", uploadResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return "", fmt.Errorf("upload video: parse response: %w", err)
	}
	if uploaded.ID == "" {
		return "", fmt.Errorf("upload video: response missing video id")
	}
	return uploaded.ID, nil
}

// SetThumbnail attaches a custom thumbnail to an uploaded video.
func (u *Uploader) SetThumbnail(ctx context.Context, videoID, imagePath string) error {
	token, err := u.loadToken(ctx)
	if err != nil {
		return err
	}

	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read thumbnail: %w", err)
	}

	resp, err := u.http.R().
		SetContext(ctx).
		SetAuthToken(token.bearer()).
		SetHeader("Content-Type", "image/jpeg").
		SetBody(image).
		SetQueryParam("videoId", videoID).
		Post(u.uploadBaseURL + "/thumbnails/set")
	if err != nil {
		return fmt.Errorf("%w: set thumbnail: %v", services.ErrTransient, err)
	}
	if resp.IsError() {
		return fmt.Errorf("set thumbnail: status %d", resp.StatusCode())
	}
	return nil
}
