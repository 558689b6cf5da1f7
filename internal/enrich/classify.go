package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

var labelCategories = map[string]string{
	"pothole on road":         "Potholes",
	"drainage issue":          "Drainage",
	"garbage problem":         "Sanitation",
	"streetlight not working": "Streetlights",
}

// CategoryForLabel maps a classifier label onto a report category. Anything
// unrecognised becomes Other.
func CategoryForLabel(label string) string {
	if c, ok := labelCategories[strings.ToLower(strings.TrimSpace(label))]; ok {
		return c
	}
	return "Other"
}

// Suggestion is what the classifier proposes for a photo.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Label       string `json:"label,omitempty"`
}

type Classifier struct {
	baseURL    string
	httpClient *http.Client
}

func NewClassifier(baseURL string) *Classifier {
	return &Classifier{baseURL: trimBase(baseURL), httpClient: newHTTPClient()}
}

func (c *Classifier) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Analyze sends the photo to the classifier's /report-issue endpoint.
func (c *Classifier) Analyze(ctx context.Context, filename string, r io.Reader) (*Suggestion, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/report-issue", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned error: %s - %s", resp.Status, string(msg))
	}
	var raw struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	return &Suggestion{
		Title:       raw.Title,
		Description: raw.Description,
		Category:    CategoryForLabel(raw.Category),
		Label:       raw.Category,
	}, nil
}
