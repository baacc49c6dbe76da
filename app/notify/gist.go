package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const githubAPI = "https://api.github.com"

type gistFile struct {
	Content string `json:"content"`
}

type gistUpdate struct {
	Description string              `json:"description,omitempty"`
	Files       map[string]gistFile `json:"files"`
}

// Gist replaces one file of an existing GitHub gist with the report
type Gist struct {
	client   *resty.Client
	gistID   string
	fileName string
}

func NewGist(gistID, token, fileName string) *Gist {
	return newGist(githubAPI, gistID, token, fileName)
}

func newGist(baseURL, gistID, token, fileName string) *Gist {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetAuthToken(token).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28")

	return &Gist{
		client:   client,
		gistID:   gistID,
		fileName: fileName,
	}
}

func (g *Gist) Name() string {
	return "gist"
}

func (g *Gist) Deliver(ctx context.Context, msg Message) error {
	body := gistUpdate{
		Description: msg.Title(),
		Files:       map[string]gistFile{g.fileName: {Content: msg.Text}},
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("id", g.gistID).
		SetBody(body).
		Patch("/gists/{id}")
	if err != nil {
		return fmt.Errorf("failed to update gist: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("GitHub returned HTTP %d updating gist %s", resp.StatusCode(), g.gistID)
	}

	return nil
}
