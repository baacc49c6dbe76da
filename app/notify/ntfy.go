package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Ntfy struct {
	client   *resty.Client
	topicURL string
}

// NewNtfy publishes to <serverURL>/<topic>
func NewNtfy(serverURL, topic string) *Ntfy {
	return &Ntfy{
		client:   resty.New().SetTimeout(15 * time.Second),
		topicURL: strings.TrimRight(serverURL, "/") + "/" + strings.TrimLeft(topic, "/"),
	}
}

func (n *Ntfy) Name() string {
	return "ntfy"
}

func (n *Ntfy) Deliver(ctx context.Context, msg Message) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Title", msg.Title()).
		SetHeader("Tags", "movie_camera").
		SetHeader("Markdown", "yes").
		SetBody(msg.Text).
		Post(n.topicURL)
	if err != nil {
		return fmt.Errorf("failed to publish to ntfy: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ntfy returned HTTP %d", resp.StatusCode())
	}

	return nil
}
