package equal

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
}

// httpClient returns a client that fetches and refreshes a client-credentials
// token on its own. Without credentials requests go out unauthenticated.
func (c Config) httpClient(ctx context.Context) *http.Client {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	if c.ClientID == "" || c.TokenURL == "" {
		return &http.Client{Timeout: timeout}
	}

	cc := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
	client := cc.Client(ctx)
	client.Timeout = timeout

	return client
}
