package grok

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithBaseURL overrides the API origin, e.g. for a compatible gateway.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
// It has no effect when WithHTTPClient is used.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithModel sets the default model for new sessions.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithSystemPrompt sets the system message seeded into new sessions.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// WithOptions replaces the default call options.
func WithOptions(opts Options) Option {
	return func(c *Client) {
		c.options = opts.Clone()
	}
}

// WithOption sets a single default call option.
func WithOption(key string, value any) Option {
	return func(c *Client) {
		if c.options == nil {
			c.options = Options{}
		}
		c.options[key] = value
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(temperature float64) Option {
	return WithOption("temperature", temperature)
}

// WithMaxTokens sets the default completion length limit.
func WithMaxTokens(maxTokens int) Option {
	return WithOption("max_tokens", maxTokens)
}

// WithKeepAlive sets the TCP keep-alive period of the default HTTP client.
func WithKeepAlive(period time.Duration) Option {
	return func(c *Client) {
		c.pool.keepAlive = period
	}
}

// WithConnPool sizes the idle connection pool of the default HTTP client.
// maxIdle of zero disables connection reuse.
func WithConnPool(maxIdle int, idleTimeout time.Duration) Option {
	return func(c *Client) {
		c.pool.maxIdleConns = maxIdle
		c.pool.idleConnTimeout = idleTimeout
	}
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
		c.customHTTP = httpClient != nil
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
