package cmd

import (
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/oqzl/grokchat/internal/fakeapi"
)

func newServeCmd() *cobra.Command {
	var (
		port   int
		apiKey string
		models []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local fake of the Grok API for offline development",
		Long: `serve starts an OpenAI-compatible imitation of the Grok API. Chat
completions echo the last user message back. Point grokchat at it with
GROK_BASE_URL=http://127.0.0.1:<port>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := newFakeServer(port, apiKey, models)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	cmd.Flags().StringVar(&apiKey, "api-key", "test-key", "bearer token clients must present")
	cmd.Flags().StringSliceVar(&models, "model", nil, "additional model id to advertise (repeatable)")
	return cmd
}

// newFakeServer builds the fake API and registers extra model ids next to
// the default catalog.
func newFakeServer(port int, apiKey string, extra []string) (*fakeapi.Server, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("port %d must be a valid TCP port", port)
	}
	if apiKey == "" {
		return nil, errors.New("serve requires --api-key")
	}

	srv, err := fakeapi.New(fakeapi.Config{APIKey: apiKey, Port: port})
	if err != nil {
		return nil, err
	}

	created := time.Now().Unix()
	for _, id := range extra {
		if err := srv.Catalog().Register(openai.Model{ID: id, OwnedBy: "local", CreatedAt: created}); err != nil {
			return nil, fmt.Errorf("register model %q: %w", id, err)
		}
	}
	return srv, nil
}
