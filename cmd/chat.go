package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/oqzl/grokchat/grok"
)

const chatHelp = `Commands:
  /reset    clear the conversation (the system prompt is kept)
  /tokens   show the estimated transcript size
  /history  print the transcript
  /exit     quit`

// lineReader yields one line of user input per call. io.EOF ends the chat.
type lineReader interface {
	ReadLine() (string, error)
}

type promptReader struct {
	label string
}

func (p promptReader) ReadLine() (string, error) {
	prompt := promptui.Prompt{Label: p.label}
	line, err := prompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", io.EOF
	}
	return line, err
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var (
		once   bool
		model  string
		system string
	)

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Start a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}

			var overrides []grok.Option
			if model != "" {
				overrides = append(overrides, grok.WithModel(model))
			}
			if system != "" {
				overrides = append(overrides, grok.WithSystemPrompt(system))
			}

			loop := &chatLoop{
				client: client.With(overrides...),
				in:     opts.input,
				out:    cmd.OutOrStdout(),
			}
			if loop.in == nil {
				loop.in = promptReader{label: "you"}
			}

			if len(args) == 1 {
				if err := loop.send(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			if once {
				if loop.session == nil {
					return errors.New("--once requires a prompt argument")
				}
				return nil
			}

			fmt.Fprintln(loop.out, chatHelp)
			return loop.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "send the prompt argument, print the reply and exit")
	cmd.Flags().StringVar(&model, "model", "", "override the configured model")
	cmd.Flags().StringVar(&system, "system", "", "override the configured system prompt")
	return cmd
}

// chatLoop drives an interactive conversation. The session is created by
// the first prompt.
type chatLoop struct {
	client  *grok.Client
	session *grok.Session
	in      lineReader
	out     io.Writer
}

func (l *chatLoop) run(ctx context.Context) error {
	for {
		line, err := l.in.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read prompt: %w", err)
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if l.session != nil {
				l.session.Reset()
			}
			fmt.Fprintln(l.out, "conversation cleared")
			continue
		case "/tokens":
			if l.session != nil {
				fmt.Fprintf(l.out, "~%d tokens\n", l.session.EstimateTokens())
			}
			continue
		case "/history":
			if l.session != nil {
				printHistory(l.out, l.session.History())
			}
			continue
		}

		if err := l.send(ctx, line); err != nil {
			fmt.Fprintf(l.out, "error: %v\n", err)
		}
	}
}

func (l *chatLoop) send(ctx context.Context, prompt string) error {
	var err error
	if l.session == nil {
		// a failed first turn still yields a session holding the prompt
		l.session, err = l.client.CreateSession(ctx, prompt)
	} else {
		_, err = l.session.Send(ctx, prompt)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(l.out, l.session.Text())
	return nil
}

func printHistory(w io.Writer, messages []grok.Message) {
	for _, msg := range messages {
		fmt.Fprintf(w, "[%s] %s\n", msg.Role, msg.Content)
	}
}
