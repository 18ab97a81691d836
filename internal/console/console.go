package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/chzyer/readline"

	"is31ledd/internal/logging"
)

// Console is a readline loop on the terminal.
type Console struct {
	ctl Controller
	rl  *readline.Instance
	log *slog.Logger
}

func New(ctl Controller, log *slog.Logger) (*Console, error) {
	if log == nil {
		log = logging.Discard()
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "is31> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{ctl: ctl, rl: rl, log: log.With("component", "console")}, nil
}

// Stdout coordinates output with the prompt. Point log output here while the
// console runs.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run reads commands until quit, EOF or ctx is done. quit and EOF call cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	go func() {
		<-ctx.Done()
		_ = c.rl.Close()
	}()

	fmt.Fprintln(c.rl.Stdout(), "type 'help' for commands")
	for {
		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if ctx.Err() == nil {
				fmt.Fprintln(c.rl.Stdout(), "Exiting...")
				cancel()
			}
			return
		}

		out, err := Exec(c.ctl, line)
		if errors.Is(err, ErrQuit) {
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}
		if err != nil {
			c.log.Debug("command failed", "line", line, "error", err)
			fmt.Fprintf(c.rl.Stdout(), "error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(c.rl.Stdout(), out)
		}
	}
}
