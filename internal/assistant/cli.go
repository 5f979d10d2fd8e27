package assistant

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
	"mediaqa/internal/logging"
	"mediaqa/internal/session"
)

// Prompt is printed before every question
const Prompt = "😎 user > "

var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

const (
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// Asker answers one question. *Assistant implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (*agent.RunResult, error)
}

// Announce prints which run the session uses.
func Announce(w io.Writer, run *session.Run, resumed bool) {
	if resumed {
		fmt.Fprintf(w, "Continuing run: %s\n\n", run.ID)
		return
	}
	fmt.Fprintf(w, "Started run: %s\n\n", run.ID)
}

// CLI is the read-answer loop of the assistant.
type CLI struct {
	asker Asker
	color bool
}

// NewCLI creates a CLI. Tool calls are dimmed when out is a terminal.
func NewCLI(asker Asker, out io.Writer) *CLI {
	return &CLI{asker: asker, color: logging.IsTerminal(out)}
}

// Loop reads questions from in until EOF, an exit word or ctx is done.
// Errors from a single question are printed and the loop continues.
func (c *CLI) Loop(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if exitWords[strings.ToLower(question)] {
			return nil
		}

		result, err := c.asker.Ask(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %s\n\n", core.UserMessage(err))
			continue
		}
		c.render(out, result)
	}
}

func (c *CLI) render(out io.Writer, result *agent.RunResult) {
	if calls := agent.FormatToolCalls(result.ToolCalls); calls != "" {
		if c.color {
			fmt.Fprint(out, ansiDim+calls+ansiReset)
		} else {
			fmt.Fprint(out, calls)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, strings.TrimSpace(result.Content))
	fmt.Fprintln(out)
}
