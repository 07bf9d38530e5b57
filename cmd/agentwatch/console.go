package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BaSui01/agentwatch/agent/conversation"
	"go.uber.org/zap"
)

const (
	prompt       = "User > "
	exitCommand  = "exit"
	maxLineBytes = 1 << 20
)

// Console is the line-based REPL. Each non-empty line starts a new session
// on the orchestrator.
type Console struct {
	orch         *conversation.Orchestrator
	in           io.Reader
	out          io.Writer
	carryHistory bool
	history      []conversation.Message
	logger       *zap.Logger
}

// NewConsole creates a console. With carryHistory each session starts from
// the previous session's transcript.
func NewConsole(orch *conversation.Orchestrator, in io.Reader, out io.Writer, carryHistory bool, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		orch:         orch,
		in:           in,
		out:          out,
		carryHistory: carryHistory,
		logger:       logger.With(zap.String("component", "console")),
	}
}

// Run reads lines until "exit", EOF or ctx is done. Session failures are
// printed and the loop continues; only read errors are returned.
func (c *Console) Run(ctx context.Context) error {
	lines, readErr := c.readLines(ctx)

	for {
		fmt.Fprint(c.out, prompt)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(c.out)
			return <-readErr
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, exitCommand) {
			return nil
		}

		c.converse(ctx, input)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// converse runs one session and prints its messages as they arrive.
func (c *Console) converse(ctx context.Context, input string) {
	var opts []conversation.SessionOption
	if c.carryHistory {
		opts = append(opts, conversation.WithHistory(c.history))
	}
	session := c.orch.NewSession(opts...)

	for msg, err := range session.Submit(ctx, input) {
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				fmt.Fprintf(c.out, "! %v\n", err)
			}
			break
		}
		fmt.Fprintln(c.out, FormatMessage(msg))
	}

	c.logger.Debug("session finished",
		zap.String("session_id", session.ID()),
		zap.String("reason", string(session.Reason())),
		zap.Int("turns", session.Turns()))

	if c.carryHistory {
		c.history = session.Transcript()
	}
}

// readLines scans c.in on its own goroutine so Run can honour ctx while a
// read is pending. The error channel yields the scan error after lines is
// closed.
func (c *Console) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()
	return lines, errc
}

// FormatMessage renders msg as "# <role> - <author>: '<content>'".
func FormatMessage(msg conversation.Message) string {
	author := msg.AuthorName
	if author == "" {
		author = "*"
	}
	return fmt.Sprintf("# %s - %s: '%s'", msg.Role, author, msg.Content)
}
