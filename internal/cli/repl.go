package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/verbgate/internal/presentation/tui"
	"github.com/aretw0/verbgate/internal/sanitize"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/ports"
)

// REPL reads utterances line by line and resolves them for one session.
//
// Lines starting with ':' are commands: ":pick N" answers the pending choice,
// ":pending" shows it and ":quit" exits. A bare number also answers a pending choice.
type REPL struct {
	Gate      ports.Gate
	SessionID string
	In        io.Reader
	Out       io.Writer
	Renderer  *tui.Renderer
	// JSON writes one OutcomeView per line instead of rendered markdown.
	JSON bool

	choiceID string
}

// Run loops until EOF, ":quit" or ctx is done. Infrastructure errors end the loop.
func (r *REPL) Run(ctx context.Context) error {
	if r.Renderer == nil {
		r.Renderer = tui.NewRenderer(false)
	}
	scanner := bufio.NewScanner(r.In)
	for {
		if !r.JSON {
			fmt.Fprint(r.Out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		done, err := r.handle(ctx, line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (r *REPL) handle(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch {
	case cmd == ":quit" || cmd == ":q":
		return true, nil
	case cmd == ":pending":
		return false, r.showPending(ctx)
	case cmd == ":pick":
		return false, r.pick(ctx, strings.TrimSpace(arg))
	case r.choiceID != "" && isIndex(line):
		return false, r.pick(ctx, line)
	}

	utterance, err := sanitize.Input(line)
	if err != nil {
		printSystemMessage(r.Out, "Input rejected: %v", err)
		return false, nil
	}
	out, err := r.Gate.Resolve(ctx, r.SessionID, utterance)
	if err != nil {
		return false, err
	}
	return false, r.show(out)
}

func (r *REPL) pick(ctx context.Context, arg string) error {
	index, err := strconv.Atoi(arg)
	if err != nil {
		printSystemMessage(r.Out, "Usage: :pick <index>")
		return nil
	}
	out, err := r.Gate.Reply(ctx, r.SessionID, index, r.choiceID)
	if err != nil {
		return err
	}
	return r.show(out)
}

func (r *REPL) showPending(ctx context.Context) error {
	p, err := r.Gate.Pending(ctx, r.SessionID)
	if errors.Is(err, domain.ErrNoPendingChoice) {
		printSystemMessage(r.Out, "No pending choice.")
		return nil
	}
	if err != nil {
		return err
	}
	r.choiceID = p.ID
	return r.show(domain.ClarifyVerb{ChoiceID: p.ID, Options: p.Options})
}

func (r *REPL) show(out domain.Outcome) error {
	r.choiceID = ""
	if c, ok := out.(domain.ClarifyVerb); ok {
		r.choiceID = c.ChoiceID
	}

	view := domain.Describe(out)
	if r.JSON {
		return json.NewEncoder(r.Out).Encode(view)
	}
	text, err := r.Renderer.Render(view)
	if err != nil {
		return fmt.Errorf("failed to render outcome: %w", err)
	}
	fmt.Fprintln(r.Out, text)
	return nil
}

func isIndex(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
