// Package process implements ports.Generator by running an external command.
//
// The command receives the verb and scope through the environment, never as
// flags, and prints the DSL on stdout:
//
//	VERBGATE_VERB=report.send.v1
//	VERBGATE_ARG_TENANT=acme
//
// Its output is untrusted: the pipeline re-extracts and checks it like any other.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/aretw0/verbgate/pkg/domain"
)

const waitDelay = 500 * time.Millisecond

// ErrEmptyOutput is returned when the command succeeds but prints nothing.
var ErrEmptyOutput = errors.New("generator command printed no DSL")

// Generator executes one allow-listed command per call.
type Generator struct {
	command string
	args    []string
	baseDir string
	env     map[string]string
	timeout time.Duration
}

// Option configures the generator.
type Option func(*Generator)

// WithArgs sets fixed arguments passed on every call.
func WithArgs(args ...string) Option {
	return func(g *Generator) {
		g.args = args
	}
}

// WithBaseDir sets the working directory for the command.
func WithBaseDir(dir string) Option {
	return func(g *Generator) {
		g.baseDir = dir
	}
}

// WithEnv adds fixed environment variables.
func WithEnv(env map[string]string) Option {
	return func(g *Generator) {
		g.env = env
	}
}

// WithTimeout bounds each run. Zero relies on the caller's context only.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.timeout = d
	}
}

// NewGenerator creates a generator for command.
func NewGenerator(command string, opts ...Option) *Generator {
	g := &Generator{command: command}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, verb domain.FQN, scope map[string]any) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, g.command, g.args...)
	cmd.Dir = g.baseDir
	// Children of the command may keep stdout open after it is killed.
	cmd.WaitDelay = waitDelay
	cmd.Env = append(cmd.Environ(), "VERBGATE_VERB="+string(verb))
	for k, v := range g.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range scope {
		cmd.Env = append(cmd.Env, fmt.Sprintf("VERBGATE_ARG_%s=%s", envName(k), envValue(v)))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("generator command %s: %w", g.command, ctx.Err())
		}
		return "", fmt.Errorf("generator command %s failed: %w. Stderr: %s", g.command, err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// envName upper-cases k and replaces anything that is not a letter, digit or
// underscore, so scope keys cannot smuggle '=' into the environment.
func envName(k string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '_', r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return unicode.ToUpper(r)
		default:
			return '_'
		}
	}, k)
}

func envValue(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string, int, int64, float64, bool:
		return fmt.Sprint(v)
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprint(v)
	}
}
