// Package broctl runs the cluster control tool and returns its raw output.
package broctl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/pkg/errors"
)

// Runner executes one command. combined merges stderr into the returned
// output; otherwise stderr is only used for error messages.
type Runner interface {
	Run(ctx context.Context, combined bool, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, combined bool, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if combined {
		return cmd.CombinedOutput()
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

type Client struct {
	prefix  []string
	timeout time.Duration
	runner  Runner
	logger  *logging.Logger
}

type Option func(*Client)

// WithRunner replaces process execution, mainly for tests.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.runner = r }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client invoking path, optionally through sudo. A zero timeout
// leaves commands bounded only by the caller's context.
func New(path string, sudo bool, timeout time.Duration, opts ...Option) *Client {
	prefix := []string{path}
	if sudo {
		prefix = []string{"sudo", path}
	}
	c := &Client{
		prefix:  prefix,
		timeout: timeout,
		runner:  execRunner{},
		logger:  logging.NewLogger("broctl"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) run(ctx context.Context, combined bool, sub string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	args := append(append([]string{}, c.prefix[1:]...), sub)
	start := time.Now()
	out, err := c.runner.Run(ctx, combined, c.prefix[0], args...)
	c.logger.Debug("broctl command finished",
		logging.Field{Key: "command", Value: sub},
		logging.Field{Key: "duration", Value: time.Since(start)},
		logging.Field{Key: "bytes", Value: len(out)})
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return out, err
}

func (c *Client) command(sub string) string {
	return strings.Join(append(append([]string{}, c.prefix...), sub), " ")
}

// Netstats returns the raw per-device counter report.
func (c *Client) Netstats(ctx context.Context) (string, error) {
	out, err := c.run(ctx, false, "netstats")
	if err != nil {
		return "", errors.ErrCollectionFailed(c.command("netstats"), err)
	}
	return string(out), nil
}

// Capstats returns the raw link report. broctl writes it to stderr, so
// both streams are captured.
func (c *Client) Capstats(ctx context.Context) (string, error) {
	out, err := c.run(ctx, true, "capstats")
	if err != nil {
		return "", errors.ErrCollectionFailed(c.command("capstats"), err)
	}
	return string(out), nil
}

func (c *Client) Install(ctx context.Context) error {
	if _, err := c.run(ctx, true, "install"); err != nil {
		return errors.ErrClusterApplyFailed(c.command("install"), err)
	}
	return nil
}

func (c *Client) Restart(ctx context.Context) error {
	if _, err := c.run(ctx, true, "restart"); err != nil {
		return errors.ErrClusterApplyFailed(c.command("restart"), err)
	}
	return nil
}

// Apply installs the current configuration and restarts the cluster. Restart
// is skipped when install fails.
func (c *Client) Apply(ctx context.Context) error {
	if err := c.Install(ctx); err != nil {
		return err
	}
	if err := c.Restart(ctx); err != nil {
		return err
	}
	c.logger.Info("cluster configuration applied")
	return nil
}
