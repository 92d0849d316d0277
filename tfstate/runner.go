package tfstate

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/yairfalse/guardsync/telemetry"
)

// ErrAlreadyManaged signals that the state store already tracks the address.
// Callers treat it as success: the import was an idempotent no-op.
var ErrAlreadyManaged = errors.New("resource already managed by state")

// Store is the set of state-store operations the sweep consumes.
type Store interface {
	StateList(ctx context.Context) ([]string, error)
	Import(ctx context.Context, address, naturalKey string) error
	PlanRefreshOnly(ctx context.Context) error
}

// Runner executes the terraform CLI against a working directory. Import and
// apply semantics belong to terraform itself; this wrapper only shells out
// and classifies output.
type Runner struct {
	bin    string
	dir    string
	logger *telemetry.Logger
}

// NewRunner creates a runner for the given terraform working directory.
func NewRunner(dir string) *Runner {
	return &Runner{
		bin:    "terraform",
		dir:    dir,
		logger: telemetry.NewLogger("tfstate"),
	}
}

func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...) // #nosec G204 -- fixed binary, caller-controlled args
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// StateList returns every resource address currently tracked by the state.
func (r *Runner) StateList(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "state", "list")
	if err != nil {
		// An uninitialized or empty state lists nothing rather than failing the run.
		if strings.Contains(out, "No state file was found") {
			return nil, nil
		}
		return nil, fmt.Errorf("terraform state list failed: %w: %s", err, firstLines(out, 5))
	}
	return parseStateList(out), nil
}

// Import brings one real-world resource under state management. A
// "Resource already managed" response maps to ErrAlreadyManaged.
func (r *Runner) Import(ctx context.Context, address, naturalKey string) error {
	out, err := r.run(ctx, "import", "-input=false", address, naturalKey)
	if err != nil {
		if strings.Contains(out, "Resource already managed") {
			return ErrAlreadyManaged
		}
		return fmt.Errorf("terraform import %s failed: %w: %s", address, err, firstLines(out, 5))
	}
	return nil
}

// PlanRefreshOnly runs a side-effect-free plan, used to warm up provider
// initialization before the first import of a pass.
func (r *Runner) PlanRefreshOnly(ctx context.Context) error {
	out, err := r.run(ctx, "plan", "-refresh-only", "-input=false")
	if err != nil {
		return fmt.Errorf("terraform plan -refresh-only failed: %w: %s", err, firstLines(out, 5))
	}
	return nil
}

// parseStateList splits terraform state list output into addresses.
func parseStateList(out string) []string {
	var addresses []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			addresses = append(addresses, line)
		}
	}
	return addresses
}

// firstLines truncates command output for error messages.
func firstLines(out string, n int) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, " / ")
}
