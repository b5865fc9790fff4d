package execution

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandRunner executes system commands and returns their combined output.
type CommandRunner interface {
	Run(ctx context.Context, executable string, arguments []string) ([]byte, error)
}

// ExecutableRunner executes commands using the local operating system.
type ExecutableRunner struct{}

// NewExecutableRunner constructs an ExecutableRunner.
func NewExecutableRunner() ExecutableRunner {
	return ExecutableRunner{}
}

// Run executes the executable with the provided arguments. The combined
// stdout and stderr bytes are returned even when the command fails, so
// callers can inspect diagnostic output of non-zero exits.
func (executableRunner ExecutableRunner) Run(ctx context.Context, executable string, arguments []string) ([]byte, error) {
	command := exec.CommandContext(ctx, executable, arguments...)
	output, err := command.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("execute %s: %w", executable, err)
	}
	return output, nil
}
