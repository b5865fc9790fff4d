package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/canonical/datahub-init/pkg/logging"
)

const (
	logArtifactExtension         = "log"
	environmentArtifactExtension = "env"
	artifactNameSeparator        = "__"
	artifactFilePermissions      = 0o644
	artifactDirectoryPermissions = 0o755

	interpreterNameBash = "bash"
	interpreterNameSh   = "sh"

	// ExitCodeCommandNotFound is reported when the target command is not on
	// the search path. It matches the shell convention so orchestrators can
	// tell a missing command apart from a failing one.
	ExitCodeCommandNotFound = 127

	logFieldInterpreter = "interpreter"
	logFieldCommand     = "command"
	logFieldLogPath     = "log_path"
	logFieldEnvPath     = "env_path"
)

// ErrCommandNotFound reports a target command missing from the search path.
var ErrCommandNotFound = errors.New("command not found")

// DuplexConfiguration controls artifact placement and stream wiring for a
// DuplexingRunner.
type DuplexConfiguration struct {
	RunnerName        string
	ArtifactDirectory string
	StandardOutput    io.Writer
	StandardError     io.Writer
	// Environment is the variable set snapshotted to the companion file and
	// handed to the child. Nil selects the process environment.
	Environment []string
}

// RunArtifacts names the files a run leaves behind for diagnostics.
type RunArtifacts struct {
	LogPath         string
	EnvironmentPath string
}

// RunResult reports the outcome of one duplexed command execution.
type RunResult struct {
	ExitCode    int
	Interpreter string
	Artifacts   RunArtifacts
}

// DuplexingRunner executes a command while duplicating its combined output
// to a per-command log file and relaying it to the configured streams.
type DuplexingRunner struct {
	configuration  DuplexConfiguration
	loggingService *logging.Service
	lookPath       func(name string) (string, error)
}

// NewDuplexingRunner constructs a DuplexingRunner.
func NewDuplexingRunner(loggingService *logging.Service, configuration DuplexConfiguration) (DuplexingRunner, error) {
	if configuration.RunnerName == "" {
		return DuplexingRunner{}, errors.New("runner name is required")
	}
	if configuration.ArtifactDirectory == "" {
		return DuplexingRunner{}, errors.New("artifact directory is required")
	}
	if configuration.StandardOutput == nil {
		configuration.StandardOutput = os.Stdout
	}
	if configuration.StandardError == nil {
		configuration.StandardError = os.Stderr
	}
	return DuplexingRunner{
		configuration:  configuration,
		loggingService: loggingService,
		lookPath:       exec.LookPath,
	}, nil
}

// Run executes commandName with the provided arguments. The child's exit
// status is mirrored in the result; a nil error with a non-zero ExitCode
// means the child ran and failed on its own terms. Errors are reserved for
// runner-level failures: a command missing from the search path (wrapping
// ErrCommandNotFound, before any child or artifact exists) and artifact or
// spawn failures.
func (runner DuplexingRunner) Run(ctx context.Context, commandName string, arguments []string) (RunResult, error) {
	interpreterPath, interpreterName, interpreterErr := runner.selectInterpreter()
	if interpreterErr != nil {
		return RunResult{ExitCode: ExitCodeCommandNotFound}, interpreterErr
	}
	runner.loggingService.Info("selected command interpreter", logging.String(logFieldInterpreter, interpreterName))

	if _, lookErr := runner.lookPath(commandName); lookErr != nil {
		return RunResult{ExitCode: ExitCodeCommandNotFound, Interpreter: interpreterName},
			fmt.Errorf("%w: %s", ErrCommandNotFound, commandName)
	}

	artifacts := runner.artifactPaths(commandName)
	if err := os.MkdirAll(runner.configuration.ArtifactDirectory, artifactDirectoryPermissions); err != nil {
		return RunResult{ExitCode: 1, Interpreter: interpreterName}, fmt.Errorf("ensure artifact directory: %w", err)
	}

	environment := runner.configuration.Environment
	if environment == nil {
		environment = os.Environ()
	}
	if err := writeEnvironmentSnapshot(artifacts.EnvironmentPath, environment); err != nil {
		return RunResult{ExitCode: 1, Interpreter: interpreterName, Artifacts: artifacts}, err
	}

	logFile, openErr := os.OpenFile(artifacts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, artifactFilePermissions)
	if openErr != nil {
		return RunResult{ExitCode: 1, Interpreter: interpreterName, Artifacts: artifacts},
			fmt.Errorf("open log file: %w", openErr)
	}
	defer func() {
		_ = logFile.Close()
	}()

	runner.loggingService.Info("running command",
		logging.String(logFieldCommand, commandName),
		logging.String(logFieldLogPath, artifacts.LogPath),
		logging.String(logFieldEnvPath, artifacts.EnvironmentPath))

	// $0/$@ keeps argument boundaries intact without shell quoting.
	interpreterArguments := append([]string{"-c", `exec "$0" "$@"`, commandName}, arguments...)
	command := exec.CommandContext(ctx, interpreterPath, interpreterArguments...)
	command.Stdout = io.MultiWriter(runner.configuration.StandardOutput, logFile)
	command.Stderr = io.MultiWriter(runner.configuration.StandardError, logFile)
	command.Env = environment

	runErr := command.Run()
	if runErr == nil {
		return RunResult{ExitCode: 0, Interpreter: interpreterName, Artifacts: artifacts}, nil
	}
	var exitError *exec.ExitError
	if errors.As(runErr, &exitError) {
		return RunResult{ExitCode: exitError.ExitCode(), Interpreter: interpreterName, Artifacts: artifacts}, nil
	}
	return RunResult{ExitCode: 1, Interpreter: interpreterName, Artifacts: artifacts},
		fmt.Errorf("run %s: %w", commandName, runErr)
}

func (runner DuplexingRunner) selectInterpreter() (string, string, error) {
	for _, candidate := range []string{interpreterNameBash, interpreterNameSh} {
		resolved, err := runner.lookPath(candidate)
		if err == nil {
			return resolved, candidate, nil
		}
	}
	return "", "", errors.New("no command interpreter available")
}

func (runner DuplexingRunner) artifactPaths(commandName string) RunArtifacts {
	baseName := runner.configuration.RunnerName + artifactNameSeparator + filepath.Base(commandName)
	return RunArtifacts{
		LogPath:         filepath.Join(runner.configuration.ArtifactDirectory, baseName+"."+logArtifactExtension),
		EnvironmentPath: filepath.Join(runner.configuration.ArtifactDirectory, baseName+"."+environmentArtifactExtension),
	}
}

func writeEnvironmentSnapshot(path string, environment []string) error {
	variables := make(map[string]string, len(environment))
	for _, entry := range environment {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			continue
		}
		variables[key] = value
	}
	content, marshalErr := godotenv.Marshal(variables)
	if marshalErr != nil {
		return fmt.Errorf("serialize environment snapshot: %w", marshalErr)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), artifactFilePermissions); err != nil {
		return fmt.Errorf("write environment snapshot: %w", err)
	}
	return nil
}
