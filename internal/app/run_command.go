package app

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/canonical/datahub-init/internal/execution"
)

func newRunCommand(resources *applicationResources) *cobra.Command {
	runCommand := &cobra.Command{
		Use:           "run -- command [arguments...]",
		Short:         "Run a command while capturing its output and environment",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDuplexed(cmd, args)
		},
	}

	runCommand.Flags().String(flagNameArtifactDirectory, resources.configurationManager.GetString(configKeyRunArtifactDirectory), "Directory the log and environment artifacts are written to")
	runCommand.Flags().String(flagNameRunnerName, resources.configurationManager.GetString(configKeyRunRunnerName), "Runner name used as the artifact file prefix")
	_ = resources.configurationManager.BindPFlag(configKeyRunArtifactDirectory, runCommand.Flags().Lookup(flagNameArtifactDirectory))
	_ = resources.configurationManager.BindPFlag(configKeyRunRunnerName, runCommand.Flags().Lookup(flagNameRunnerName))

	return runCommand
}

func runDuplexed(cmd *cobra.Command, args []string) error {
	resources, err := getApplicationResources(cmd)
	if err != nil {
		return err
	}
	configurationManager := resources.configurationManager

	duplexingRunner, runnerErr := execution.NewDuplexingRunner(resources.loggingService, execution.DuplexConfiguration{
		RunnerName:        configurationManager.GetString(configKeyRunRunnerName),
		ArtifactDirectory: configurationManager.GetString(configKeyRunArtifactDirectory),
		StandardOutput:    cmd.OutOrStdout(),
		StandardError:     cmd.ErrOrStderr(),
	})
	if runnerErr != nil {
		return runnerErr
	}

	runContext, cancel := createSignalContext(cmd.Context(), resources.loggingService)
	defer cancel()

	result, runErr := duplexingRunner.Run(runContext, args[0], args[1:])
	if runErr != nil {
		if errors.Is(runErr, execution.ErrCommandNotFound) {
			resources.loggingService.Error("command not found", runErr)
			return &exitCodeError{code: execution.ExitCodeCommandNotFound}
		}
		return runErr
	}
	if result.ExitCode != 0 {
		return &exitCodeError{code: result.ExitCode}
	}
	return nil
}
