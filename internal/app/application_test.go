package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
)

func TestExecuteRunMirrorsChildExitCode(testingInstance *testing.T) {
	testCases := []struct {
		name             string
		commandArguments []string
		expectedExitCode int
	}{
		{
			name:             "successful command",
			commandArguments: []string{"sh", "-c", "exit 0"},
			expectedExitCode: 0,
		},
		{
			name:             "failing command",
			commandArguments: []string{"sh", "-c", "exit 5"},
			expectedExitCode: 5,
		},
	}

	for _, testCase := range testCases {
		testingInstance.Run(testCase.name, func(testingInstance *testing.T) {
			artifactDirectory := testingInstance.TempDir()
			arguments := append([]string{"run", "--" + flagNameArtifactDirectory, artifactDirectory, "--"}, testCase.commandArguments...)

			exitCode := Execute(context.Background(), arguments)
			if exitCode != testCase.expectedExitCode {
				testingInstance.Fatalf("expected exit code %d, got %d", testCase.expectedExitCode, exitCode)
			}
		})
	}
}

func TestExecuteRunReportsMissingCommand(testingInstance *testing.T) {
	artifactDirectory := testingInstance.TempDir()
	arguments := []string{"run", "--" + flagNameArtifactDirectory, artifactDirectory, "--", "definitely-not-a-command"}

	exitCode := Execute(context.Background(), arguments)
	if exitCode != 127 {
		testingInstance.Fatalf("expected exit code 127, got %d", exitCode)
	}

	entries, readErr := os.ReadDir(artifactDirectory)
	if readErr != nil {
		testingInstance.Fatalf("read artifact directory: %v", readErr)
	}
	if len(entries) != 0 {
		testingInstance.Fatalf("expected no artifacts for a missing command, found %d entries", len(entries))
	}
}

func TestExecuteRunWritesArtifacts(testingInstance *testing.T) {
	artifactDirectory := testingInstance.TempDir()
	arguments := []string{"run", "--" + flagNameArtifactDirectory, artifactDirectory, "--", "true"}

	if exitCode := Execute(context.Background(), arguments); exitCode != 0 {
		testingInstance.Fatalf("expected exit code 0, got %d", exitCode)
	}

	logPath := filepath.Join(artifactDirectory, defaultRunnerName+"__true.log")
	environmentPath := filepath.Join(artifactDirectory, defaultRunnerName+"__true.env")
	if _, statErr := os.Stat(logPath); statErr != nil {
		testingInstance.Fatalf("expected log artifact: %v", statErr)
	}
	if _, statErr := os.Stat(environmentPath); statErr != nil {
		testingInstance.Fatalf("expected environment artifact: %v", statErr)
	}
}

func TestExecuteSecretGenerate(testingInstance *testing.T) {
	if exitCode := Execute(context.Background(), []string{"secret", "generate", "--" + flagNameSecretLength, "16"}); exitCode != 0 {
		testingInstance.Fatalf("expected exit code 0, got %d", exitCode)
	}
	if exitCode := Execute(context.Background(), []string{"secret", "generate", "--" + flagNameSecretLength, "2"}); exitCode != 1 {
		testingInstance.Fatalf("expected exit code 1 for a too short secret, got %d", exitCode)
	}
}

func TestExecuteEnvRenderWritesEnvironmentFile(testingInstance *testing.T) {
	fixtureDirectory := testingInstance.TempDir()
	connectionsPath := filepath.Join(fixtureDirectory, "connections.yaml")
	connectionsDocument := strings.Join([]string{
		"postgresql:",
		"  host: db.example.com",
		"  port: \"5432\"",
		"  dbname: datahub",
		"  username: datahub_user",
		"  password: db-secret",
	}, "\n")
	if writeErr := os.WriteFile(connectionsPath, []byte(connectionsDocument), 0o600); writeErr != nil {
		testingInstance.Fatalf("write connections fixture: %v", writeErr)
	}
	outputPath := filepath.Join(fixtureDirectory, "service.env")

	exitCode := Execute(context.Background(), []string{
		"env", "render",
		"--" + flagNameServiceName, "datahub-postgresql-setup",
		"--" + flagNameConnectionsPath, connectionsPath,
		"--" + flagNameOutputPath, outputPath,
	})
	if exitCode != 0 {
		testingInstance.Fatalf("expected exit code 0, got %d", exitCode)
	}

	environment, readErr := godotenv.Read(outputPath)
	if readErr != nil {
		testingInstance.Fatalf("read rendered environment: %v", readErr)
	}
	if environment["POSTGRES_HOST"] != "db.example.com" {
		testingInstance.Fatalf("unexpected postgres host %q", environment["POSTGRES_HOST"])
	}
	if environment["DATAHUB_DB_NAME"] != "datahub" {
		testingInstance.Fatalf("unexpected database name %q", environment["DATAHUB_DB_NAME"])
	}
}

func TestExecuteEnvRenderRequiresConnections(testingInstance *testing.T) {
	exitCode := Execute(context.Background(), []string{"env", "render", "--" + flagNameServiceName, "datahub-gms"})
	if exitCode != 1 {
		testingInstance.Fatalf("expected exit code 1, got %d", exitCode)
	}
}

func TestExecuteRejectsUnknownCommand(testingInstance *testing.T) {
	if exitCode := Execute(context.Background(), []string{"definitely-not-a-subcommand"}); exitCode != 1 {
		testingInstance.Fatalf("expected exit code 1, got %d", exitCode)
	}
}
