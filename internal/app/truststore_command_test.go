package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const certificateFixture = "-----BEGIN CERTIFICATE-----\nZmFrZQ==\n-----END CERTIFICATE-----\n"

// installFakeKeytool places a shell script named keytool on PATH that records
// its invocations and reports the alias as absent on lookup.
func installFakeKeytool(testingInstance *testing.T, listBehavior string) string {
	testingInstance.Helper()
	binDirectory := testingInstance.TempDir()
	invocationLogPath := filepath.Join(binDirectory, "invocations.log")

	script := strings.Join([]string{
		"#!/bin/sh",
		"echo \"$@\" >> " + invocationLogPath,
		"if [ \"$1\" = \"-list\" ]; then",
		"  " + listBehavior,
		"fi",
		"exit 0",
	}, "\n") + "\n"
	keytoolPath := filepath.Join(binDirectory, "keytool")
	if writeErr := os.WriteFile(keytoolPath, []byte(script), 0o755); writeErr != nil {
		testingInstance.Fatalf("write fake keytool: %v", writeErr)
	}

	testingInstance.Setenv("PATH", binDirectory+string(os.PathListSeparator)+os.Getenv("PATH"))
	return invocationLogPath
}

func readInvocations(testingInstance *testing.T, invocationLogPath string) []string {
	testingInstance.Helper()
	content, readErr := os.ReadFile(invocationLogPath)
	if readErr != nil {
		testingInstance.Fatalf("read keytool invocations: %v", readErr)
	}
	return strings.Split(strings.TrimSpace(string(content)), "\n")
}

func writeCertificateFile(testingInstance *testing.T) string {
	testingInstance.Helper()
	certificatePath := filepath.Join(testingInstance.TempDir(), "root-ca.pem")
	if writeErr := os.WriteFile(certificatePath, []byte(certificateFixture), 0o644); writeErr != nil {
		testingInstance.Fatalf("write certificate fixture: %v", writeErr)
	}
	return certificatePath
}

func TestExecuteTrustStoreInstallImportsAbsentAlias(testingInstance *testing.T) {
	invocationLogPath := installFakeKeytool(testingInstance,
		`echo "keytool error: java.lang.Exception: Alias <opensearch-root-ca> does not exist"; exit 1`)
	certificatePath := writeCertificateFile(testingInstance)

	exitCode := Execute(context.Background(), []string{
		"truststore", "install",
		"--" + flagNameCertificatePath, certificatePath,
		"--" + flagNameStorePassword, "changeit",
	})
	if exitCode != 0 {
		testingInstance.Fatalf("expected exit code 0, got %d", exitCode)
	}

	invocations := readInvocations(testingInstance, invocationLogPath)
	if len(invocations) != 2 {
		testingInstance.Fatalf("expected a lookup and an import, got %v", invocations)
	}
	if !strings.Contains(invocations[0], "-list -alias opensearch-root-ca") {
		testingInstance.Fatalf("unexpected lookup invocation %q", invocations[0])
	}
	if !strings.Contains(invocations[1], "-importcert") || !strings.Contains(invocations[1], certificatePath) {
		testingInstance.Fatalf("unexpected import invocation %q", invocations[1])
	}
}

func TestExecuteTrustStoreInstallSkipsPresentAlias(testingInstance *testing.T) {
	invocationLogPath := installFakeKeytool(testingInstance, `exit 0`)
	certificatePath := writeCertificateFile(testingInstance)

	exitCode := Execute(context.Background(), []string{
		"truststore", "install",
		"--" + flagNameCertificatePath, certificatePath,
	})
	if exitCode != 0 {
		testingInstance.Fatalf("expected exit code 0, got %d", exitCode)
	}

	invocations := readInvocations(testingInstance, invocationLogPath)
	if len(invocations) != 1 || !strings.Contains(invocations[0], "-list") {
		testingInstance.Fatalf("expected only a lookup invocation, got %v", invocations)
	}
}

func TestExecuteTrustStoreInstallReadsEnvironmentVariables(testingInstance *testing.T) {
	invocationLogPath := installFakeKeytool(testingInstance, `exit 0`)
	certificatePath := writeCertificateFile(testingInstance)
	testingInstance.Setenv(environmentVariableCertificatePath, certificatePath)
	testingInstance.Setenv(environmentVariableCertificateAlias, "custom-alias")

	if exitCode := Execute(context.Background(), []string{"truststore", "install"}); exitCode != 0 {
		testingInstance.Fatalf("expected exit code 0, got %d", exitCode)
	}

	invocations := readInvocations(testingInstance, invocationLogPath)
	if !strings.Contains(invocations[0], "-alias custom-alias") {
		testingInstance.Fatalf("expected the alias from the environment, got %q", invocations[0])
	}
}

func TestExecuteTrustStoreInstallExtractsChainRoot(testingInstance *testing.T) {
	installFakeKeytool(testingInstance, `exit 0`)
	fixtureDirectory := testingInstance.TempDir()

	chain := strings.Join([]string{
		"-----BEGIN CERTIFICATE-----",
		"bGVhZg==",
		"-----END CERTIFICATE-----",
		"-----BEGIN CERTIFICATE-----",
		"cm9vdA==",
		"-----END CERTIFICATE-----",
	}, "\n") + "\n"
	chainPath := filepath.Join(fixtureDirectory, "chain.pem")
	if writeErr := os.WriteFile(chainPath, []byte(chain), 0o644); writeErr != nil {
		testingInstance.Fatalf("write chain fixture: %v", writeErr)
	}
	certificatePath := filepath.Join(fixtureDirectory, "root-ca.pem")

	exitCode := Execute(context.Background(), []string{
		"truststore", "install",
		"--" + flagNameCertificateChainPath, chainPath,
		"--" + flagNameCertificatePath, certificatePath,
	})
	if exitCode != 0 {
		testingInstance.Fatalf("expected exit code 0, got %d", exitCode)
	}

	extracted, readErr := os.ReadFile(certificatePath)
	if readErr != nil {
		testingInstance.Fatalf("read extracted certificate: %v", readErr)
	}
	if !strings.Contains(string(extracted), "cm9vdA==") {
		testingInstance.Fatalf("expected the second chain certificate, got %q", string(extracted))
	}
}

func TestExecuteTrustStoreInstallRequiresCertificatePath(testingInstance *testing.T) {
	installFakeKeytool(testingInstance, `exit 0`)

	if exitCode := Execute(context.Background(), []string{"truststore", "install"}); exitCode != 1 {
		testingInstance.Fatalf("expected exit code 1, got %d", exitCode)
	}
}
