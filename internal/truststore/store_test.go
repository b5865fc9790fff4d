package truststore

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type executedCommand struct {
	executable string
	arguments  []string
}

type scriptedResponse struct {
	output []byte
	err    error
}

type recordingCommandRunner struct {
	executed  []executedCommand
	responses []scriptedResponse
}

func newRecordingCommandRunner(responses []scriptedResponse) *recordingCommandRunner {
	return &recordingCommandRunner{executed: []executedCommand{}, responses: responses}
}

func (runner *recordingCommandRunner) Run(ctx context.Context, executable string, arguments []string) ([]byte, error) {
	runner.executed = append(runner.executed, executedCommand{executable: executable, arguments: append([]string{}, arguments...)})
	if len(runner.responses) == 0 {
		return nil, nil
	}
	nextResponse := runner.responses[0]
	runner.responses = runner.responses[1:]
	return nextResponse.output, nextResponse.err
}

func TestKeytoolStoreLookup(testingInstance *testing.T) {
	testCases := []struct {
		name            string
		response        scriptedResponse
		expectedPresent bool
		expectError     bool
	}{
		{
			name:            "present alias",
			response:        scriptedResponse{output: []byte("opensearch-root-ca, Aug 30, 2026, trustedCertEntry")},
			expectedPresent: true,
		},
		{
			name: "missing alias with diagnostic output",
			response: scriptedResponse{
				output: []byte("Warning: use -cacerts option\nkeytool error: java.lang.Exception: Alias <opensearch-root-ca> does not exist"),
				err:    errors.New("execute keytool: exit status 1"),
			},
			expectedPresent: false,
		},
		{
			name: "infrastructure failure is not a miss",
			response: scriptedResponse{
				output: []byte("keytool error: java.io.IOException: keystore password was incorrect"),
				err:    errors.New("execute keytool: exit status 1"),
			},
			expectError: true,
		},
		{
			name: "missing keystore file is not a miss",
			response: scriptedResponse{
				output: []byte("keytool error: java.lang.Exception: Keystore file does not exist: /srv/truststore.jks"),
				err:    errors.New("execute keytool: exit status 1"),
			},
			expectError: true,
		},
		{
			name: "miss message for another alias is not a miss",
			response: scriptedResponse{
				output: []byte("keytool error: java.lang.Exception: Alias <some-other-alias> does not exist"),
				err:    errors.New("execute keytool: exit status 1"),
			},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testingInstance.Run(testCase.name, func(testingInstance *testing.T) {
			commandRunner := newRecordingCommandRunner([]scriptedResponse{testCase.response})
			store := NewKeytoolStore(commandRunner, KeytoolConfiguration{StorePath: "/srv/truststore.jks"})

			present, err := store.Lookup(context.Background(), "opensearch-root-ca")
			if testCase.expectError {
				if err == nil {
					testingInstance.Fatalf("expected lookup error")
				}
				return
			}
			if err != nil {
				testingInstance.Fatalf("lookup alias: %v", err)
			}
			if present != testCase.expectedPresent {
				testingInstance.Fatalf("expected present=%v, got %v", testCase.expectedPresent, present)
			}
		})
	}
}

func TestKeytoolStoreLookupArguments(testingInstance *testing.T) {
	commandRunner := newRecordingCommandRunner(nil)
	store := NewKeytoolStore(commandRunner, KeytoolConfiguration{StorePath: "/srv/truststore.jks", StorePassword: "sekrit"})

	if _, err := store.Lookup(context.Background(), "opensearch-root-ca"); err != nil {
		testingInstance.Fatalf("lookup alias: %v", err)
	}

	if len(commandRunner.executed) != 1 {
		testingInstance.Fatalf("expected one keytool invocation, got %d", len(commandRunner.executed))
	}
	invocation := commandRunner.executed[0]
	if invocation.executable != "keytool" {
		testingInstance.Fatalf("expected keytool executable, got %s", invocation.executable)
	}
	expectedArguments := []string{"-list", "-alias", "opensearch-root-ca", "-keystore", "/srv/truststore.jks", "-storepass", "sekrit"}
	if !reflect.DeepEqual(invocation.arguments, expectedArguments) {
		testingInstance.Fatalf("expected arguments %v, got %v", expectedArguments, invocation.arguments)
	}
}

func TestKeytoolStoreDefaultsToCacerts(testingInstance *testing.T) {
	commandRunner := newRecordingCommandRunner(nil)
	store := NewKeytoolStore(commandRunner, KeytoolConfiguration{})

	if err := store.Import(context.Background(), "opensearch-root-ca", "/tmp/root_ca.pem"); err != nil {
		testingInstance.Fatalf("import certificate: %v", err)
	}

	invocation := commandRunner.executed[0]
	joined := strings.Join(invocation.arguments, " ")
	if !strings.Contains(joined, "-cacerts") {
		testingInstance.Fatalf("expected -cacerts shorthand, got %v", invocation.arguments)
	}
	if !strings.Contains(joined, "-storepass changeit") {
		testingInstance.Fatalf("expected default store password, got %v", invocation.arguments)
	}
	if !strings.Contains(joined, "-importcert -noprompt -alias opensearch-root-ca -file /tmp/root_ca.pem") {
		testingInstance.Fatalf("expected import arguments, got %v", invocation.arguments)
	}
}

func TestKeytoolStoreDeletePropagatesError(testingInstance *testing.T) {
	commandRunner := newRecordingCommandRunner([]scriptedResponse{
		{output: []byte("keytool error"), err: errors.New("execute keytool: exit status 1")},
	})
	store := NewKeytoolStore(commandRunner, KeytoolConfiguration{})

	if err := store.Delete(context.Background(), "opensearch-root-ca"); err == nil {
		testingInstance.Fatalf("expected delete error")
	}
}
