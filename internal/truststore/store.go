package truststore

import (
	"context"
	"fmt"
	"strings"

	"github.com/canonical/datahub-init/internal/execution"
)

const (
	defaultKeytoolExecutable = "keytool"
	defaultStorePassword     = "changeit"

	// keytool exits non-zero both for a genuine miss and for infrastructure
	// failures (unreadable keystore, bad password). Only the alias-specific
	// "Alias <name> does not exist" line identifies a miss. A bare
	// "does not exist" check is not enough: a missing keystore file fails
	// with "Keystore file does not exist: <path>".
	aliasMissingSignatureFormat = "alias <%s> does not exist"
)

// TrustStore is the capability surface for a shared certificate trust store
// keyed by alias.
type TrustStore interface {
	Lookup(ctx context.Context, alias string) (bool, error)
	Delete(ctx context.Context, alias string) error
	Import(ctx context.Context, alias string, certificatePath string) error
}

// KeytoolConfiguration controls how the Java keystore is addressed.
type KeytoolConfiguration struct {
	Executable string
	// StorePath selects the keystore file. Empty selects the JRE cacerts
	// store via the -cacerts shorthand.
	StorePath     string
	StorePassword string
}

// KeytoolStore implements TrustStore on top of the keytool executable.
type KeytoolStore struct {
	commandRunner execution.CommandRunner
	configuration KeytoolConfiguration
}

// NewKeytoolStore constructs a KeytoolStore.
func NewKeytoolStore(commandRunner execution.CommandRunner, configuration KeytoolConfiguration) KeytoolStore {
	if configuration.Executable == "" {
		configuration.Executable = defaultKeytoolExecutable
	}
	if configuration.StorePassword == "" {
		configuration.StorePassword = defaultStorePassword
	}
	return KeytoolStore{
		commandRunner: commandRunner,
		configuration: configuration,
	}
}

// Lookup reports whether an entry exists under alias. A failing keytool
// invocation without the miss signature propagates as an error, so
// infrastructure faults are never mistaken for an absent alias.
func (store KeytoolStore) Lookup(ctx context.Context, alias string) (bool, error) {
	arguments := append([]string{"-list", "-alias", alias}, store.storeArguments()...)
	output, err := store.commandRunner.Run(ctx, store.configuration.Executable, arguments)
	if err == nil {
		return true, nil
	}
	if aliasMissingFromOutput(string(output), alias) {
		return false, nil
	}
	return false, fmt.Errorf("look up alias %s: %w", alias, err)
}

func aliasMissingFromOutput(output string, alias string) bool {
	signature := fmt.Sprintf(aliasMissingSignatureFormat, strings.ToLower(alias))
	return strings.Contains(strings.ToLower(output), signature)
}

// Delete removes the entry under alias.
func (store KeytoolStore) Delete(ctx context.Context, alias string) error {
	arguments := append([]string{"-delete", "-alias", alias}, store.storeArguments()...)
	if _, err := store.commandRunner.Run(ctx, store.configuration.Executable, arguments); err != nil {
		return fmt.Errorf("delete alias %s: %w", alias, err)
	}
	return nil
}

// Import adds the certificate at certificatePath under alias.
func (store KeytoolStore) Import(ctx context.Context, alias string, certificatePath string) error {
	arguments := append([]string{"-importcert", "-noprompt", "-alias", alias, "-file", certificatePath}, store.storeArguments()...)
	if _, err := store.commandRunner.Run(ctx, store.configuration.Executable, arguments); err != nil {
		return fmt.Errorf("import alias %s: %w", alias, err)
	}
	return nil
}

func (store KeytoolStore) storeArguments() []string {
	if store.configuration.StorePath == "" {
		return []string{"-cacerts", "-storepass", store.configuration.StorePassword}
	}
	return []string{"-keystore", store.configuration.StorePath, "-storepass", store.configuration.StorePassword}
}
