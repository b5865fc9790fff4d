package truststore

import (
	"context"
	"errors"
	"fmt"

	"github.com/canonical/datahub-init/pkg/logging"
)

const logFieldAlias = "alias"

// Installer reconciles a named root certificate authority into a trust
// store. The policy is skip-if-present: an alias that already exists is
// left untouched regardless of content. The certificate source rotates
// rarely enough in this deployment that staleness is accepted over the
// delete/import race a forced replace would open against concurrent
// store writers.
type Installer struct {
	store          TrustStore
	fileSystem     FileSystem
	loggingService *logging.Service
}

// NewInstaller constructs an Installer.
func NewInstaller(store TrustStore, fileSystem FileSystem, loggingService *logging.Service) Installer {
	return Installer{
		store:          store,
		fileSystem:     fileSystem,
		loggingService: loggingService,
	}
}

// Install ensures the trust store holds an entry under alias. The
// certificate at certificatePath is imported only when the alias is
// absent. Failures are fatal to the invocation; retry policy belongs to
// the caller.
func (installer Installer) Install(ctx context.Context, alias string, certificatePath string) error {
	if alias == "" {
		return errors.New("certificate alias is required")
	}
	if certificatePath == "" {
		return errors.New("certificate path is required")
	}

	exists, existsErr := installer.fileSystem.FileExists(certificatePath)
	if existsErr != nil {
		return fmt.Errorf("check certificate path: %w", existsErr)
	}
	if !exists {
		return fmt.Errorf("certificate path does not exist: %s", certificatePath)
	}

	installer.loggingService.Debug("querying trust store", logging.String(logFieldAlias, alias))
	present, lookupErr := installer.store.Lookup(ctx, alias)
	if lookupErr != nil {
		return fmt.Errorf("query trust store: %w", lookupErr)
	}
	if present {
		installer.loggingService.Info("alias already trusted, skipping import", logging.String(logFieldAlias, alias))
		return nil
	}

	if importErr := installer.store.Import(ctx, alias, certificatePath); importErr != nil {
		return fmt.Errorf("import certificate: %w", importErr)
	}
	installer.loggingService.Info("certificate imported", logging.String(logFieldAlias, alias))
	return nil
}
