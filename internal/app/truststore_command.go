package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canonical/datahub-init/internal/certificates"
	"github.com/canonical/datahub-init/internal/execution"
	"github.com/canonical/datahub-init/internal/truststore"
	"github.com/canonical/datahub-init/pkg/logging"
)

const (
	certificateFilePermissions = 0o644

	logFieldChainPath         = "chain_path"
	logFieldCertificatePath   = "certificate_path"
	logMessageExtractedRootCA = "extracted root certificate authority from chain"
)

func newTrustStoreCommand(resources *applicationResources) *cobra.Command {
	trustStoreCommand := &cobra.Command{
		Use:           "truststore",
		Short:         "Manage the Java trust store of a workload container",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	trustStoreCommand.AddCommand(newTrustStoreInstallCommand(resources))
	return trustStoreCommand
}

func newTrustStoreInstallCommand(resources *applicationResources) *cobra.Command {
	installCommand := &cobra.Command{
		Use:           "install",
		Short:         "Install a certificate into the Java trust store under a fixed alias",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrustStoreInstall(cmd)
		},
	}

	installCommand.Flags().String(flagNameCertificatePath, resources.configurationManager.GetString(configKeyTruststoreCertificatePath), "Path of the certificate to import")
	installCommand.Flags().String(flagNameCertificateAlias, resources.configurationManager.GetString(configKeyTruststoreCertificateAlias), "Trust store alias for the certificate")
	installCommand.Flags().String(flagNameCertificateChainPath, resources.configurationManager.GetString(configKeyTruststoreChainPath), "Optional certificate chain to extract the root authority from")
	installCommand.Flags().String(flagNameKeytoolPath, resources.configurationManager.GetString(configKeyTruststoreKeytoolPath), "Path of the keytool executable")
	installCommand.Flags().String(flagNameStorePath, resources.configurationManager.GetString(configKeyTruststoreStorePath), "Path of the trust store (defaults to the JVM cacerts store)")
	installCommand.Flags().String(flagNameStorePassword, resources.configurationManager.GetString(configKeyTruststoreStorePassword), "Password of the trust store")
	_ = resources.configurationManager.BindPFlag(configKeyTruststoreCertificatePath, installCommand.Flags().Lookup(flagNameCertificatePath))
	_ = resources.configurationManager.BindPFlag(configKeyTruststoreCertificateAlias, installCommand.Flags().Lookup(flagNameCertificateAlias))
	_ = resources.configurationManager.BindPFlag(configKeyTruststoreChainPath, installCommand.Flags().Lookup(flagNameCertificateChainPath))
	_ = resources.configurationManager.BindPFlag(configKeyTruststoreKeytoolPath, installCommand.Flags().Lookup(flagNameKeytoolPath))
	_ = resources.configurationManager.BindPFlag(configKeyTruststoreStorePath, installCommand.Flags().Lookup(flagNameStorePath))
	_ = resources.configurationManager.BindPFlag(configKeyTruststoreStorePassword, installCommand.Flags().Lookup(flagNameStorePassword))

	return installCommand
}

func runTrustStoreInstall(cmd *cobra.Command) error {
	resources, err := getApplicationResources(cmd)
	if err != nil {
		return err
	}
	configurationManager := resources.configurationManager

	certificatePath := strings.TrimSpace(configurationManager.GetString(configKeyTruststoreCertificatePath))
	certificateAlias := strings.TrimSpace(configurationManager.GetString(configKeyTruststoreCertificateAlias))
	chainPath := strings.TrimSpace(configurationManager.GetString(configKeyTruststoreChainPath))
	if certificatePath == "" {
		return fmt.Errorf("certificate path is required, set --%s or %s", flagNameCertificatePath, environmentVariableCertificatePath)
	}
	if certificateAlias == "" {
		return errors.New("certificate alias must not be empty")
	}

	fileSystem := truststore.NewOperatingSystemFileSystem()
	if chainPath != "" {
		if extractErr := extractRootAuthority(resources, fileSystem, chainPath, certificatePath); extractErr != nil {
			return extractErr
		}
	}

	keytoolStore := truststore.NewKeytoolStore(execution.NewExecutableRunner(), truststore.KeytoolConfiguration{
		Executable:    strings.TrimSpace(configurationManager.GetString(configKeyTruststoreKeytoolPath)),
		StorePath:     strings.TrimSpace(configurationManager.GetString(configKeyTruststoreStorePath)),
		StorePassword: configurationManager.GetString(configKeyTruststoreStorePassword),
	})
	installer := truststore.NewInstaller(keytoolStore, fileSystem, resources.loggingService)

	installContext, cancel := createSignalContext(cmd.Context(), resources.loggingService)
	defer cancel()

	return installer.Install(installContext, certificateAlias, certificatePath)
}

// extractRootAuthority writes the second certificate of the chain to the
// certificate path, matching how the opensearch relation publishes its
// root authority.
func extractRootAuthority(resources *applicationResources, fileSystem truststore.FileSystem, chainPath string, certificatePath string) error {
	chainContent, readErr := fileSystem.ReadFile(chainPath)
	if readErr != nil {
		return fmt.Errorf("read certificate chain: %w", readErr)
	}
	rootAuthority, extractErr := certificates.RootAuthority(string(chainContent))
	if extractErr != nil {
		return fmt.Errorf("extract root authority: %w", extractErr)
	}
	if writeErr := fileSystem.WriteFile(certificatePath, []byte(rootAuthority), certificateFilePermissions); writeErr != nil {
		return fmt.Errorf("write root authority: %w", writeErr)
	}
	resources.loggingService.Info(logMessageExtractedRootCA,
		logging.String(logFieldChainPath, chainPath),
		logging.String(logFieldCertificatePath, certificatePath))
	return nil
}
