package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/canonical/datahub-init/internal/credentials"
	"github.com/canonical/datahub-init/pkg/logging"
)

type contextKey string

const (
	contextKeyApplicationResources contextKey = "application-resources"

	defaultConfigFileName  = "config"
	defaultConfigFileType  = "yaml"
	defaultApplicationName = "datahub-init"
	defaultRunnerName      = defaultApplicationName

	flagNameConfigFile               = "config"
	flagNameLoggingType              = "logging-type"
	flagNameCertificatePath          = "cert-path"
	flagNameCertificateAlias         = "cert-alias"
	flagNameCertificateChainPath     = "chain-path"
	flagNameKeytoolPath              = "keytool"
	flagNameStorePath                = "store-path"
	flagNameStorePassword            = "store-password"
	flagNameArtifactDirectory        = "artifact-dir"
	flagNameRunnerName               = "runner-name"
	flagNameConnectionsPath          = "connections"
	flagNameServiceName              = "service"
	flagNameOutputPath               = "output"
	flagNameKafkaTopicPrefix         = "kafka-topic-prefix"
	flagNameOpensearchIndexPrefix    = "opensearch-index-prefix"
	flagNameGMSSecretKey             = "gms-secret-key"
	flagNameFrontendSecretKey        = "frontend-secret-key"
	flagNameUsePlayCacheSessionStore = "use-play-cache"
	flagNameExternalFrontendHostname = "external-frontend-hostname"
	flagNameOIDCClientID             = "oidc-client-id"
	flagNameOIDCClientSecret         = "oidc-client-secret"
	flagNameSecretLength             = "length"

	configKeyLoggingType                 = "logging.type"
	configKeyTruststoreCertificatePath   = "truststore.certificate_path"
	configKeyTruststoreCertificateAlias  = "truststore.certificate_alias"
	configKeyTruststoreChainPath         = "truststore.chain_path"
	configKeyTruststoreKeytoolPath       = "truststore.keytool_path"
	configKeyTruststoreStorePath         = "truststore.store_path"
	configKeyTruststoreStorePassword     = "truststore.store_password"
	configKeyRunArtifactDirectory        = "run.artifact_directory"
	configKeyRunRunnerName               = "run.runner_name"
	configKeyEnvConnectionsPath          = "env.connections_path"
	configKeyEnvOutputPath               = "env.output_path"
	configKeyEnvKafkaTopicPrefix         = "env.kafka_topic_prefix"
	configKeyEnvOpensearchIndexPrefix    = "env.opensearch_index_prefix"
	configKeyEnvGMSSecretKey             = "env.gms_secret_key"
	configKeyEnvFrontendSecretKey        = "env.frontend_secret_key"
	configKeyEnvUsePlayCacheSessionStore = "env.use_play_cache_session_store"
	configKeyEnvExternalFrontendHostname = "env.external_frontend_hostname"
	configKeyEnvOIDCClientID             = "env.oidc_client_id"
	configKeyEnvOIDCClientSecret         = "env.oidc_client_secret"
	configKeySecretLength                = "secret.length"

	environmentVariableCertificatePath  = "CERT_PATH"
	environmentVariableCertificateAlias = "CERT_ALIAS"
	environmentVariableHTTPProxy        = "JUJU_CHARM_HTTP_PROXY"
	environmentVariableHTTPSProxy       = "JUJU_CHARM_HTTPS_PROXY"
	environmentVariableNoProxy          = "JUJU_CHARM_NO_PROXY"

	defaultCertificateAlias = "opensearch-root-ca"

	logMessageFailedInitializeLogger = "failed to initialize logger"
	logMessageResolveUserConfigDir   = "resolve user config directory"
	logMessageCommandExecutionFailed = "command execution failed"
)

// exitCodeError carries a process exit code through cobra's error path.
type exitCodeError struct {
	code int
}

func (err *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", err.code)
}

type applicationResources struct {
	configurationManager *viper.Viper
	loggingService       *logging.Service
	defaultConfigDirPath string
}

func (resources *applicationResources) updateLogger(loggingType string) error {
	normalizedType, err := logging.NormalizeType(loggingType)
	if err != nil {
		return err
	}
	if resources.loggingService != nil && resources.loggingService.Type() == normalizedType {
		return nil
	}
	service, err := logging.NewService(normalizedType)
	if err != nil {
		return err
	}
	if resources.loggingService != nil {
		_ = resources.loggingService.Sync()
	}
	resources.loggingService = service
	return nil
}

// Execute runs the CLI using the provided context and arguments, returning an exit code.
func Execute(ctx context.Context, arguments []string) int {
	initialService, err := logging.NewService(logging.TypeConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", logMessageFailedInitializeLogger, err)
		return 1
	}
	configurationManager := viper.New()
	configurationManager.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(defaultApplicationName, "-", "_")))
	configurationManager.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configurationManager.AutomaticEnv()
	// The trust store operation historically read these two unprefixed variables.
	_ = configurationManager.BindEnv(configKeyTruststoreCertificatePath, environmentVariableCertificatePath)
	_ = configurationManager.BindEnv(configKeyTruststoreCertificateAlias, environmentVariableCertificateAlias)

	userConfigDir, userConfigErr := os.UserConfigDir()
	if userConfigErr != nil {
		initialService.Error(logMessageResolveUserConfigDir, userConfigErr)
		return 1
	}
	applicationConfigDir := filepath.Join(userConfigDir, defaultApplicationName)

	configurationManager.SetDefault(configKeyLoggingType, logging.TypeConsole)
	configurationManager.SetDefault(configKeyTruststoreCertificatePath, "")
	configurationManager.SetDefault(configKeyTruststoreCertificateAlias, defaultCertificateAlias)
	configurationManager.SetDefault(configKeyTruststoreChainPath, "")
	configurationManager.SetDefault(configKeyTruststoreKeytoolPath, "")
	configurationManager.SetDefault(configKeyTruststoreStorePath, "")
	configurationManager.SetDefault(configKeyTruststoreStorePassword, "")
	configurationManager.SetDefault(configKeyRunArtifactDirectory, os.TempDir())
	configurationManager.SetDefault(configKeyRunRunnerName, defaultRunnerName)
	configurationManager.SetDefault(configKeyEnvConnectionsPath, "")
	configurationManager.SetDefault(configKeyEnvOutputPath, "")
	configurationManager.SetDefault(configKeyEnvKafkaTopicPrefix, "")
	configurationManager.SetDefault(configKeyEnvOpensearchIndexPrefix, "")
	configurationManager.SetDefault(configKeyEnvGMSSecretKey, "")
	configurationManager.SetDefault(configKeyEnvFrontendSecretKey, "")
	configurationManager.SetDefault(configKeyEnvUsePlayCacheSessionStore, false)
	configurationManager.SetDefault(configKeyEnvExternalFrontendHostname, "")
	configurationManager.SetDefault(configKeyEnvOIDCClientID, "")
	configurationManager.SetDefault(configKeyEnvOIDCClientSecret, "")
	configurationManager.SetDefault(configKeySecretLength, credentials.DefaultSecretLength)

	resources := &applicationResources{
		configurationManager: configurationManager,
		loggingService:       initialService,
		defaultConfigDirPath: applicationConfigDir,
	}
	if err := resources.updateLogger(configurationManager.GetString(configKeyLoggingType)); err != nil {
		resources.loggingService = initialService
		resources.loggingService.Error(logMessageFailedInitializeLogger, err)
		return 1
	}
	defer func() {
		if resources.loggingService != nil {
			_ = resources.loggingService.Sync()
		}
	}()

	rootCommand := newRootCommand(resources)
	baseContext := context.WithValue(ctx, contextKeyApplicationResources, resources)
	rootCommand.SetContext(baseContext)
	rootCommand.SetArgs(arguments)

	if executionErr := rootCommand.Execute(); executionErr != nil {
		var codeErr *exitCodeError
		if errors.As(executionErr, &codeErr) {
			return codeErr.code
		}
		resources.loggingService.Error(logMessageCommandExecutionFailed, executionErr)
		return 1
	}

	return 0
}
