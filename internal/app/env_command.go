package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/canonical/datahub-init/internal/services"
	"github.com/canonical/datahub-init/pkg/logging"
)

const (
	environmentFilePermissions = 0o600

	logFieldServiceName            = "service"
	logFieldOutputPath             = "output_path"
	logMessageEnvironmentRendered  = "service environment rendered"
	logMessageEnvironmentToFile    = "service environment written"
	logFieldEnvironmentVariableLen = "variable_count"
)

func newEnvCommand(resources *applicationResources) *cobra.Command {
	envCommand := &cobra.Command{
		Use:           "env",
		Short:         "Work with DataHub service environments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	envCommand.AddCommand(newEnvRenderCommand(resources))
	return envCommand
}

func newEnvRenderCommand(resources *applicationResources) *cobra.Command {
	renderCommand := &cobra.Command{
		Use:           "render",
		Short:         fmt.Sprintf("Render the environment of a service (%s)", strings.Join(services.Names(), ", ")),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvRender(cmd)
		},
	}

	renderFlags := pflag.NewFlagSet("env-render", pflag.ContinueOnError)
	configureRenderFlags(renderFlags, resources.configurationManager)
	renderCommand.Flags().AddFlagSet(renderFlags)

	renderCommand.Flags().String(flagNameServiceName, "", "Name of the service to render the environment for")
	_ = renderCommand.MarkFlagRequired(flagNameServiceName)

	return renderCommand
}

func configureRenderFlags(flagSet *pflag.FlagSet, configurationManager *viper.Viper) {
	flagSet.String(flagNameConnectionsPath, configurationManager.GetString(configKeyEnvConnectionsPath), "Path of the YAML file describing relation connections")
	flagSet.String(flagNameOutputPath, configurationManager.GetString(configKeyEnvOutputPath), "Write the rendered environment to this file instead of standard output")
	flagSet.String(flagNameKafkaTopicPrefix, configurationManager.GetString(configKeyEnvKafkaTopicPrefix), "Prefix applied to every Kafka topic name")
	flagSet.String(flagNameOpensearchIndexPrefix, configurationManager.GetString(configKeyEnvOpensearchIndexPrefix), "Prefix applied to OpenSearch index names")
	flagSet.String(flagNameGMSSecretKey, configurationManager.GetString(configKeyEnvGMSSecretKey), "Encryption key of the metadata service")
	flagSet.String(flagNameFrontendSecretKey, configurationManager.GetString(configKeyEnvFrontendSecretKey), "Session signing key of the frontend")
	flagSet.Bool(flagNameUsePlayCacheSessionStore, configurationManager.GetBool(configKeyEnvUsePlayCacheSessionStore), "Store frontend sessions in the Play cache")
	flagSet.String(flagNameExternalFrontendHostname, configurationManager.GetString(configKeyEnvExternalFrontendHostname), "External hostname the frontend is reachable at")
	flagSet.String(flagNameOIDCClientID, configurationManager.GetString(configKeyEnvOIDCClientID), "OIDC client id for single sign-on")
	flagSet.String(flagNameOIDCClientSecret, configurationManager.GetString(configKeyEnvOIDCClientSecret), "OIDC client secret for single sign-on")
	_ = configurationManager.BindPFlag(configKeyEnvConnectionsPath, flagSet.Lookup(flagNameConnectionsPath))
	_ = configurationManager.BindPFlag(configKeyEnvOutputPath, flagSet.Lookup(flagNameOutputPath))
	_ = configurationManager.BindPFlag(configKeyEnvKafkaTopicPrefix, flagSet.Lookup(flagNameKafkaTopicPrefix))
	_ = configurationManager.BindPFlag(configKeyEnvOpensearchIndexPrefix, flagSet.Lookup(flagNameOpensearchIndexPrefix))
	_ = configurationManager.BindPFlag(configKeyEnvGMSSecretKey, flagSet.Lookup(flagNameGMSSecretKey))
	_ = configurationManager.BindPFlag(configKeyEnvFrontendSecretKey, flagSet.Lookup(flagNameFrontendSecretKey))
	_ = configurationManager.BindPFlag(configKeyEnvUsePlayCacheSessionStore, flagSet.Lookup(flagNameUsePlayCacheSessionStore))
	_ = configurationManager.BindPFlag(configKeyEnvExternalFrontendHostname, flagSet.Lookup(flagNameExternalFrontendHostname))
	_ = configurationManager.BindPFlag(configKeyEnvOIDCClientID, flagSet.Lookup(flagNameOIDCClientID))
	_ = configurationManager.BindPFlag(configKeyEnvOIDCClientSecret, flagSet.Lookup(flagNameOIDCClientSecret))
}

func runEnvRender(cmd *cobra.Command) error {
	resources, err := getApplicationResources(cmd)
	if err != nil {
		return err
	}
	configurationManager := resources.configurationManager

	serviceName, flagErr := cmd.Flags().GetString(flagNameServiceName)
	if flagErr != nil {
		return fmt.Errorf("read service flag: %w", flagErr)
	}
	connectionsPath := strings.TrimSpace(configurationManager.GetString(configKeyEnvConnectionsPath))
	if connectionsPath == "" {
		return errors.New("connections file path is required")
	}

	connections, loadErr := services.LoadConnections(connectionsPath)
	if loadErr != nil {
		return loadErr
	}
	renderOptions := services.RenderOptions{
		KafkaTopicPrefix:         configurationManager.GetString(configKeyEnvKafkaTopicPrefix),
		OpensearchIndexPrefix:    configurationManager.GetString(configKeyEnvOpensearchIndexPrefix),
		GMSSecretKey:             configurationManager.GetString(configKeyEnvGMSSecretKey),
		FrontendSecretKey:        configurationManager.GetString(configKeyEnvFrontendSecretKey),
		UsePlayCacheSessionStore: configurationManager.GetBool(configKeyEnvUsePlayCacheSessionStore),
		ExternalFrontendHostname: configurationManager.GetString(configKeyEnvExternalFrontendHostname),
		OIDCClientID:             configurationManager.GetString(configKeyEnvOIDCClientID),
		OIDCClientSecret:         configurationManager.GetString(configKeyEnvOIDCClientSecret),
		HTTPProxy:                os.Getenv(environmentVariableHTTPProxy),
		HTTPSProxy:               os.Getenv(environmentVariableHTTPSProxy),
		NoProxy:                  os.Getenv(environmentVariableNoProxy),
	}

	environment, compileErr := services.CompileEnvironment(serviceName, connections, renderOptions)
	if compileErr != nil {
		return compileErr
	}
	rendered, marshalErr := godotenv.Marshal(environment)
	if marshalErr != nil {
		return fmt.Errorf("marshal environment: %w", marshalErr)
	}

	outputPath := strings.TrimSpace(configurationManager.GetString(configKeyEnvOutputPath))
	if outputPath == "" {
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		resources.loggingService.Info(logMessageEnvironmentRendered,
			logging.String(logFieldServiceName, serviceName),
			logging.Int(logFieldEnvironmentVariableLen, len(environment)))
		return nil
	}
	if writeErr := os.WriteFile(outputPath, []byte(rendered+"\n"), environmentFilePermissions); writeErr != nil {
		return fmt.Errorf("write environment file: %w", writeErr)
	}
	resources.loggingService.Info(logMessageEnvironmentToFile,
		logging.String(logFieldServiceName, serviceName),
		logging.String(logFieldOutputPath, outputPath),
		logging.Int(logFieldEnvironmentVariableLen, len(environment)))
	return nil
}
