package services

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Service names match the workload containers of the DataHub deployment.
const (
	NameActions         = "datahub-actions"
	NameFrontend        = "datahub-frontend"
	NameGMS             = "datahub-gms"
	NameKafkaSetup      = "datahub-kafka-setup"
	NameOpensearchSetup = "datahub-opensearch-setup"
	NamePostgresqlSetup = "datahub-postgresql-setup"
	NameUpgrade         = "datahub-upgrade"
)

const (
	gmsHost           = "localhost"
	gmsPort           = "8080"
	frontendPort      = "9002"
	schemaRegistryURL = "http://localhost:8080/schema-registry/api/"
	maxMessageBytes   = "5242880"
	oidcDiscoveryURI  = "https://accounts.google.com/.well-known/openid-configuration"
)

// RenderOptions carries configuration that shapes a service environment
// beyond the relation data.
type RenderOptions struct {
	KafkaTopicPrefix         string
	OpensearchIndexPrefix    string
	GMSSecretKey             string
	FrontendSecretKey        string
	UsePlayCacheSessionStore bool
	ExternalFrontendHostname string
	OIDCClientID             string
	OIDCClientSecret         string
	HTTPProxy                string
	HTTPSProxy               string
	NoProxy                  string
}

// Names lists the services an environment can be rendered for.
func Names() []string {
	return []string{
		NameActions,
		NameFrontend,
		NameGMS,
		NameKafkaSetup,
		NameOpensearchSetup,
		NamePostgresqlSetup,
		NameUpgrade,
	}
}

// CompileEnvironment builds the environment variable map for the named
// service from relation data and render options.
func CompileEnvironment(serviceName string, connections Connections, options RenderOptions) (map[string]string, error) {
	switch serviceName {
	case NameActions:
		return compileActionsEnvironment(connections, options)
	case NameFrontend:
		return compileFrontendEnvironment(connections, options)
	case NameGMS:
		return compileGMSEnvironment(connections, options)
	case NameKafkaSetup:
		return compileKafkaSetupEnvironment(connections, options)
	case NameOpensearchSetup:
		return compileOpensearchSetupEnvironment(connections, options)
	case NamePostgresqlSetup:
		return compilePostgresqlSetupEnvironment(connections)
	case NameUpgrade:
		return compileUpgradeEnvironment(connections, options)
	default:
		return nil, fmt.Errorf("unknown service %s, expected one of: %s", serviceName, strings.Join(Names(), ", "))
	}
}

func compileActionsEnvironment(connections Connections, options RenderOptions) (map[string]string, error) {
	kafka, err := requireKafka(connections)
	if err != nil {
		return nil, err
	}
	environment := map[string]string{
		"DATAHUB_TELEMETRY_ENABLED":          "false",
		"DATAHUB_GMS_PROTOCOL":               "http",
		"DATAHUB_GMS_HOST":                   gmsHost,
		"DATAHUB_GMS_PORT":                   gmsPort,
		"KAFKA_BOOTSTRAP_SERVER":             kafka.BootstrapServer,
		"SCHEMA_REGISTRY_URL":                schemaRegistryURL,
		"KAFKA_AUTO_OFFSET_POLICY":           "latest",
		"KAFKA_PROPERTIES_SECURITY_PROTOCOL": "SASL_PLAINTEXT",
		"KAFKA_PROPERTIES_SASL_MECHANISM":    "SCRAM-SHA-512",
		"KAFKA_PROPERTIES_SASL_USERNAME":     kafka.Username,
		"KAFKA_PROPERTIES_SASL_PASSWORD":     kafka.Password,
	}
	mergeInto(environment, kafkaTopicNames(options.KafkaTopicPrefix))
	return environment, nil
}

func compileFrontendEnvironment(connections Connections, options RenderOptions) (map[string]string, error) {
	kafka, kafkaErr := requireKafka(connections)
	if kafkaErr != nil {
		return nil, kafkaErr
	}
	opensearch, opensearchErr := requireOpensearch(connections)
	if opensearchErr != nil {
		return nil, opensearchErr
	}
	if options.FrontendSecretKey == "" {
		return nil, errors.New("frontend secret key is required")
	}

	environment := map[string]string{
		"THEME_V2_DEFAULT":                          "true",
		"ENABLE_PROMETHEUS":                         "false",
		"DATAHUB_GMS_HOST":                          gmsHost,
		"DATAHUB_GMS_PORT":                          gmsPort,
		"DATAHUB_SECRET":                            options.FrontendSecretKey,
		"DATAHUB_APP_VERSION":                       "1.1.0",
		"DATAHUB_PLAY_MEM_BUFFER_SIZE":              "10MB",
		"DATAHUB_ANALYTICS_ENABLED":                 "true",
		"KAFKA_BOOTSTRAP_SERVER":                    kafka.BootstrapServer,
		"ENFORCE_VALID_EMAIL":                       "true",
		"KAFKA_PRODUCER_COMPRESSION_TYPE":           "none",
		"KAFKA_PRODUCER_MAX_REQUEST_SIZE":           maxMessageBytes,
		"KAFKA_CONSUMER_MAX_PARTITION_FETCH_BYTES":  maxMessageBytes,
		"SPRING_KAFKA_PROPERTIES_SECURITY_PROTOCOL": "SASL_PLAINTEXT",
		"SPRING_KAFKA_PROPERTIES_SASL_MECHANISM":    "SCRAM-SHA-512",
		"SPRING_KAFKA_PROPERTIES_SASL_JAAS_CONFIG":  jaasConfiguration(kafka.Username, kafka.Password),
		"ELASTIC_CLIENT_HOST":                       opensearch.Host,
		"ELASTIC_CLIENT_PORT":                       opensearch.Port,
		"ELASTIC_CLIENT_USE_SSL":                    "true",
		"ELASTIC_CLIENT_USERNAME":                   opensearch.Username,
		"ELASTIC_CLIENT_PASSWORD":                   opensearch.Password,
		"AUTH_SESSION_TTL_HOURS":                    "24",
		"METADATA_SERVICE_AUTH_ENABLED":             "true",
	}
	if options.UsePlayCacheSessionStore {
		environment["PAC4J_SESSIONSTORE_PROVIDER"] = "PlayCacheSessionStore"
	}
	if options.OpensearchIndexPrefix != "" {
		environment["ELASTIC_INDEX_PREFIX"] = options.OpensearchIndexPrefix
	}
	mergeInto(environment, kafkaTopicNames(options.KafkaTopicPrefix))
	mergeInto(environment, proxyVariables(options))

	oidcEnvironment, oidcErr := oidcVariables(options)
	if oidcErr != nil {
		return nil, oidcErr
	}
	mergeInto(environment, oidcEnvironment)
	return environment, nil
}

func compileGMSEnvironment(connections Connections, options RenderOptions) (map[string]string, error) {
	postgresql, postgresqlErr := requirePostgresql(connections)
	if postgresqlErr != nil {
		return nil, postgresqlErr
	}
	kafka, kafkaErr := requireKafka(connections)
	if kafkaErr != nil {
		return nil, kafkaErr
	}
	opensearch, opensearchErr := requireOpensearch(connections)
	if opensearchErr != nil {
		return nil, opensearchErr
	}
	if options.GMSSecretKey == "" {
		return nil, errors.New("gms secret key is required")
	}

	environment := map[string]string{
		"DATAHUB_TELEMETRY_ENABLED":                    "false",
		"EBEAN_DATASOURCE_PORT":                        postgresql.Port,
		"SHOW_SEARCH_FILTERS_V2":                       "true",
		"SHOW_BROWSE_V2":                               "true",
		"BACKFILL_BROWSE_PATHS_V2":                     "true",
		"ENABLE_PROMETHEUS":                            "false",
		"MCE_CONSUMER_ENABLED":                         "true",
		"MAE_CONSUMER_ENABLED":                         "true",
		"PE_CONSUMER_ENABLED":                          "true",
		"ENTITY_REGISTRY_CONFIG_PATH":                  "/datahub/datahub-gms/resources/entity-registry.yml",
		"DATAHUB_ANALYTICS_ENABLED":                    "true",
		"EBEAN_DATASOURCE_USERNAME":                    postgresql.Username,
		"EBEAN_DATASOURCE_PASSWORD":                    postgresql.Password,
		"EBEAN_DATASOURCE_HOST":                        fmt.Sprintf("%s:%s", postgresql.Host, postgresql.Port),
		"EBEAN_DATASOURCE_URL":                         jdbcURL(postgresql),
		"EBEAN_DATASOURCE_DRIVER":                      "org.postgresql.Driver",
		"KAFKA_BOOTSTRAP_SERVER":                       kafka.BootstrapServer,
		"KAFKA_PRODUCER_COMPRESSION_TYPE":              "none",
		"KAFKA_CONSUMER_STOP_ON_DESERIALIZATION_ERROR": "true",
		"KAFKA_PRODUCER_MAX_REQUEST_SIZE":              maxMessageBytes,
		"KAFKA_CONSUMER_MAX_PARTITION_FETCH_BYTES":     maxMessageBytes,
		"KAFKA_SCHEMAREGISTRY_URL":                     schemaRegistryURL,
		"SCHEMA_REGISTRY_TYPE":                         "INTERNAL",
		"SPRING_KAFKA_PROPERTIES_SECURITY_PROTOCOL":    "SASL_PLAINTEXT",
		"SPRING_KAFKA_PROPERTIES_SASL_MECHANISM":       "SCRAM-SHA-512",
		"SPRING_KAFKA_PROPERTIES_SASL_JAAS_CONFIG":     jaasConfiguration(kafka.Username, kafka.Password),
		"ELASTICSEARCH_HOST":                           opensearch.Host,
		"ELASTICSEARCH_PORT":                           opensearch.Port,
		"SKIP_ELASTICSEARCH_CHECK":                     "true",
		"ELASTICSEARCH_USE_SSL":                        "true",
		"ELASTICSEARCH_USERNAME":                       opensearch.Username,
		"ELASTICSEARCH_PASSWORD":                       opensearch.Password,
		"GRAPH_SERVICE_IMPL":                           "elasticsearch",
		"UI_INGESTION_ENABLED":                         "true",
		"SECRET_SERVICE_ENCRYPTION_KEY":                options.GMSSecretKey,
		"ENTITY_SERVICE_ENABLE_RETENTION":              "false",
		"ELASTICSEARCH_QUERY_MAX_TERM_BUCKET_SIZE":     "20",
		"ELASTICSEARCH_QUERY_EXACT_MATCH_EXCLUSIVE":    "false",
		"ELASTICSEARCH_QUERY_EXACT_MATCH_WITH_PREFIX":  "true",
		"ELASTICSEARCH_QUERY_EXACT_MATCH_FACTOR":       "2",
		"ELASTICSEARCH_QUERY_EXACT_MATCH_PREFIX_FACTOR": "1.6",
		"ELASTICSEARCH_QUERY_EXACT_MATCH_CASE_FACTOR":   "0.7",
		"ELASTICSEARCH_QUERY_EXACT_MATCH_ENABLE_STRUCTURED": "true",
		"ELASTICSEARCH_SEARCH_GRAPH_TIMEOUT_SECONDS":        "50",
		"ELASTICSEARCH_SEARCH_GRAPH_BATCH_SIZE":             "1000",
		"ELASTICSEARCH_SEARCH_GRAPH_MAX_RESULT":             "10000",
		"SEARCH_SERVICE_ENABLE_CACHE":                       "false",
		"LINEAGE_SEARCH_CACHE_ENABLED":                      "false",
		"ELASTICSEARCH_INDEX_BUILDER_MAPPINGS_REINDEX":      "true",
		"ELASTICSEARCH_INDEX_BUILDER_SETTINGS_REINDEX":      "true",
		"ALWAYS_EMIT_CHANGE_LOG":                            "false",
		"GRAPH_SERVICE_DIFF_MODE_ENABLED":                   "true",
		"GRAPHQL_QUERY_INTROSPECTION_ENABLED":               "true",
		"METADATA_SERVICE_AUTH_ENABLED":                     "true",
	}
	if options.OpensearchIndexPrefix != "" {
		environment["INDEX_PREFIX"] = options.OpensearchIndexPrefix
	}
	mergeInto(environment, kafkaTopicNames(options.KafkaTopicPrefix))
	return environment, nil
}

func compileKafkaSetupEnvironment(connections Connections, options RenderOptions) (map[string]string, error) {
	kafka, err := requireKafka(connections)
	if err != nil {
		return nil, err
	}
	environment := map[string]string{
		"KAFKA_BOOTSTRAP_SERVER": kafka.BootstrapServer,
		// The value for this is not actually used in the container.
		"KAFKA_ZOOKEEPER_CONNECT":            "",
		"MAX_MESSAGE_BYTES":                  maxMessageBytes,
		"USE_CONFLUENT_SCHEMA_REGISTRY":      "false",
		"KAFKA_PROPERTIES_SECURITY_PROTOCOL": "SASL_PLAINTEXT",
		"KAFKA_PROPERTIES_SASL_MECHANISM":    "SCRAM-SHA-512",
		"KAFKA_PROPERTIES_SASL_JAAS_CONFIG":  jaasConfiguration(kafka.Username, kafka.Password),
	}
	mergeInto(environment, kafkaTopicNames(options.KafkaTopicPrefix))
	return environment, nil
}

func compileOpensearchSetupEnvironment(connections Connections, options RenderOptions) (map[string]string, error) {
	opensearch, err := requireOpensearch(connections)
	if err != nil {
		return nil, err
	}
	environment := map[string]string{
		"ELASTICSEARCH_HOST":        opensearch.Host,
		"ELASTICSEARCH_PORT":        opensearch.Port,
		"SKIP_ELASTICSEARCH_CHECK":  "false",
		"ELASTICSEARCH_INSECURE":    "false",
		"ELASTICSEARCH_USE_SSL":     "true",
		"ELASTICSEARCH_USERNAME":    opensearch.Username,
		"ELASTICSEARCH_PASSWORD":    opensearch.Password,
		"INDEX_PREFIX":              options.OpensearchIndexPrefix,
		"DATAHUB_ANALYTICS_ENABLED": "true",
		"USE_AWS_ELASTICSEARCH":     "true",
	}
	return environment, nil
}

func compilePostgresqlSetupEnvironment(connections Connections) (map[string]string, error) {
	postgresql, err := requirePostgresql(connections)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"POSTGRES_USERNAME": postgresql.Username,
		"POSTGRES_PASSWORD": postgresql.Password,
		"POSTGRES_HOST":     postgresql.Host,
		"POSTGRES_PORT":     postgresql.Port,
		"DATAHUB_DB_NAME":   postgresql.DatabaseName,
	}, nil
}

func compileUpgradeEnvironment(connections Connections, options RenderOptions) (map[string]string, error) {
	postgresql, postgresqlErr := requirePostgresql(connections)
	if postgresqlErr != nil {
		return nil, postgresqlErr
	}
	kafka, kafkaErr := requireKafka(connections)
	if kafkaErr != nil {
		return nil, kafkaErr
	}
	opensearch, opensearchErr := requireOpensearch(connections)
	if opensearchErr != nil {
		return nil, opensearchErr
	}

	environment := map[string]string{
		"DATAHUB_ANALYTICS_ENABLED":                      "true",
		"SCHEMA_REGISTRY_SYSTEM_UPDATE":                  "true",
		"SPRING_KAFKA_PROPERTIES_AUTO_REGISTER_SCHEMAS":  "true",
		"SPRING_KAFKA_PROPERTIES_USE_LATEST_VERSION":     "true",
		"SCHEMA_REGISTRY_TYPE":                           "INTERNAL",
		"ELASTICSEARCH_BUILD_INDICES_CLONE_INDICES":      "false",
		"ELASTICSEARCH_INDEX_BUILDER_MAPPINGS_REINDEX":   "true",
		"ELASTICSEARCH_INDEX_BUILDER_SETTINGS_REINDEX":   "true",
		"ELASTICSEARCH_BUILD_INDICES_ALLOW_DOC_COUNT_MISMATCH": "false",
		"ENTITY_REGISTRY_CONFIG_PATH":                "/datahub/datahub-gms/resources/entity-registry.yml",
		"DATAHUB_GMS_HOST":                           gmsHost,
		"DATAHUB_GMS_PORT":                           gmsPort,
		"EBEAN_DATASOURCE_USERNAME":                  postgresql.Username,
		"EBEAN_DATASOURCE_PASSWORD":                  postgresql.Password,
		"EBEAN_DATASOURCE_HOST":                      fmt.Sprintf("%s:%s", postgresql.Host, postgresql.Port),
		"EBEAN_DATASOURCE_URL":                       jdbcURL(postgresql),
		"EBEAN_DATASOURCE_DRIVER":                    "org.postgresql.Driver",
		"KAFKA_BOOTSTRAP_SERVER":                     kafka.BootstrapServer,
		"KAFKA_PRODUCER_COMPRESSION_TYPE":            "none",
		"KAFKA_PRODUCER_MAX_REQUEST_SIZE":            maxMessageBytes,
		"KAFKA_CONSUMER_MAX_PARTITION_FETCH_BYTES":   maxMessageBytes,
		"KAFKA_SCHEMAREGISTRY_URL":                   schemaRegistryURL,
		"ELASTICSEARCH_HOST":                         opensearch.Host,
		"ELASTICSEARCH_PORT":                         opensearch.Port,
		"SKIP_ELASTICSEARCH_CHECK":                   "true",
		"ELASTICSEARCH_INSECURE":                     "false",
		"ELASTICSEARCH_USE_SSL":                      "true",
		"ELASTICSEARCH_USERNAME":                     opensearch.Username,
		"ELASTICSEARCH_PASSWORD":                     opensearch.Password,
		"GRAPH_SERVICE_IMPL":                         "elasticsearch",
		"SPRING_KAFKA_PROPERTIES_SECURITY_PROTOCOL":  "SASL_PLAINTEXT",
		"SPRING_KAFKA_PROPERTIES_SASL_MECHANISM":     "SCRAM-SHA-512",
		"SPRING_KAFKA_PROPERTIES_SASL_JAAS_CONFIG":   jaasConfiguration(kafka.Username, kafka.Password),
	}
	if options.OpensearchIndexPrefix != "" {
		environment["INDEX_PREFIX"] = options.OpensearchIndexPrefix
	}
	mergeInto(environment, kafkaTopicNames(options.KafkaTopicPrefix))
	return environment, nil
}

// kafkaTopicNames compiles the topic name variables shared across services.
// Ref: https://github.com/datahub-project/datahub/blob/master/docs/how/kafka-config.md#topic-configuration
func kafkaTopicNames(prefix string) map[string]string {
	defaultNames := map[string]string{
		"METADATA_CHANGE_PROPOSAL_TOPIC_NAME":        "MetadataChangeProposal_v1",
		"FAILED_METADATA_CHANGE_PROPOSAL_TOPIC_NAME": "FailedMetadataChangeProposal_v1",
		"METADATA_CHANGE_LOG_VERSIONED_TOPIC_NAME":   "MetadataChangeLog_Versioned_v1",
		"METADATA_CHANGE_LOG_TIMESERIES_TOPIC_NAME":  "MetadataChangeLog_Timeseries_v1",
		"PLATFORM_EVENT_TOPIC_NAME":                  "PlatformEvent_v1",
		"DATAHUB_UPGRADE_HISTORY_TOPIC_NAME":         "DataHubUpgradeHistory_v1",
		"DATAHUB_USAGE_EVENT_NAME":                   "DataHubUsageEvent_v1",
	}
	defaultNames["DATAHUB_TRACKING_TOPIC"] = defaultNames["DATAHUB_USAGE_EVENT_NAME"]

	if prefix == "" {
		return defaultNames
	}
	prefixed := make(map[string]string, len(defaultNames))
	for variable, topic := range defaultNames {
		prefixed[variable] = prefix + "_" + topic
	}
	return prefixed
}

func jaasConfiguration(username string, password string) string {
	return fmt.Sprintf(
		"org.apache.kafka.common.security.scram.ScramLoginModule required username=%q password=%q;",
		username, password)
}

func jdbcURL(postgresql *PostgresqlConnection) string {
	return fmt.Sprintf("jdbc:postgresql://%s:%s/%s", postgresql.Host, postgresql.Port, postgresql.DatabaseName)
}

// proxyVariables derives the frontend proxy settings.
// Ref: https://datahubproject.io/docs/authentication/guides/sso/configure-oidc-behind-proxy/
func proxyVariables(options RenderOptions) map[string]string {
	variables := map[string]string{}
	noProxyHosts := []string{"localhost"}
	if options.NoProxy != "" {
		noProxyHosts = append(noProxyHosts, strings.Split(options.NoProxy, ",")...)
	}
	noProxyHosts = append(noProxyHosts, gmsHost)

	if options.HTTPProxy != "" {
		if parsed, err := url.Parse(options.HTTPProxy); err == nil {
			variables["HTTP_PROXY_HOST"] = parsed.Hostname()
			variables["HTTP_PROXY_PORT"] = parsed.Port()
		}
	}
	if options.HTTPSProxy != "" {
		if parsed, err := url.Parse(options.HTTPSProxy); err == nil {
			variables["HTTPS_PROXY_HOST"] = parsed.Hostname()
			variables["HTTPS_PROXY_PORT"] = parsed.Port()
		}
	}
	variables["HTTP_NON_PROXY_HOSTS"] = strings.Join(noProxyHosts, "|")
	return variables
}

// oidcVariables derives the optional OIDC block. Client id and secret must
// be set together.
// Ref: https://datahubproject.io/docs/troubleshooting/quickstart/#ive-configured-oidc-but-i-cannot-login-i-get-continuously-redirected-what-do-i-do
func oidcVariables(options RenderOptions) (map[string]string, error) {
	if options.OIDCClientID == "" && options.OIDCClientSecret == "" {
		return nil, nil
	}
	if options.OIDCClientID == "" || options.OIDCClientSecret == "" {
		return nil, errors.New("oidc client id and client secret must be set together")
	}
	baseURL := "http://" + gmsHost + ":" + frontendPort
	if options.ExternalFrontendHostname != "" {
		// OIDC mandates TLS on the external surface.
		baseURL = "https://" + options.ExternalFrontendHostname
	}
	return map[string]string{
		"AUTH_OIDC_ENABLED":         "true",
		"AUTH_OIDC_DISCOVERY_URI":   oidcDiscoveryURI,
		"AUTH_OIDC_BASE_URL":        baseURL,
		"AUTH_OIDC_SCOPE":           "openid profile email",
		"AUTH_OIDC_CLIENT_ID":       options.OIDCClientID,
		"AUTH_OIDC_CLIENT_SECRET":   options.OIDCClientSecret,
		"AUTH_OIDC_USER_NAME_CLAIM": "email",
	}, nil
}

func requirePostgresql(connections Connections) (*PostgresqlConnection, error) {
	if connections.Postgresql == nil {
		return nil, errors.New("postgresql connection is required")
	}
	return connections.Postgresql, nil
}

func requireKafka(connections Connections) (*KafkaConnection, error) {
	if connections.Kafka == nil {
		return nil, errors.New("kafka connection is required")
	}
	return connections.Kafka, nil
}

func requireOpensearch(connections Connections) (*OpensearchConnection, error) {
	if connections.Opensearch == nil {
		return nil, errors.New("opensearch connection is required")
	}
	return connections.Opensearch, nil
}

func mergeInto(target map[string]string, source map[string]string) {
	for key, value := range source {
		target[key] = value
	}
}
