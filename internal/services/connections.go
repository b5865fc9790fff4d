package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PostgresqlConnection carries the relational database relation data.
type PostgresqlConnection struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	DatabaseName string `yaml:"dbname"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
}

// KafkaConnection carries the message broker relation data.
type KafkaConnection struct {
	BootstrapServer string `yaml:"bootstrap_server"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
}

// OpensearchConnection carries the search engine relation data. The TLS
// certificate authority field holds the PEM chain handed over by the
// relation, ordered with the root authority second.
type OpensearchConnection struct {
	Host                    string `yaml:"host"`
	Port                    string `yaml:"port"`
	Username                string `yaml:"username"`
	Password                string `yaml:"password"`
	TLSCertificateAuthority string `yaml:"tls-ca"`
}

// Connections aggregates the relation data the orchestrator hands over.
type Connections struct {
	Postgresql *PostgresqlConnection `yaml:"postgresql"`
	Kafka      *KafkaConnection      `yaml:"kafka"`
	Opensearch *OpensearchConnection `yaml:"opensearch"`
}

// LoadConnections reads and decodes a connections file.
func LoadConnections(path string) (Connections, error) {
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		return Connections{}, fmt.Errorf("read connections file: %w", readErr)
	}
	var connections Connections
	if err := yaml.Unmarshal(content, &connections); err != nil {
		return Connections{}, fmt.Errorf("decode connections file: %w", err)
	}
	return connections, nil
}
