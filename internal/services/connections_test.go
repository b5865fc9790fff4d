package services_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/canonical/datahub-init/internal/services"
)

func writeConnectionsFixture(testingInstance *testing.T, contents string) string {
	testingInstance.Helper()
	fixturePath := filepath.Join(testingInstance.TempDir(), "connections.yaml")
	if writeErr := os.WriteFile(fixturePath, []byte(contents), 0o600); writeErr != nil {
		testingInstance.Fatalf("write connections fixture: %v", writeErr)
	}
	return fixturePath
}

func TestLoadConnectionsParsesAllSections(testingInstance *testing.T) {
	fixturePath := writeConnectionsFixture(testingInstance, `
postgresql:
  host: db.example.com
  port: "5432"
  dbname: datahub
  username: datahub_user
  password: db-secret
kafka:
  bootstrap_server: broker.example.com:9092
  username: kafka_user
  password: kafka-secret
opensearch:
  host: search.example.com
  port: "9200"
  username: search_user
  password: search-secret
  tls-ca: |
    -----BEGIN CERTIFICATE-----
    Zmlyc3Q=
    -----END CERTIFICATE-----
`)

	connections, loadErr := services.LoadConnections(fixturePath)
	if loadErr != nil {
		testingInstance.Fatalf("load connections: %v", loadErr)
	}
	if connections.Postgresql == nil || connections.Kafka == nil || connections.Opensearch == nil {
		testingInstance.Fatalf("expected all sections populated, got %+v", connections)
	}
	if connections.Postgresql.DatabaseName != "datahub" {
		testingInstance.Fatalf("unexpected database name %q", connections.Postgresql.DatabaseName)
	}
	if connections.Kafka.BootstrapServer != "broker.example.com:9092" {
		testingInstance.Fatalf("unexpected bootstrap server %q", connections.Kafka.BootstrapServer)
	}
	if connections.Opensearch.TLSCertificateAuthority == "" {
		testingInstance.Fatalf("expected opensearch certificate authority to be populated")
	}
}

func TestLoadConnectionsAllowsMissingSections(testingInstance *testing.T) {
	fixturePath := writeConnectionsFixture(testingInstance, `
kafka:
  bootstrap_server: broker.example.com:9092
  username: kafka_user
  password: kafka-secret
`)

	connections, loadErr := services.LoadConnections(fixturePath)
	if loadErr != nil {
		testingInstance.Fatalf("load connections: %v", loadErr)
	}
	if connections.Postgresql != nil {
		testingInstance.Fatalf("expected postgresql section to be absent")
	}
	if connections.Kafka == nil {
		testingInstance.Fatalf("expected kafka section to be present")
	}
}

func TestLoadConnectionsRejectsMissingFile(testingInstance *testing.T) {
	if _, loadErr := services.LoadConnections(filepath.Join(testingInstance.TempDir(), "absent.yaml")); loadErr == nil {
		testingInstance.Fatalf("expected an error for a missing connections file")
	}
}

func TestLoadConnectionsRejectsMalformedDocument(testingInstance *testing.T) {
	fixturePath := writeConnectionsFixture(testingInstance, "kafka: [not a mapping")
	if _, loadErr := services.LoadConnections(fixturePath); loadErr == nil {
		testingInstance.Fatalf("expected an error for a malformed connections file")
	}
}
