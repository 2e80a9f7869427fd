// Package config holds the daemon configuration loaded from environment
// variables via koanf.
package config

// StoreFile selects the file-backed pending store.
const StoreFile = "file"

// StorePostgres selects the PostgreSQL-backed pending store.
const StorePostgres = "postgres"

// DefaultStorePath is the default location of the file-backed pending store.
const DefaultStorePath = "data/pending_transactions.json"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// ListenAddr is the HTTP listen address for the consumer boundary.
	// Environment variable: TXNRELAY_ADDR
	ListenAddr string `koanf:"TXNRELAY_ADDR"`

	// Store selects the pending-store backend: "file" or "postgres".
	// Environment variable: TXNRELAY_STORE
	Store string `koanf:"TXNRELAY_STORE"`

	// StorePath is the file path used by the file store backend.
	// Environment variable: TXNRELAY_STORE_PATH
	StorePath string `koanf:"TXNRELAY_STORE_PATH"`

	// StdinFeed enables reading newline-delimited JSON raw messages from
	// standard input in addition to the HTTP ingest boundary.
	// Environment variable: TXNRELAY_STDIN
	StdinFeed bool `koanf:"TXNRELAY_STDIN"`

	// Postgres holds the PostgreSQL connection configuration, used when
	// Store is "postgres".
	Postgres PostgresConfig
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// ApplyDefaults fills unset fields with working defaults.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Store == "" {
		c.Store = StoreFile
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
}
