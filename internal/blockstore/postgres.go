package blockstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	_ "github.com/lib/pq"

	"github.com/keato/btcnode/internal/metrics"
)

// Config holds Postgres connection parameters. It can be loaded from a JSON
// file and overridden by environment variables.
type Config struct {
	DBHost     string `json:"db_host"`
	DBPort     int    `json:"db_port"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
}

// LoadConfig reads a JSON config file and applies DB_* environment
// variable overrides on top of it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading block store config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing block store config file: %w", err)
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.DBHost = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.DBName = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %s", v)
		}
		cfg.DBPort = port
	}

	return &cfg, nil
}

// Postgres is a durable Store backed by a blocks table keyed by hash, with
// a height index for locator construction.
type Postgres struct {
	conn *sql.DB
}

// NewPostgres opens a connection and ensures the schema exists.
func NewPostgres(cfg *Config) (*Postgres, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening block store database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("pinging block store database: %w", err)
	}

	p := &Postgres{conn: conn}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema() error {
	_, err := p.conn.Exec(`
		CREATE TABLE IF NOT EXISTS blocks (
			hash        BYTEA PRIMARY KEY,
			height      BIGINT NOT NULL UNIQUE,
			raw_payload BYTEA NOT NULL,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_blocks_height ON blocks (height);
	`)
	if err != nil {
		return fmt.Errorf("ensuring block store schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.conn.Close()
}

func (p *Postgres) recordDuration(op string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (p *Postgres) recordError(op string) {
	metrics.BlockStoreErrors.WithLabelValues(op).Inc()
}

func (p *Postgres) Height() int64 {
	start := time.Now()
	defer p.recordDuration("height", start)

	var height sql.NullInt64
	if err := p.conn.QueryRow(`SELECT MAX(height) FROM blocks`).Scan(&height); err != nil {
		p.recordError("height")
		return -1
	}
	if !height.Valid {
		return -1
	}
	return height.Int64
}

func (p *Postgres) BlockLocators() ([]chainhash.Hash, error) {
	start := time.Now()
	defer p.recordDuration("block_locators", start)

	tip := p.Height()
	if tip < 0 {
		return nil, nil
	}

	var locators []chainhash.Hash
	step := int64(1)
	height := tip
	for height >= 0 {
		hash, ok, err := p.GetHashAtHeight(height)
		if err != nil {
			p.recordError("block_locators")
			return nil, err
		}
		if ok {
			locators = append(locators, hash)
		}
		if len(locators) >= 10 {
			step *= 2
		}
		height -= step
	}
	genesis, ok, err := p.GetHashAtHeight(0)
	if err != nil {
		p.recordError("block_locators")
		return nil, err
	}
	if ok && (len(locators) == 0 || locators[len(locators)-1] != genesis) {
		locators = append(locators, genesis)
	}
	return locators, nil
}

func (p *Postgres) GetHashAtHeight(height int64) (chainhash.Hash, bool, error) {
	start := time.Now()
	defer p.recordDuration("get_hash_at_height", start)

	var raw []byte
	err := p.conn.QueryRow(`SELECT hash FROM blocks WHERE height = $1`, height).Scan(&raw)
	if err == sql.ErrNoRows {
		return chainhash.Hash{}, false, nil
	}
	if err != nil {
		p.recordError("get_hash_at_height")
		return chainhash.Hash{}, false, err
	}
	var h chainhash.Hash
	copy(h[:], raw)
	return h, true, nil
}

func (p *Postgres) GetHeight(hash chainhash.Hash) (int64, bool, error) {
	start := time.Now()
	defer p.recordDuration("get_height", start)

	var height int64
	err := p.conn.QueryRow(`SELECT height FROM blocks WHERE hash = $1`, hash[:]).Scan(&height)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		p.recordError("get_height")
		return 0, false, err
	}
	return height, true, nil
}

func (p *Postgres) Has(hash chainhash.Hash) (bool, error) {
	start := time.Now()
	defer p.recordDuration("has", start)

	var exists bool
	err := p.conn.QueryRow(`SELECT EXISTS(SELECT 1 FROM blocks WHERE hash = $1)`, hash[:]).Scan(&exists)
	if err != nil {
		p.recordError("has")
		return false, err
	}
	return exists, nil
}

func (p *Postgres) Get(hash chainhash.Hash) ([]byte, bool, error) {
	start := time.Now()
	defer p.recordDuration("get", start)

	var raw []byte
	err := p.conn.QueryRow(`SELECT raw_payload FROM blocks WHERE hash = $1`, hash[:]).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		p.recordError("get")
		return nil, false, err
	}
	return raw, true, nil
}

func (p *Postgres) Insert(hash chainhash.Hash, raw []byte) error {
	start := time.Now()
	defer p.recordDuration("insert", start)

	nextHeight := p.Height() + 1
	_, err := p.conn.Exec(
		`INSERT INTO blocks (hash, height, raw_payload) VALUES ($1, $2, $3) ON CONFLICT (hash) DO NOTHING`,
		hash[:], nextHeight, raw,
	)
	if err != nil {
		p.recordError("insert")
		return fmt.Errorf("inserting block: %w", err)
	}
	return nil
}
