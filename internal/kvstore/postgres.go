package kvstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the connection parameters for a PostgresStore.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "zbridge",
		Database: "zbridge",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// PostgresStore persists key bundles in a single table, one row per
// account.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("kvstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("kvstore: ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Put(ctx context.Context, b *KeyBundle) error {
	query := `
		INSERT INTO key_bundles (
			account_id,
			spending_key_ct, spending_key_salt, spending_key_iv,
			viewing_key_ct, viewing_key_salt, viewing_key_iv,
			transparent_key_ct, transparent_key_salt, transparent_key_iv,
			t_addr, z_addr
		) VALUES ($1, $2,$3,$4, $5,$6,$7, $8,$9,$10, $11,$12)
		ON CONFLICT (account_id) DO UPDATE SET
			spending_key_ct = EXCLUDED.spending_key_ct,
			spending_key_salt = EXCLUDED.spending_key_salt,
			spending_key_iv = EXCLUDED.spending_key_iv,
			viewing_key_ct = EXCLUDED.viewing_key_ct,
			viewing_key_salt = EXCLUDED.viewing_key_salt,
			viewing_key_iv = EXCLUDED.viewing_key_iv,
			transparent_key_ct = EXCLUDED.transparent_key_ct,
			transparent_key_salt = EXCLUDED.transparent_key_salt,
			transparent_key_iv = EXCLUDED.transparent_key_iv,
			t_addr = EXCLUDED.t_addr,
			z_addr = EXCLUDED.z_addr
	`
	_, err := s.pool.Exec(ctx, query,
		b.AccountID,
		b.SpendingKeyEnc.Ciphertext, b.SpendingKeyEnc.Salt[:], b.SpendingKeyEnc.IV[:],
		b.ViewingKeyEnc.Ciphertext, b.ViewingKeyEnc.Salt[:], b.ViewingKeyEnc.IV[:],
		b.TransparentKeyEnc.Ciphertext, b.TransparentKeyEnc.Salt[:], b.TransparentKeyEnc.IV[:],
		b.TAddr, b.ZAddr,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, accountID string) (*KeyBundle, error) {
	query := `
		SELECT account_id,
			spending_key_ct, spending_key_salt, spending_key_iv,
			viewing_key_ct, viewing_key_salt, viewing_key_iv,
			transparent_key_ct, transparent_key_salt, transparent_key_iv,
			t_addr, z_addr
		FROM key_bundles WHERE account_id = $1
	`
	var b KeyBundle
	var sSalt, sIV, vSalt, vIV, tSalt, tIV []byte
	row := s.pool.QueryRow(ctx, query, accountID)
	err := row.Scan(
		&b.AccountID,
		&b.SpendingKeyEnc.Ciphertext, &sSalt, &sIV,
		&b.ViewingKeyEnc.Ciphertext, &vSalt, &vIV,
		&b.TransparentKeyEnc.Ciphertext, &tSalt, &tIV,
		&b.TAddr, &b.ZAddr,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(b.SpendingKeyEnc.Salt[:], sSalt)
	copy(b.SpendingKeyEnc.IV[:], sIV)
	copy(b.ViewingKeyEnc.Salt[:], vSalt)
	copy(b.ViewingKeyEnc.IV[:], vIV)
	copy(b.TransparentKeyEnc.Salt[:], tSalt)
	copy(b.TransparentKeyEnc.IV[:], tIV)
	return &b, nil
}

func (s *PostgresStore) Delete(ctx context.Context, accountID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM key_bundles WHERE account_id = $1`, accountID)
	return err
}

var _ Store = (*PostgresStore)(nil)
