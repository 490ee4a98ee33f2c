// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/wfunc/chessrelay/models"
)

// PostgreSQL is the plain database/sql implementation of Database.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            join_key VARCHAR(8) NOT NULL,
            winner VARCHAR(16) NOT NULL,
            reason VARCHAR(32) NOT NULL,
            moves INT NOT NULL DEFAULT 0,
            duration INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	return err
}

func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	_, err := p.db.Exec(`
        INSERT INTO game_records (join_key, winner, reason, moves, duration)
        VALUES ($1, $2, $3, $4, $5)`,
		record.JoinKey, record.Winner, record.Reason, record.Moves, record.Duration,
	)
	return err
}

func (p *PostgreSQL) RecentGameRecords(limit int) ([]models.GameRecord, error) {
	rows, err := p.db.Query(`
        SELECT join_key, winner, reason, moves, duration, created_at
        FROM game_records
        ORDER BY created_at DESC
        LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var r models.GameRecord
		if err := rows.Scan(&r.JoinKey, &r.Winner, &r.Reason, &r.Moves, &r.Duration, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
