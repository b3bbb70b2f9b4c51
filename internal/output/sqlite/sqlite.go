// Package sqlite archives crawl results to a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"product-crawler/internal/models"
)

const createResults = `CREATE TABLE IF NOT EXISTS results (
	id integer not null primary key,
	domain text not null,
	product_url text,
	status text not null,
	crawled_at timestamp not null
);`

const insertResult = "INSERT INTO results(domain, product_url, status, crawled_at) VALUES(?, ?, ?, ?);"

// Archive appends crawl results to the results table. A domain with no
// product URLs is stored as a single row with a NULL product_url.
//
// The sqlite3 driver does not allow concurrent writers, so writes are
// serialized; an Archive is safe to share between goroutines.
type Archive struct {
	db     *sql.DB
	dbLock sync.Mutex
}

// Open creates the database file and table if needed.
func Open(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New("sqlite database file not set")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(createResults); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create results table: %w", err)
	}
	return &Archive{db: db}, nil
}

// WriteResults stores every result in one transaction.
func (a *Archive) WriteResults(ctx context.Context, results []models.CrawlResult, crawledAt time.Time) (err error) {
	a.dbLock.Lock()
	defer a.dbLock.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertResult)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	at := crawledAt.UTC()
	for _, res := range results {
		if len(res.ProductURLs) == 0 {
			if _, err = stmt.ExecContext(ctx, res.Domain, nil, string(res.Status), at); err != nil {
				return fmt.Errorf("insert %s: %w", res.Domain, err)
			}
			continue
		}
		for _, u := range res.ProductURLs {
			if _, err = stmt.ExecContext(ctx, res.Domain, u, string(res.Status), at); err != nil {
				return fmt.Errorf("insert %s: %w", u, err)
			}
		}
	}
	return tx.Commit()
}

// ProductURLs returns the archived product URLs for domain in insertion order.
func (a *Archive) ProductURLs(ctx context.Context, domain string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT product_url FROM results WHERE domain = ? AND product_url IS NOT NULL ORDER BY id;", domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Domains returns each archived domain once.
func (a *Archive) Domains(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT DISTINCT domain FROM results ORDER BY domain;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
