//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru"
	"github.com/lib/pq"
)

const defaultSeriesCacheSize = 16384

// pgSink keeps series in two tables: <prefix>series maps a series
// name to an id, <prefix>point holds the values, ordered by id.
type pgSink struct {
	dbConn           *sql.DB
	sql1, sql2, sql3 *sql.Stmt
	prefix           string
	ids              *lru.Cache // series name -> id
}

// NewPostgres connects to Postgres, creates the tables if they do not
// exist and prepares the statements. A cacheSize of 0 or less means
// the default.
func NewPostgres(connectString, prefix string, cacheSize int) (*pgSink, error) {
	dbConn, err := sql.Open("postgres", connectString)
	if err != nil {
		return nil, err
	}
	if err := dbConn.Ping(); err != nil {
		dbConn.Close()
		return nil, err
	}
	p, err := initPgSink(dbConn, prefix, cacheSize)
	if err != nil {
		dbConn.Close()
		return nil, err
	}
	return p, nil
}

func initPgSink(dbConn *sql.DB, prefix string, cacheSize int) (*pgSink, error) {
	if cacheSize <= 0 {
		cacheSize = defaultSeriesCacheSize
	}
	ids, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	p := &pgSink{dbConn: dbConn, prefix: prefix, ids: ids}
	if err := p.createTablesIfNotExist(); err != nil {
		return nil, err
	}
	if err := p.prepareSqlStatements(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pgSink) seriesTable() string { return pq.QuoteIdentifier(p.prefix + "series") }
func (p *pgSink) pointTable() string  { return pq.QuoteIdentifier(p.prefix + "point") }

func (p *pgSink) createTablesIfNotExist() error {
	create_sql := `
       CREATE TABLE IF NOT EXISTS %[1]s (
       id SERIAL NOT NULL PRIMARY KEY,
       name TEXT NOT NULL UNIQUE);

       CREATE TABLE IF NOT EXISTS %[2]s (
       id BIGSERIAL NOT NULL PRIMARY KEY,
       series_id INT NOT NULL,
       t TIMESTAMPTZ NOT NULL DEFAULT now(),
       value NUMERIC(20,2) NOT NULL);

       CREATE INDEX IF NOT EXISTS %[3]s ON %[2]s (series_id, id);
    `
	idx := pq.QuoteIdentifier(p.prefix + "point_series_id_idx")
	if _, err := p.dbConn.Exec(fmt.Sprintf(create_sql, p.seriesTable(), p.pointTable(), idx)); err != nil {
		log.Printf("ERROR: initial CREATE TABLE failed: %v", err)
		return err
	}
	return nil
}

func (p *pgSink) prepareSqlStatements() error {
	var err error
	if p.sql1, err = p.dbConn.Prepare(fmt.Sprintf("INSERT INTO %[1]s AS s (name) VALUES ($1) "+
		"ON CONFLICT (name) DO UPDATE SET name = s.name RETURNING id", p.seriesTable())); err != nil {
		return err
	}
	if p.sql2, err = p.dbConn.Prepare(fmt.Sprintf("INSERT INTO %[1]s (series_id, value) VALUES ($1, $2)", p.pointTable())); err != nil {
		return err
	}
	if p.sql3, err = p.dbConn.Prepare(fmt.Sprintf("DELETE FROM %[1]s WHERE series_id = $1 AND id < "+
		"(SELECT min(id) FROM (SELECT id FROM %[1]s WHERE series_id = $1 ORDER BY id DESC LIMIT $2) keep)", p.pointTable())); err != nil {
		return err
	}
	return nil
}

func (p *pgSink) seriesId(ctx context.Context, series string) (int64, error) {
	if id, ok := p.ids.Get(series); ok {
		return id.(int64), nil
	}
	var id int64
	if err := p.sql1.QueryRowContext(ctx, series).Scan(&id); err != nil {
		return 0, fmt.Errorf("series %q: %v", series, err)
	}
	p.ids.Add(series, id)
	return id, nil
}

func (p *pgSink) Append(ctx context.Context, series string, value float64) error {
	id, err := p.seriesId(ctx, series)
	if err != nil {
		return err
	}
	_, err = p.sql2.ExecContext(ctx, id, FormatValue(value))
	return err
}

func (p *pgSink) TruncateToLast(ctx context.Context, series string, count int) error {
	id, err := p.seriesId(ctx, series)
	if err != nil {
		return err
	}
	_, err = p.sql3.ExecContext(ctx, id, count)
	return err
}

func (p *pgSink) Close() error {
	for _, stmt := range []*sql.Stmt{p.sql1, p.sql2, p.sql3} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return p.dbConn.Close()
}
