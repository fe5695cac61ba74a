package database

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens a database file shared by several relay processes.
// Write transactions take the file lock up front and wait up to five
// seconds for a competing writer instead of failing with SQLITE_BUSY.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// to cache prepared sql statement, which maps query string to stmt.
type StmtCache struct {
	db *sql.DB
	m  sync.Map
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db}
}

func (sc *StmtCache) DB() *sql.DB {
	return sc.db
}

func (sc *StmtCache) Prepare(query string) (*sql.Stmt, error) {
	if cached, ok := sc.m.Load(query); ok {
		return cached.(*sql.Stmt), nil
	}

	stmt, err := sc.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	// another goroutine may have raced us, keep the first one
	actual, loaded := sc.m.LoadOrStore(query, stmt)
	if loaded {
		_ = stmt.Close()
	}
	return actual.(*sql.Stmt), nil
}

func (sc *StmtCache) MustPrepare(query string) *sql.Stmt {
	stmt, err := sc.Prepare(query)
	if err != nil {
		panic(err)
	}
	return stmt
}

func (sc *StmtCache) Clear() {
	sc.m.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		sc.m.Delete(k)
		return true
	})
}
