// Package testdb provides in-memory databases for tests.
package testdb

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/devnotes/devnotes/internal/db"
)

// TestMasterKey is a fixed SQLCipher key so encrypted-path code runs in tests.
const TestMasterKey = "2f7a1f3e6bb84c9d8e5a0c1b2d3e4f5a6b7c8d9e0f1a2b3c4d5e6f708192a3b4"

var dbCounter atomic.Int64

// New creates an isolated in-memory database with the schema applied. Each
// call gets its own database, so parallel and rapid-driven tests never share
// state. The narrow interface accepts both testing.TB and rapid.T.
func New(t interface {
	Fatalf(format string, args ...any)
}) *db.DB {
	name := fmt.Sprintf("devnotes-test-%d", dbCounter.Add(1))
	d, err := db.OpenInMemory(name, TestMasterKey)
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	if err := d.ApplySchema(context.Background()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return d
}
