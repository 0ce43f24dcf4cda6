// Package database provides PostgreSQL fixtures for integration tests.
package database

import (
	"testing"

	"github.com/codeready-toolchain/crucible/pkg/database"
	"github.com/codeready-toolchain/crucible/test/util"
)

// NewTestClient creates a test database client backed by an isolated,
// migrated schema.
// In CI (when CI_DATABASE_URL is set): connects to the external PostgreSQL
// service container. In local dev: spins up a testcontainer.
// The schema and connections are cleaned up when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	db := util.SetupTestDatabase(t)
	return database.NewClientFromDB(db)
}
