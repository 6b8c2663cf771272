package migration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationsAreOrderedAndReversible(t *testing.T) {
	m := NewMigrator(nil)

	seen := make(map[int]bool)
	previous := 0
	for _, migration := range m.migrations {
		assert.False(t, seen[migration.Version], "versão duplicada %d", migration.Version)
		seen[migration.Version] = true

		assert.Greater(t, migration.Version, previous)
		previous = migration.Version

		assert.NotEmpty(t, migration.Name)
		assert.NotEmpty(t, strings.TrimSpace(migration.Up))
		assert.NotEmpty(t, strings.TrimSpace(migration.Down))
	}
}

func TestTaskAllocationsCascadeOnDelete(t *testing.T) {
	m := NewMigrator(nil)
	assert.Contains(t, m.migrations[0].Up, "REFERENCES allocation_requests(id) ON DELETE CASCADE")
}
