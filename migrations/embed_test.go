package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			ups[strings.TrimSuffix(f, ".up.sql")] = true
		case strings.HasSuffix(f, ".down.sql"):
			downs[strings.TrimSuffix(f, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", f)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitCreatesCoreTables(t *testing.T) {
	body, err := fs.ReadFile(FS, "000001_init.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"users", "doctors", "doctor_slots", "appointments", "reviews", "audit_events"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
	assert.Contains(t, string(body), "CHECK (amount = commission + payout)")
}

func TestSlotUniquenessIgnoresCancelledAppointments(t *testing.T) {
	body, err := fs.ReadFile(FS, "000001_init.up.sql")
	require.NoError(t, err)
	schema := string(body)
	assert.NotContains(t, schema, "slot_id UUID UNIQUE")
	assert.Contains(t, schema,
		"CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot ON appointments (slot_id) WHERE status <> 'cancelled';")

	down, err := fs.ReadFile(FS, "000001_init.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP INDEX IF EXISTS appointments_active_slot;")
}
