package payroll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrolladmin/internal/platform/db/dbtest"
)

func TestStoreSoftDeletedRecordsAreHidden(t *testing.T) {
	pool := dbtest.Start(t)
	fx := dbtest.Seed(t, pool)
	ctx := context.Background()

	store := NewStore(pool)
	_, err := store.InsertBatch(ctx, fx.TenantID, []Record{{
		EmployeeID: fx.EmployeeID,
		EmployerID: fx.EmployerID,
		PeriodFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodTo:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		NetPayment: amount("1000"),
	}})
	require.NoError(t, err)

	rows, _, err := store.List(ctx, fx.TenantID, ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID

	_, err = store.Get(ctx, fx.TenantID, id)
	require.NoError(t, err)

	affected, err := store.SoftDelete(ctx, fx.TenantID, []string{id})
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	_, err = store.Get(ctx, fx.TenantID, id)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	resolved, err := store.ResolveIDs(ctx, fx.TenantID, []string{id})
	require.NoError(t, err)
	assert.Empty(t, resolved)

	_, err = store.Restore(ctx, fx.TenantID, []string{id})
	require.NoError(t, err)
	rec, err := store.Get(ctx, fx.TenantID, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
}
