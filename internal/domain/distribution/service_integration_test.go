package distribution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payrolladmin/internal/domain/payroll"
	"payrolladmin/internal/platform/db/dbtest"
)

func TestSendSkipsSoftDeletedRecordIntegration(t *testing.T) {
	pool := dbtest.Start(t)
	fx := dbtest.Seed(t, pool)
	ctx := context.Background()

	records := payroll.NewStore(pool)
	_, err := records.InsertBatch(ctx, fx.TenantID, []payroll.Record{{
		EmployeeID: fx.EmployeeID,
		EmployerID: fx.EmployerID,
		PeriodFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodTo:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Currency:   "AED",
	}})
	require.NoError(t, err)
	rows, _, err := records.List(ctx, fx.TenantID, payroll.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID
	require.NoError(t, records.SaveArtifact(ctx, fx.TenantID, id, payroll.Artifact{
		Token:       "tok",
		URL:         "payslips/jane-doe-tok.pdf",
		Method:      "browser",
		GeneratedAt: time.Now(),
	}))
	_, err = records.SoftDelete(ctx, fx.TenantID, []string{id})
	require.NoError(t, err)

	mailer := &mockMailer{}
	events := &memoryEvents{}
	objects := stubObjects{files: map[string][]byte{"payslips/jane-doe-tok.pdf": []byte("%PDF-1.4")}}
	svc := NewService(records, objects, mailer, events, "payroll@acme.test")

	results, err := svc.Send(ctx, fx.TenantID, []string{id})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Equal(t, "record not found", results[0].Message)
	assert.Empty(t, events.events)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
