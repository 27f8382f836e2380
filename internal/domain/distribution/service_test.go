package distribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payrolladmin/internal/domain/payroll"
	"payrolladmin/internal/platform/email"
)

type stubRecords map[string]payroll.Record

func (s stubRecords) Get(_ context.Context, _ string, id string) (payroll.Record, error) {
	r, ok := s[id]
	if !ok {
		return payroll.Record{}, payroll.ErrRecordNotFound
	}
	return r, nil
}

type stubObjects struct {
	files map[string][]byte
}

func (s stubObjects) KeyFromURL(u string) (string, string, error) {
	return "Payroll", u, nil
}

func (s stubObjects) Read(_ context.Context, _ string, key string) ([]byte, error) {
	data, ok := s.files[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg email.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type memoryEvents struct {
	events []SendEvent
}

func (m *memoryEvents) Append(_ context.Context, _ string, evt SendEvent) error {
	evt.CreatedAt = time.Now()
	m.events = append(m.events, evt)
	return nil
}

func (m *memoryEvents) Last(_ context.Context, _ string, batchID string) (SendEvent, error) {
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].BatchID == batchID {
			return m.events[i], nil
		}
	}
	return SendEvent{}, ErrNoSendEvents
}

func (m *memoryEvents) List(_ context.Context, _ string, batchID string) ([]SendEvent, error) {
	var out []SendEvent
	for _, e := range m.events {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestSendRecordsEventsPerAttempt(t *testing.T) {
	records := stubRecords{
		"a": {ID: "a", EmployeeName: "Alice", EmployeeEmail: "alice@acme.test", PayslipURL: "alice.pdf"},
		"b": {ID: "b", EmployeeName: "Bob", EmployeeEmail: "bob@acme.test", PayslipURL: "bob.pdf"},
		"c": {ID: "c", EmployeeName: "Carol", PayslipURL: "carol.pdf"},
		"d": {ID: "d", EmployeeName: "Dan", EmployeeEmail: "dan@acme.test"},
		"e": {ID: "e", EmployeeName: "Eve", EmployeeEmail: "eve@acme.test", PayslipURL: "missing.pdf"},
	}
	objects := stubObjects{files: map[string][]byte{"alice.pdf": []byte("%PDF-a"), "bob.pdf": []byte("%PDF-b")}}
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(m email.Message) bool { return m.To == "alice@acme.test" })).Return("<m1@acme.test>", nil)
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(m email.Message) bool { return m.To == "bob@acme.test" })).Return("", errors.New("mailbox full"))
	events := &memoryEvents{}

	svc := NewService(records, objects, mailer, events, "payroll@acme.test")
	results, err := svc.Send(context.Background(), "tenant", []string{"a", "b", "c", "d", "e", "zz", "a"})
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.Equal(t, SendResult{BatchID: "a", OK: true, Status: StatusSent, MessageID: "<m1@acme.test>"}, results[0])
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Contains(t, results[1].Message, "mailbox full")
	assert.Equal(t, "employee email missing", results[2].Message)
	assert.Equal(t, "payslip not generated", results[3].Message)
	assert.Contains(t, results[4].Message, "payslip file unavailable")
	assert.Equal(t, "record not found", results[5].Message)

	require.Len(t, events.events, 3)
	last, err := svc.LastSent(context.Background(), "tenant", "a")
	require.NoError(t, err)
	assert.Equal(t, "<m1@acme.test>", last.ProviderMessageID)

	_, err = svc.LastSent(context.Background(), "tenant", "c")
	require.ErrorIs(t, err, ErrNoSendEvents)
	mailer.AssertNumberOfCalls(t, "Send", 2)
}

func TestSendAttachesPayslip(t *testing.T) {
	records := stubRecords{"a": {ID: "a", EmployeeEmail: "alice@acme.test", PayslipURL: "payslips/alice-tok.pdf"}}
	objects := stubObjects{files: map[string][]byte{"payslips/alice-tok.pdf": []byte("%PDF-a")}}
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return("<id>", nil)

	svc := NewService(records, objects, mailer, &memoryEvents{}, "payroll@acme.test")
	_, err := svc.Send(context.Background(), "tenant", []string{"a"})
	require.NoError(t, err)

	msg := mailer.Calls[0].Arguments.Get(1).(email.Message)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "alice-tok.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-a"), msg.Attachments[0].Data)
	assert.Equal(t, "payroll@acme.test", msg.From)
}
