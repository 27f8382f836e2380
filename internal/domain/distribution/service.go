package distribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"payrolladmin/internal/domain/payroll"
	"payrolladmin/internal/domain/payslip"
	"payrolladmin/internal/platform/email"
	"payrolladmin/internal/platform/metrics"
)

type RecordGetter interface {
	Get(ctx context.Context, tenantID, id string) (payroll.Record, error)
}

// ObjectReader fetches a stored payslip by its public URL.
type ObjectReader interface {
	KeyFromURL(publicURL string) (bucket, key string, err error)
	Read(ctx context.Context, bucket, key string) ([]byte, error)
}

type Service struct {
	records RecordGetter
	objects ObjectReader
	mailer  email.Mailer
	store   StoreAPI
	from    string
}

func NewService(records RecordGetter, objects ObjectReader, mailer email.Mailer, store StoreAPI, from string) *Service {
	return &Service{records: records, objects: objects, mailer: mailer, store: store, from: from}
}

// Send emails each record's generated payslip to the employee. Every
// attempt that reaches an address is logged as a SendEvent; one failure
// does not stop the rest.
func (s *Service) Send(ctx context.Context, tenantID string, ids []string) ([]SendResult, error) {
	ids = payslip.DedupeIDs(ids)
	if len(ids) == 0 {
		return nil, payroll.ErrNoIDs
	}
	results := make([]SendResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, s.sendOne(ctx, tenantID, id))
	}
	return results, nil
}

func (s *Service) sendOne(ctx context.Context, tenantID, id string) SendResult {
	res := SendResult{BatchID: id}
	rec, err := s.records.Get(ctx, tenantID, id)
	if errors.Is(err, payroll.ErrRecordNotFound) {
		res.Message = "record not found"
		return res
	}
	if err != nil {
		res.Message = fmt.Sprintf("fetch record failed: %v", err)
		return res
	}
	if rec.PayslipURL == "" {
		res.Message = "payslip not generated"
		return res
	}
	if rec.EmployeeEmail == "" {
		res.Message = "employee email missing"
		return res
	}

	evt := SendEvent{BatchID: id, Recipient: rec.EmployeeEmail}
	messageID, sendErr := s.deliver(ctx, rec)
	if sendErr != nil {
		evt.Status = StatusFailed
		evt.Error = sendErr.Error()
		res.Message = sendErr.Error()
	} else {
		evt.Status = StatusSent
		evt.ProviderMessageID = messageID
		res.OK = true
		res.MessageID = messageID
	}
	res.Status = evt.Status
	metrics.EmailsSent.WithLabelValues(evt.Status).Inc()

	if err := s.store.Append(ctx, tenantID, evt); err != nil {
		slog.Warn("send event append failed", "tenantId", tenantID, "recordId", id, "err", err)
	}
	return res
}

func (s *Service) deliver(ctx context.Context, rec payroll.Record) (string, error) {
	bucket, key, err := s.objects.KeyFromURL(rec.PayslipURL)
	if err != nil {
		return "", fmt.Errorf("payslip file unavailable: %w", err)
	}
	pdf, err := s.objects.Read(ctx, bucket, key)
	if err != nil {
		return "", fmt.Errorf("payslip file unavailable: %w", err)
	}
	period := rec.PeriodTo.Format("January 2006")
	msg := email.Message{
		From:    s.from,
		To:      rec.EmployeeEmail,
		Subject: fmt.Sprintf("Your payslip for %s", period),
		Body: fmt.Sprintf("Hello %s,\r\n\r\nYour payslip from %s for the period ending %s is attached.\r\n",
			rec.EmployeeName, rec.EmployerName, rec.PeriodTo.Format("02 Jan 2006")),
		Attachments: []email.Attachment{{Filename: path.Base(key), ContentType: "application/pdf", Data: pdf}},
	}
	id, err := s.mailer.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("send failed: %w", err)
	}
	return id, nil
}

func (s *Service) LastSent(ctx context.Context, tenantID, batchID string) (SendEvent, error) {
	return s.store.Last(ctx, tenantID, batchID)
}

func (s *Service) Events(ctx context.Context, tenantID, batchID string) ([]SendEvent, error) {
	return s.store.List(ctx, tenantID, batchID)
}
