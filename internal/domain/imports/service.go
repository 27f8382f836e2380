package imports

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"payrolladmin/internal/domain/payroll"
)

// RecordWriter is the part of the payroll store an import needs.
type RecordWriter interface {
	InsertBatch(ctx context.Context, tenantID string, records []payroll.Record) (int, error)
	KnownEmployees(ctx context.Context, tenantID string, ids []string) (map[string]bool, error)
	KnownEmployers(ctx context.Context, tenantID string, ids []string) (map[string]bool, error)
}

type Service struct {
	store RecordWriter
}

func NewService(store RecordWriter) *Service {
	return &Service{store: store}
}

// Import parses and validates the whole file before writing anything.
// When any row is invalid nothing is inserted and the errors are returned
// in the result.
func (s *Service) Import(ctx context.Context, tenantID string, r io.Reader) (Result, int, error) {
	result, err := Parse(r)
	if err != nil {
		return Result{}, 0, err
	}
	if len(result.Valid) > 0 {
		if err := s.checkReferences(ctx, tenantID, &result); err != nil {
			return Result{}, 0, err
		}
	}
	if result.HasErrors() {
		return result, 0, nil
	}
	if len(result.Valid) == 0 {
		return result, 0, nil
	}

	inserted, err := s.store.InsertBatch(ctx, tenantID, result.Valid)
	if err != nil {
		return Result{}, 0, fmt.Errorf("insert imported records: %w", err)
	}
	slog.Info("payroll import applied", "tenantId", tenantID, "rows", inserted)
	return result, inserted, nil
}

// checkReferences reports rows pointing at employees or employers the
// tenant does not have and drops them from Valid.
func (s *Service) checkReferences(ctx context.Context, tenantID string, result *Result) error {
	var employeeIDs, employerIDs []string
	for _, rec := range result.Valid {
		employeeIDs = append(employeeIDs, rec.EmployeeID)
		employerIDs = append(employerIDs, rec.EmployerID)
	}
	employees, err := s.store.KnownEmployees(ctx, tenantID, employeeIDs)
	if err != nil {
		return err
	}
	employers, err := s.store.KnownEmployers(ctx, tenantID, employerIDs)
	if err != nil {
		return err
	}

	var valid []payroll.Record
	var validRows []int
	for i, rec := range result.Valid {
		rowNum := result.validRows[i]
		ok := true
		if !employees[rec.EmployeeID] {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Field: "employee_id", Message: "unknown employee"})
			ok = false
		}
		if !employers[rec.EmployerID] {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Field: "employer_id", Message: "unknown employer"})
			ok = false
		}
		if ok {
			valid = append(valid, rec)
			validRows = append(validRows, rowNum)
		}
	}
	result.Valid = valid
	result.validRows = validRows
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Row < result.Errors[j].Row })
	return nil
}
