package auth

const (
	RoleAdmin          = "admin"
	RolePayrollManager = "payroll_manager"
	RoleEmployee       = "employee"
)

const (
	PermPayrollRead        = "payroll.read"
	PermPayrollWrite       = "payroll.write"
	PermPayslipsGenerate   = "payslips.generate"
	PermPayslipsSend       = "payslips.send"
	PermPeriodsClose       = "periods.close"
	PermGDPRSelf           = "gdpr.self"
	PermIntegrationsManage = "integrations.manage"
	PermAuditRead          = "audit.read"
)

var DefaultPermissions = []string{
	PermPayrollRead,
	PermPayrollWrite,
	PermPayslipsGenerate,
	PermPayslipsSend,
	PermPeriodsClose,
	PermGDPRSelf,
	PermIntegrationsManage,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermGDPRSelf,
	},
	RolePayrollManager: {
		PermPayrollRead,
		PermPayrollWrite,
		PermPayslipsGenerate,
		PermPayslipsSend,
		PermPeriodsClose,
		PermGDPRSelf,
	},
	RoleAdmin: {
		PermPayrollRead,
		PermPayrollWrite,
		PermPayslipsGenerate,
		PermPayslipsSend,
		PermPeriodsClose,
		PermGDPRSelf,
		PermIntegrationsManage,
		PermAuditRead,
	},
}

// UserContext is the authenticated caller attached to a request.
type UserContext struct {
	UserID   string
	TenantID string
	RoleName string
	Email    string
}
