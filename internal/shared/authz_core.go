package shared

// Permission keys guarding the work-log resource categories. Each key carries
// independent read and write grants in the role matrix.
const (
	PermTaskEntry      = "task.entry"
	PermTaskReport     = "task.report"
	PermProjectMaster  = "project.master"
	PermServiceMaster  = "service.master"
	PermCostGroup      = "costgroup.master"
	PermReportApproval = "report.approval"

	PermMemberManagement = "member.management"
	PermRoleManagement   = "role.management"
)

// CoreKeys lists every permission key known to the platform.
func CoreKeys() []string {
	return []string{
		PermTaskEntry,
		PermTaskReport,
		PermProjectMaster,
		PermServiceMaster,
		PermCostGroup,
		PermReportApproval,
		PermMemberManagement,
		PermRoleManagement,
	}
}
