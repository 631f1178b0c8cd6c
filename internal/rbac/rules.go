package rbac

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

const (
	PermExamView       = "exam:view"
	PermExamCreate     = "exam:create"
	PermExamPublish    = "exam:publish"
	PermExamViewKeys   = "exam:view-keys"
	PermAttemptCreate  = "attempt:create"
	PermAttemptSubmit  = "attempt:submit"
	PermAttemptViewOwn = "attempt:view-own"
	PermAttemptViewAll = "attempt:view-all"
	PermUsersCreate    = "users:create"
	PermUsersView      = "users:view"
	PermReportsView    = "reports:view"
	PermAssetUpload    = "asset:upload"
	PermAssetRead      = "asset:read"
	PermEventsRead     = "events:read"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermExamView,
		PermAttemptCreate,
		PermAttemptSubmit,
		PermAttemptViewOwn,
		PermAssetRead,
	},
	RoleAdmin: {
		"*", // everything
	},
}
