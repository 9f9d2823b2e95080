package rbac

// Default policy. Ownership (teacher edits only their own course) is checked
// in handlers against courses.teacher_id; these permissions gate the routes.
var RolePermissions = map[string][]string{
	"student": {
		"course:enroll",
		"enrollment:list-own",
		"profile:stats",
	},
	"teacher": {
		"course:enroll",
		"enrollment:list-own",
		"course:create",
		"course:edit",
		"module:edit",
		"lesson:edit",
		"quiz:edit",
		"asset:upload",
		"enrollment:list-course",
		"profile:stats",
	},
	"admin": {
		"*", // everything
	},
}
