package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionCurriculaRead allows listing, viewing, and searching curricula.
	PermissionCurriculaRead Permission = "curricula:read"

	// PermissionCurriculaWrite allows uploading, editing, and deleting curricula.
	PermissionCurriculaWrite Permission = "curricula:write"

	// PermissionAssessmentsRead allows viewing assessments.
	PermissionAssessmentsRead Permission = "assessments:read"

	// PermissionAssessmentsWrite allows editing and deleting assessments.
	PermissionAssessmentsWrite Permission = "assessments:write"

	// PermissionAssessmentsGenerate allows running the generation pipeline.
	PermissionAssessmentsGenerate Permission = "assessments:generate"
)

// AllPermissions lists every permission code, used when minting operator tokens.
func AllPermissions() []Permission {
	return []Permission{
		PermissionCurriculaRead,
		PermissionCurriculaWrite,
		PermissionAssessmentsRead,
		PermissionAssessmentsWrite,
		PermissionAssessmentsGenerate,
	}
}

// ParsePermission reports whether code names a known permission.
func ParsePermission(code string) (Permission, bool) {
	for _, p := range AllPermissions() {
		if string(p) == code {
			return p, true
		}
	}
	return "", false
}
