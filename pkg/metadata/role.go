package metadata

import "github.com/cuemby/ridgeline/pkg/types"

// EffectiveRepositoryRole resolves a principal's access to one repository,
// following the resolution order: system admins always get ADMIN; the
// reserved dogma/meta repositories are admin-only regardless of project
// role; guests (direct or inherited) only count if allowed (always true
// for a human user, gated by AllowGuestAccess for an app identity); the
// result is the higher of the principal's direct repository role and the
// role their project membership inherits.
func EffectiveRepositoryRole(meta *types.ProjectMetadata, repo string, principalID string, isAppIdentity bool, appAllowGuestAccess bool, isSystemAdmin bool, projectRole types.ProjectRole, hasProjectRole bool) types.RepositoryRole {
	if isSystemAdmin {
		return types.RoleAdmin
	}
	if IsReservedRepository(repo) {
		return types.RoleNone
	}
	if !hasProjectRole {
		return types.RoleNone
	}
	if projectRole == types.ProjectRoleOwner {
		return types.RoleAdmin
	}

	repoMeta, ok := meta.Repositories[repo]
	if !ok {
		return types.RoleNone
	}

	var direct types.RepositoryRole
	if isAppIdentity {
		direct = repoMeta.AppIDs[principalID]
	} else {
		direct = repoMeta.Users[principalID]
	}

	var inherited types.RepositoryRole
	switch projectRole {
	case types.ProjectRoleMember:
		inherited = repoMeta.ProjectRoles.Member
	case types.ProjectRoleGuest:
		if isAppIdentity && !appAllowGuestAccess {
			return types.RoleNone
		}
		inherited = repoMeta.ProjectRoles.Guest
	}

	return direct.Max(inherited)
}
