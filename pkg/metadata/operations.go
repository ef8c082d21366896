// Package metadata implements the project/repository/membership/identity
// document model (ProjectMetadata, GlobalRegistry) and the pure functions
// that transform it: every mutation named in the catalogue below is
// computed here and applied to a repository by the caller (pkg/executor)
// as a single commit.Engine.Transform, reusing the commit engine's
// read-modify-write atomicity so metadata conflicts surface as ordinary
// ChangeConflict retries rather than a bespoke locking scheme.
package metadata

import (
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

// OperationType names one metadata mutation from spec.md's representative
// operation list.
type OperationType string

const (
	OpAddProject     OperationType = "addProject"
	OpRemoveProject  OperationType = "removeProject"
	OpRestoreProject OperationType = "restoreProject"
	OpPurgeProject   OperationType = "purgeProject"

	OpAddMember        OperationType = "addMember"
	OpUpdateMemberRole OperationType = "updateMemberRole"
	OpRemoveMember     OperationType = "removeMember"

	OpCreateToken       OperationType = "createToken"
	OpCreateCertificate OperationType = "createCertificate"
	OpActivateIdentity  OperationType = "activateIdentity"
	OpDeactivateIdentity OperationType = "deactivateIdentity"
	OpDestroyIdentity   OperationType = "destroyIdentity"
	OpPurgeAppIdentity  OperationType = "purgeAppIdentity"

	OpAddRepo                     OperationType = "addRepo"
	OpRemoveRepo                  OperationType = "removeRepo"
	OpRestoreRepo                 OperationType = "restoreRepo"
	OpPurgeRepo                   OperationType = "purgeRepo"
	OpUpdateRepositoryProjectRoles OperationType = "updateRepositoryProjectRoles"
	OpUpdateRepositoryStatus      OperationType = "updateRepositoryStatus"
	OpUpdateRepositoryQuota       OperationType = "updateRepositoryQuota"

	OpAddUserRepositoryRole        OperationType = "addUserRepositoryRole"
	OpUpdateUserRepositoryRole     OperationType = "updateUserRepositoryRole"
	OpRemoveUserRepositoryRole     OperationType = "removeUserRepositoryRole"
	OpAddAppIdentityRepositoryRole OperationType = "addAppIdentityRepositoryRole"
	OpUpdateAppIdentityRepositoryRole OperationType = "updateAppIdentityRepositoryRole"
	OpRemoveAppIdentityRepositoryRole OperationType = "removeAppIdentityRepositoryRole"
)

// RegistryScoped reports whether op targets the GlobalRegistry document
// (the project catalogue and the app-identity directory) rather than a
// single project's ProjectMetadata document.
func (t OperationType) RegistryScoped() bool {
	switch t {
	case OpAddProject, OpRemoveProject, OpRestoreProject, OpPurgeProject,
		OpCreateToken, OpCreateCertificate, OpActivateIdentity, OpDeactivateIdentity,
		OpDestroyIdentity, OpPurgeAppIdentity:
		return true
	default:
		return false
	}
}

// Operation is the single payload shape every metadata mutation command
// carries; only the fields relevant to Type are populated.
type Operation struct {
	Type    OperationType `json:"type"`
	Author  string        `json:"author"`
	Project string        `json:"project,omitempty"`

	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`

	AppID            string `json:"appId,omitempty"`
	Secret           []byte `json:"secret,omitempty"`
	CertificateID    string `json:"certificateId,omitempty"`
	IsSystemAdmin    bool   `json:"isSystemAdmin,omitempty"`
	AllowGuestAccess bool   `json:"allowGuestAccess,omitempty"`

	Repository   string                      `json:"repository,omitempty"`
	ProjectRoles *types.RepositoryProjectRoles `json:"projectRoles,omitempty"`
	Status       types.RepositoryStatus      `json:"status,omitempty"`
	Quota        *types.WriteQuota           `json:"quota,omitempty"`
}

// ApplyToRegistry computes the GlobalRegistry resulting from op. reg may be
// a zero-value (schemaVersion 0, nil maps); callers pass the freshly
// decoded document (or an empty one for the very first mutation).
func ApplyToRegistry(reg types.GlobalRegistry, op Operation, nowMillis int64) (types.GlobalRegistry, error) {
	if reg.Projects == nil {
		reg.Projects = make(map[string]types.Project)
	}
	if reg.AppIdentities == nil {
		reg.AppIdentities = make(map[string]types.AppIdentity)
	}

	switch op.Type {
	case OpAddProject:
		if err := ValidateName(op.Project); err != nil {
			return reg, err
		}
		if _, exists := reg.Projects[op.Project]; exists {
			return reg, rerr.New(rerr.ProjectExists, op.Project, "project already exists")
		}
		reg.Projects[op.Project] = types.Project{
			Name:            op.Project,
			CreatedAuthor:   op.Author,
			CreatedAtMillis: nowMillis,
		}

	case OpRemoveProject:
		p, err := requireProject(reg, op.Project)
		if err != nil {
			return reg, err
		}
		p.Removal = &types.RemovalMarker{Author: op.Author, TimestampMillis: nowMillis}
		reg.Projects[op.Project] = p

	case OpRestoreProject:
		p, err := requireProject(reg, op.Project)
		if err != nil {
			return reg, err
		}
		p.Removal = nil
		reg.Projects[op.Project] = p

	case OpPurgeProject:
		if _, exists := reg.Projects[op.Project]; !exists {
			return reg, rerr.New(rerr.ProjectNotFound, op.Project, "project not found")
		}
		delete(reg.Projects, op.Project)

	case OpCreateToken:
		if _, exists := reg.AppIdentities[op.AppID]; exists {
			return reg, rerr.New(rerr.InvalidPush, op.AppID, "app identity already exists")
		}
		reg.AppIdentities[op.AppID] = types.AppIdentity{
			Kind:             types.IdentityToken,
			AppID:            op.AppID,
			IsSystemAdmin:    op.IsSystemAdmin,
			State:            types.IdentityActive,
			AllowGuestAccess: op.AllowGuestAccess,
			EncryptedSecret:  op.Secret,
			CreatedAtMillis:  nowMillis,
		}

	case OpCreateCertificate:
		if _, exists := reg.AppIdentities[op.AppID]; exists {
			return reg, rerr.New(rerr.InvalidPush, op.AppID, "app identity already exists")
		}
		reg.AppIdentities[op.AppID] = types.AppIdentity{
			Kind:             types.IdentityCertificate,
			AppID:            op.AppID,
			IsSystemAdmin:    op.IsSystemAdmin,
			State:            types.IdentityActive,
			AllowGuestAccess: op.AllowGuestAccess,
			CertificateID:    op.CertificateID,
			CreatedAtMillis:  nowMillis,
		}

	case OpActivateIdentity, OpDeactivateIdentity, OpDestroyIdentity:
		id, err := requireIdentity(reg, op.AppID)
		if err != nil {
			return reg, err
		}
		switch op.Type {
		case OpActivateIdentity:
			id.State = types.IdentityActive
		case OpDeactivateIdentity:
			id.State = types.IdentityInactive
		case OpDestroyIdentity:
			id.State = types.IdentityDeleting
		}
		reg.AppIdentities[op.AppID] = id

	case OpPurgeAppIdentity:
		delete(reg.AppIdentities, op.AppID)

	default:
		return reg, rerr.New(rerr.ChangeFormat, "", "operation is not registry-scoped: "+string(op.Type))
	}

	reg.SchemaVersion = CurrentSchemaVersion
	return reg, nil
}

func requireProject(reg types.GlobalRegistry, name string) (types.Project, error) {
	p, ok := reg.Projects[name]
	if !ok {
		return types.Project{}, rerr.New(rerr.ProjectNotFound, name, "project not found")
	}
	return p, nil
}

func requireIdentity(reg types.GlobalRegistry, appID string) (types.AppIdentity, error) {
	id, ok := reg.AppIdentities[appID]
	if !ok {
		return types.AppIdentity{}, rerr.New(rerr.InvalidPush, appID, "app identity not found")
	}
	return id, nil
}

// ApplyToProjectMetadata computes the ProjectMetadata resulting from op
// against one project's own document.
func ApplyToProjectMetadata(meta types.ProjectMetadata, op Operation, nowMillis int64) (types.ProjectMetadata, error) {
	if meta.Members == nil {
		meta.Members = make(map[string]types.Member)
	}
	if meta.AppIdentityRoles == nil {
		meta.AppIdentityRoles = make(map[string]types.ProjectRole)
	}
	if meta.Repositories == nil {
		meta.Repositories = make(map[string]types.RepositoryMetadata)
	}

	switch op.Type {
	case OpAddMember:
		meta.Members[op.UserID] = types.Member{ID: op.UserID, Role: types.ProjectRole(op.Role), AddedAtMillis: nowMillis}

	case OpUpdateMemberRole:
		m, ok := meta.Members[op.UserID]
		if !ok {
			return meta, rerr.New(rerr.InvalidPush, op.UserID, "member not found")
		}
		m.Role = types.ProjectRole(op.Role)
		meta.Members[op.UserID] = m

	case OpRemoveMember:
		delete(meta.Members, op.UserID)
		for name, repo := range meta.Repositories {
			delete(repo.Users, op.UserID)
			meta.Repositories[name] = repo
		}

	case OpAddRepo:
		if err := ValidateName(op.Repository); err != nil {
			return meta, err
		}
		if IsReservedRepository(op.Repository) {
			return meta, rerr.New(rerr.InvalidPush, op.Repository, "repository name is reserved")
		}
		if _, exists := meta.Repositories[op.Repository]; exists {
			return meta, rerr.New(rerr.RepositoryExists, op.Repository, "repository already exists")
		}
		roles := types.RepositoryProjectRoles{}
		if op.ProjectRoles != nil {
			roles = *op.ProjectRoles
		}
		if roles.Guest == types.RoleWrite {
			return meta, rerr.New(rerr.InvalidPush, op.Repository, "guest role may not be WRITE")
		}
		meta.Repositories[op.Repository] = types.RepositoryMetadata{
			Name:            op.Repository,
			CreatedAuthor:   op.Author,
			CreatedAtMillis: nowMillis,
			Status:          types.RepositoryActive,
			ProjectRoles:    roles,
		}

	case OpRemoveRepo, OpRestoreRepo:
		repo, err := requireRepo(meta, op.Repository)
		if err != nil {
			return meta, err
		}
		if op.Type == OpRemoveRepo {
			repo.Removal = &types.RemovalMarker{Author: op.Author, TimestampMillis: nowMillis}
		} else {
			repo.Removal = nil
		}
		meta.Repositories[op.Repository] = repo

	case OpPurgeRepo:
		if _, ok := meta.Repositories[op.Repository]; !ok {
			return meta, rerr.New(rerr.RepositoryNotFound, op.Repository, "repository not found")
		}
		delete(meta.Repositories, op.Repository)

	case OpUpdateRepositoryProjectRoles:
		if IsReservedRepository(op.Repository) {
			return meta, rerr.New(rerr.InvalidPush, op.Repository, "repository name is reserved")
		}
		repo, err := requireRepo(meta, op.Repository)
		if err != nil {
			return meta, err
		}
		if op.ProjectRoles == nil {
			return meta, rerr.New(rerr.ChangeFormat, op.Repository, "projectRoles required")
		}
		if op.ProjectRoles.Guest == types.RoleWrite {
			return meta, rerr.New(rerr.InvalidPush, op.Repository, "guest role may not be WRITE")
		}
		repo.ProjectRoles = *op.ProjectRoles
		meta.Repositories[op.Repository] = repo

	case OpUpdateRepositoryStatus:
		repo, err := requireRepo(meta, op.Repository)
		if err != nil {
			return meta, err
		}
		repo.Status = op.Status
		meta.Repositories[op.Repository] = repo

	case OpUpdateRepositoryQuota:
		repo, err := requireRepo(meta, op.Repository)
		if err != nil {
			return meta, err
		}
		repo.Quota = op.Quota
		meta.Repositories[op.Repository] = repo

	case OpAddUserRepositoryRole, OpUpdateUserRepositoryRole:
		if IsReservedRepository(op.Repository) {
			return meta, rerr.New(rerr.InvalidPush, op.Repository, "repository name is reserved")
		}
		repo, err := requireRepo(meta, op.Repository)
		if err != nil {
			return meta, err
		}
		if _, isMember := meta.Members[op.UserID]; !isMember {
			return meta, rerr.New(rerr.InvalidPush, op.UserID, "user is not a project member")
		}
		if repo.Users == nil {
			repo.Users = make(map[string]types.RepositoryRole)
		}
		repo.Users[op.UserID] = types.RepositoryRole(op.Role)
		meta.Repositories[op.Repository] = repo

	case OpRemoveUserRepositoryRole:
		repo, err := requireRepo(meta, op.Repository)
		if err != nil {
			return meta, err
		}
		delete(repo.Users, op.UserID)
		meta.Repositories[op.Repository] = repo

	case OpAddAppIdentityRepositoryRole, OpUpdateAppIdentityRepositoryRole:
		if IsReservedRepository(op.Repository) {
			return meta, rerr.New(rerr.InvalidPush, op.Repository, "repository name is reserved")
		}
		repo, err := requireRepo(meta, op.Repository)
		if err != nil {
			return meta, err
		}
		if repo.AppIDs == nil {
			repo.AppIDs = make(map[string]types.RepositoryRole)
		}
		repo.AppIDs[op.AppID] = types.RepositoryRole(op.Role)
		meta.Repositories[op.Repository] = repo

	case OpRemoveAppIdentityRepositoryRole:
		repo, err := requireRepo(meta, op.Repository)
		if err != nil {
			return meta, err
		}
		delete(repo.AppIDs, op.AppID)
		meta.Repositories[op.Repository] = repo

	case OpPurgeAppIdentity:
		delete(meta.AppIdentityRoles, op.AppID)
		for name, repo := range meta.Repositories {
			delete(repo.AppIDs, op.AppID)
			meta.Repositories[name] = repo
		}

	default:
		return meta, rerr.New(rerr.ChangeFormat, "", "operation is not project-scoped: "+string(op.Type))
	}

	meta.SchemaVersion = CurrentSchemaVersion
	return meta, nil
}

func requireRepo(meta types.ProjectMetadata, name string) (types.RepositoryMetadata, error) {
	r, ok := meta.Repositories[name]
	if !ok {
		return types.RepositoryMetadata{}, rerr.New(rerr.RepositoryNotFound, name, "repository not found")
	}
	return r, nil
}
