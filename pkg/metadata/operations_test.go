package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

func TestApplyToRegistryAddProject(t *testing.T) {
	reg, err := ApplyToRegistry(types.GlobalRegistry{}, Operation{Type: OpAddProject, Author: "alice", Project: "acme"}, 1000)
	require.NoError(t, err)
	require.Contains(t, reg.Projects, "acme")
	assert.Equal(t, "alice", reg.Projects["acme"].CreatedAuthor)
}

func TestApplyToRegistryAddProjectRejectsDuplicate(t *testing.T) {
	reg, err := ApplyToRegistry(types.GlobalRegistry{}, Operation{Type: OpAddProject, Project: "acme"}, 1000)
	require.NoError(t, err)

	_, err = ApplyToRegistry(reg, Operation{Type: OpAddProject, Project: "acme"}, 2000)
	assert.Equal(t, rerr.ProjectExists, rerr.CodeOf(err))
}

func TestApplyToRegistryAddProjectRejectsInvalidName(t *testing.T) {
	_, err := ApplyToRegistry(types.GlobalRegistry{}, Operation{Type: OpAddProject, Project: "bad.removed"}, 1000)
	assert.Error(t, err)
}

func TestApplyToRegistryRemoveThenRestoreProject(t *testing.T) {
	reg, err := ApplyToRegistry(types.GlobalRegistry{}, Operation{Type: OpAddProject, Project: "acme"}, 1000)
	require.NoError(t, err)

	reg, err = ApplyToRegistry(reg, Operation{Type: OpRemoveProject, Project: "acme", Author: "alice"}, 2000)
	require.NoError(t, err)
	assert.NotNil(t, reg.Projects["acme"].Removal)

	reg, err = ApplyToRegistry(reg, Operation{Type: OpRestoreProject, Project: "acme"}, 3000)
	require.NoError(t, err)
	assert.Nil(t, reg.Projects["acme"].Removal)
}

func TestApplyToRegistryPurgeProjectRequiresExisting(t *testing.T) {
	_, err := ApplyToRegistry(types.GlobalRegistry{}, Operation{Type: OpPurgeProject, Project: "ghost"}, 1000)
	assert.Equal(t, rerr.ProjectNotFound, rerr.CodeOf(err))
}

func TestApplyToRegistryCreateTokenAndPurge(t *testing.T) {
	reg, err := ApplyToRegistry(types.GlobalRegistry{}, Operation{Type: OpCreateToken, AppID: "svc-1", Secret: []byte("ct")}, 1000)
	require.NoError(t, err)
	require.Contains(t, reg.AppIdentities, "svc-1")
	assert.Equal(t, types.IdentityActive, reg.AppIdentities["svc-1"].State)

	reg, err = ApplyToRegistry(reg, Operation{Type: OpDestroyIdentity, AppID: "svc-1"}, 2000)
	require.NoError(t, err)
	assert.Equal(t, types.IdentityDeleting, reg.AppIdentities["svc-1"].State)

	reg, err = ApplyToRegistry(reg, Operation{Type: OpPurgeAppIdentity, AppID: "svc-1"}, 3000)
	require.NoError(t, err)
	assert.NotContains(t, reg.AppIdentities, "svc-1")
}

func TestApplyToProjectMetadataAddRepoAndRoles(t *testing.T) {
	meta, err := ApplyToProjectMetadata(types.ProjectMetadata{}, Operation{
		Type:       OpAddRepo,
		Repository: "configs",
		Author:     "alice",
		ProjectRoles: &types.RepositoryProjectRoles{Member: types.RoleWrite, Guest: types.RoleRead},
	}, 1000)
	require.NoError(t, err)
	require.Contains(t, meta.Repositories, "configs")

	meta, err = ApplyToProjectMetadata(meta, Operation{Type: OpAddMember, UserID: "bob", Role: string(types.ProjectRoleMember)}, 1000)
	require.NoError(t, err)

	meta, err = ApplyToProjectMetadata(meta, Operation{
		Type: OpAddUserRepositoryRole, Repository: "configs", UserID: "bob", Role: string(types.RoleAdmin),
	}, 2000)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, meta.Repositories["configs"].Users["bob"])
}

func TestApplyToProjectMetadataAddRepoRejectsGuestWrite(t *testing.T) {
	_, err := ApplyToProjectMetadata(types.ProjectMetadata{}, Operation{
		Type:       OpAddRepo,
		Repository: "configs",
		ProjectRoles: &types.RepositoryProjectRoles{Guest: types.RoleWrite},
	}, 1000)
	assert.Equal(t, rerr.InvalidPush, rerr.CodeOf(err))
}

func TestApplyToProjectMetadataUserRoleRequiresMembership(t *testing.T) {
	meta, err := ApplyToProjectMetadata(types.ProjectMetadata{}, Operation{Type: OpAddRepo, Repository: "configs"}, 1000)
	require.NoError(t, err)

	_, err = ApplyToProjectMetadata(meta, Operation{Type: OpAddUserRepositoryRole, Repository: "configs", UserID: "ghost", Role: string(types.RoleRead)}, 2000)
	assert.Equal(t, rerr.InvalidPush, rerr.CodeOf(err))
}

func TestApplyToProjectMetadataRemoveMemberClearsRepositoryRoles(t *testing.T) {
	meta, err := ApplyToProjectMetadata(types.ProjectMetadata{}, Operation{Type: OpAddRepo, Repository: "configs"}, 1000)
	require.NoError(t, err)
	meta, err = ApplyToProjectMetadata(meta, Operation{Type: OpAddMember, UserID: "bob", Role: string(types.ProjectRoleMember)}, 1000)
	require.NoError(t, err)
	meta, err = ApplyToProjectMetadata(meta, Operation{Type: OpAddUserRepositoryRole, Repository: "configs", UserID: "bob", Role: string(types.RoleWrite)}, 1000)
	require.NoError(t, err)

	meta, err = ApplyToProjectMetadata(meta, Operation{Type: OpRemoveMember, UserID: "bob"}, 2000)
	require.NoError(t, err)
	assert.NotContains(t, meta.Members, "bob")
	assert.NotContains(t, meta.Repositories["configs"].Users, "bob")
}

func TestEffectiveRepositoryRoleSystemAdminAlwaysAdmin(t *testing.T) {
	role := EffectiveRepositoryRole(&types.ProjectMetadata{}, "configs", "svc", true, false, true, types.ProjectRoleGuest, true)
	assert.Equal(t, types.RoleAdmin, role)
}

func TestEffectiveRepositoryRoleDogmaIsAdminOnly(t *testing.T) {
	meta := &types.ProjectMetadata{Repositories: map[string]types.RepositoryMetadata{
		DogmaRepository: {ProjectRoles: types.RepositoryProjectRoles{Member: types.RoleAdmin}},
	}}
	role := EffectiveRepositoryRole(meta, DogmaRepository, "bob", false, false, false, types.ProjectRoleOwner, true)
	assert.Equal(t, types.RoleNone, role)
}

func TestEffectiveRepositoryRoleOwnerIsAlwaysAdmin(t *testing.T) {
	meta := &types.ProjectMetadata{Repositories: map[string]types.RepositoryMetadata{
		"configs": {ProjectRoles: types.RepositoryProjectRoles{Member: types.RoleRead}},
	}}
	role := EffectiveRepositoryRole(meta, "configs", "alice", false, false, false, types.ProjectRoleOwner, true)
	assert.Equal(t, types.RoleAdmin, role)
}

func TestEffectiveRepositoryRoleGuestAppIdentityRequiresOptIn(t *testing.T) {
	meta := &types.ProjectMetadata{Repositories: map[string]types.RepositoryMetadata{
		"configs": {ProjectRoles: types.RepositoryProjectRoles{Guest: types.RoleRead}},
	}}
	denied := EffectiveRepositoryRole(meta, "configs", "svc", true, false, false, types.ProjectRoleGuest, true)
	assert.Equal(t, types.RoleNone, denied)

	allowed := EffectiveRepositoryRole(meta, "configs", "svc", true, true, false, types.ProjectRoleGuest, true)
	assert.Equal(t, types.RoleRead, allowed)
}

func TestEffectiveRepositoryRoleDirectBeatsInherited(t *testing.T) {
	meta := &types.ProjectMetadata{Repositories: map[string]types.RepositoryMetadata{
		"configs": {
			ProjectRoles: types.RepositoryProjectRoles{Member: types.RoleRead},
			Users:        map[string]types.RepositoryRole{"bob": types.RoleAdmin},
		},
	}}
	role := EffectiveRepositoryRole(meta, "configs", "bob", false, false, false, types.ProjectRoleMember, true)
	assert.Equal(t, types.RoleAdmin, role)
}

func TestMigrateStampsCurrentSchemaVersion(t *testing.T) {
	meta := Migrate(types.ProjectMetadata{})
	assert.Equal(t, CurrentSchemaVersion, meta.SchemaVersion)
	assert.NotNil(t, meta.Members)
	assert.NotNil(t, meta.Repositories)
}

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox(DeriveKeyFromClusterID("node-1"))
	require.NoError(t, err)

	ciphertext, err := box.Seal([]byte("hunter2"))
	require.NoError(t, err)

	plaintext, err := box.Open(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(plaintext))
}
