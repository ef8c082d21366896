package types

import (
	"encoding/json"
	"time"
)

// Revision identifies a commit within a repository. Absolute revisions are
// >= 1; relative revisions are <= -1 and resolve against HEAD at the time
// the operation begins (-1 = HEAD, -2 = HEAD-1). 0 is never valid.
type Revision int64

const HeadRevision Revision = -1

// IsRelative reports whether r must be resolved against a repository head
// before use.
func (r Revision) IsRelative() bool { return r <= -1 }

// EntryType distinguishes the three kinds of node in a repository tree.
type EntryType string

const (
	EntryJSON      EntryType = "JSON"
	EntryText      EntryType = "TEXT"
	EntryDirectory EntryType = "DIRECTORY"
)

// Entry is a file (or directory) at a specific revision.
type Entry struct {
	Path     string          `json:"path"`
	Type     EntryType       `json:"type"`
	Content  json.RawMessage `json:"content,omitempty"`
	Revision Revision        `json:"revision"`
}

// Markup selects how Commit.Detail should be rendered.
type Markup string

const (
	MarkupPlain    Markup = "PLAIN"
	MarkupMarkdown Markup = "MARKDOWN"
)

// ChangeOp is the discriminator of the Change sum type.
type ChangeOp string

const (
	OpUpsertJSON     ChangeOp = "UPSERT_JSON"
	OpUpsertText     ChangeOp = "UPSERT_TEXT"
	OpRemove         ChangeOp = "REMOVE"
	OpRename         ChangeOp = "RENAME"
	OpApplyJSONPatch ChangeOp = "APPLY_JSON_PATCH"
	OpApplyTextPatch ChangeOp = "APPLY_TEXT_PATCH"
)

// Change is a single declarative edit submitted in a Push, or produced as
// part of a CommitResult's ActualChanges after normalization.
//
// Only the fields relevant to Op are populated:
//   - UPSERT_JSON: Path, Content (JSON)
//   - UPSERT_TEXT: Path, Text
//   - REMOVE:      Path
//   - RENAME:      Path, NewPath
//   - APPLY_JSON_PATCH: Path, Patch (RFC-6902 ops, possibly incl. safeReplace)
//   - APPLY_TEXT_PATCH:  Path, UnifiedDiff
type Change struct {
	Op          ChangeOp        `json:"op"`
	Path        string          `json:"path"`
	NewPath     string          `json:"newPath,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Text        string          `json:"text,omitempty"`
	Patch       json.RawMessage `json:"patch,omitempty"`
	UnifiedDiff string          `json:"unifiedDiff,omitempty"`
}

// Commit is one atomic unit of history in a repository.
type Commit struct {
	Revision        Revision `json:"revision"`
	Author          string   `json:"author"`
	TimestampMillis int64    `json:"timestampMillis"`
	Summary         string   `json:"summary"`
	Detail          string   `json:"detail,omitempty"`
	Markup          Markup   `json:"markup,omitempty"`
	Changes         []Change `json:"changes"`
}

// CommitResult is returned by Push and Transform.
type CommitResult struct {
	Revision      Revision `json:"revision"`
	ActualChanges []Change `json:"actualChanges"`
}

// QueryType selects how a Query's Expressions are interpreted.
type QueryType string

const (
	QueryIdentity     QueryType = "IDENTITY"
	QueryIdentityJSON QueryType = "IDENTITY_JSON"
	QueryIdentityText QueryType = "IDENTITY_TEXT"
	QueryJSONPath     QueryType = "JSON_PATH"
)

// Query selects a single entry and, for JSON_PATH, a chain of expressions
// applied in order against its content, each filtering the document
// produced by the previous one.
type Query struct {
	Path        string    `json:"path"`
	Type        QueryType `json:"type"`
	Expressions []string  `json:"expressions,omitempty"`
}

// MergeSource is one entry in an ordered merge request; Optional sources
// that are absent are skipped rather than failing the merge.
type MergeSource struct {
	Path     string `json:"path"`
	Optional bool   `json:"optional"`
}

// MergeQuery requests a right-fold deep merge of JSON entries, with an
// optional JSON_PATH-style filter chain applied to the merged result.
type MergeQuery struct {
	Sources     []MergeSource `json:"sources"`
	Expressions []string      `json:"expressions,omitempty"`
}

// RemovalMarker records when/by-whom a project or repository was soft
// removed.
type RemovalMarker struct {
	Author          string `json:"author"`
	TimestampMillis int64  `json:"timestampMillis"`
}

// Project groups repositories.
type Project struct {
	Name            string         `json:"name"`
	CreatedAuthor   string         `json:"creationAuthor"`
	CreatedAtMillis int64          `json:"creationTimestampMillis"`
	Removal         *RemovalMarker `json:"removal,omitempty"`
}

// RepositoryStatus gates writes against a repository independent of the
// quota/read-only server-wide gate.
type RepositoryStatus string

const (
	RepositoryActive   RepositoryStatus = "ACTIVE"
	RepositoryReadOnly RepositoryStatus = "READ_ONLY"
)

// WriteQuota is a token-bucket configuration: permits tokens refilled every
// periodSeconds.
type WriteQuota struct {
	Permits       int `json:"permits"`
	PeriodSeconds int `json:"periodSeconds"`
}

// Repository is a named, ordered commit sequence within a Project.
type Repository struct {
	Name            string           `json:"name"`
	Project         string           `json:"project"`
	CreatedAuthor   string           `json:"creationAuthor"`
	CreatedAtMillis int64            `json:"creationTimestampMillis"`
	Status          RepositoryStatus `json:"status"`
	Removal         *RemovalMarker   `json:"removal,omitempty"`
	Quota           *WriteQuota      `json:"quota,omitempty"`
}

// ProjectRole is a principal's role on a Project.
type ProjectRole string

const (
	ProjectRoleOwner  ProjectRole = "OWNER"
	ProjectRoleMember ProjectRole = "MEMBER"
	ProjectRoleGuest  ProjectRole = "GUEST"
)

// RepositoryRole is a principal's effective role on a Repository, forming a
// lattice ADMIN > WRITE > READ > none (RoleNone below means no access).
type RepositoryRole string

const (
	RoleNone  RepositoryRole = ""
	RoleRead  RepositoryRole = "READ"
	RoleWrite RepositoryRole = "WRITE"
	RoleAdmin RepositoryRole = "ADMIN"
)

var roleRank = map[RepositoryRole]int{
	RoleNone:  0,
	RoleRead:  1,
	RoleWrite: 2,
	RoleAdmin: 3,
}

// AtLeast reports whether r grants at least the access of other.
func (r RepositoryRole) AtLeast(other RepositoryRole) bool {
	return roleRank[r] >= roleRank[other]
}

// Max returns whichever of r, other ranks higher in the role lattice.
func (r RepositoryRole) Max(other RepositoryRole) RepositoryRole {
	if roleRank[r] >= roleRank[other] {
		return r
	}
	return other
}

// RepositoryProjectRoles maps the two project-wide roles (member, guest) to
// the repository role they inherit, per the effective-role resolution rules.
type RepositoryProjectRoles struct {
	Member RepositoryRole `json:"member"`
	Guest  RepositoryRole `json:"guest"`
}

// RepositoryMetadata is the per-repository section of ProjectMetadata.
type RepositoryMetadata struct {
	Name            string                    `json:"name"`
	CreatedAuthor   string                    `json:"creationAuthor"`
	CreatedAtMillis int64                     `json:"creationTimestampMillis"`
	Status          RepositoryStatus          `json:"status"`
	Removal         *RemovalMarker            `json:"removal,omitempty"`
	Quota           *WriteQuota               `json:"quota,omitempty"`
	ProjectRoles    RepositoryProjectRoles    `json:"projectRoles"`
	Users           map[string]RepositoryRole `json:"users,omitempty"`
	AppIDs          map[string]RepositoryRole `json:"appIds,omitempty"`
}

// Member is a human user registered on a Project.
type Member struct {
	ID            string      `json:"id"`
	Role          ProjectRole `json:"role"`
	AddedAtMillis int64       `json:"addedAtMillis"`
}

// IdentityState is the lifecycle state of an AppIdentity.
type IdentityState string

const (
	IdentityActive   IdentityState = "ACTIVE"
	IdentityInactive IdentityState = "INACTIVE"
	IdentityDeleting IdentityState = "DELETING"
)

// IdentityKind discriminates the AppIdentity sum type.
type IdentityKind string

const (
	IdentityToken       IdentityKind = "TOKEN"
	IdentityCertificate IdentityKind = "CERTIFICATE"
)

// AppIdentity is a machine principal: a bearer token or a certificate
// reference, each optionally a system admin and optionally opted into
// guest-repository access.
type AppIdentity struct {
	Kind             IdentityKind  `json:"kind"`
	AppID            string        `json:"appId"`
	IsSystemAdmin    bool          `json:"isSystemAdmin"`
	State            IdentityState `json:"state"`
	AllowGuestAccess bool          `json:"allowGuestAccess"`

	// TOKEN
	EncryptedSecret []byte `json:"encryptedSecret,omitempty"`

	// CERTIFICATE
	CertificateID string `json:"certificateId,omitempty"`

	CreatedAtMillis int64 `json:"createdAtMillis"`
}

// ProjectMetadata is the JSON document persisted at /metadata.json of the
// project's own dogma repository. It is not stored in the internal project,
// whose dogma repository holds only the GlobalRegistry.
type ProjectMetadata struct {
	Name             string                        `json:"name"`
	CreatedAuthor    string                        `json:"creationAuthor"`
	CreatedAtMillis  int64                         `json:"creationTimestampMillis"`
	Removal          *RemovalMarker                `json:"removal,omitempty"`
	Members          map[string]Member             `json:"members"`
	AppIdentityRoles map[string]ProjectRole         `json:"appIdentityRoles"`
	Repositories     map[string]RepositoryMetadata  `json:"repositories"`
	SchemaVersion    int                            `json:"schemaVersion"`
}

// GlobalRegistry is the system-wide document at /metadata.json of the
// reserved internal project's dogma repository: the catalogue of every
// project that exists and the global application-identity directory that
// per-project AppIdentityRoles entries reference by AppID.
type GlobalRegistry struct {
	Projects      map[string]Project     `json:"projects"`
	AppIdentities map[string]AppIdentity `json:"appIdentities"`
	SchemaVersion int                    `json:"schemaVersion"`
}

// MirrorDirection is which way a mirror task copies content.
type MirrorDirection string

const (
	RemoteToLocal MirrorDirection = "REMOTE_TO_LOCAL"
	LocalToRemote MirrorDirection = "LOCAL_TO_REMOTE"
)

// CredentialKind discriminates the Credential sum type used by mirror
// tasks to authenticate against a remote URI.
type CredentialKind string

const (
	CredentialNone        CredentialKind = "NONE"
	CredentialPassword    CredentialKind = "PASSWORD"
	CredentialAccessToken CredentialKind = "ACCESS_TOKEN"
	CredentialSSHKey      CredentialKind = "SSH_KEY"
)

// Credential is a tagged union of the ways a mirror task may authenticate.
type Credential struct {
	Kind     CredentialKind `json:"kind"`
	Username string         `json:"username,omitempty"`
	Secret   string         `json:"secret,omitempty"` // password, token, or PEM private key
}

// MirrorTaskConfig describes one scheduled mirror job.
type MirrorTaskConfig struct {
	ID            string          `json:"id"`
	Enabled       bool            `json:"enabled"`
	Schedule      string          `json:"schedule"` // cron expression
	Direction     MirrorDirection `json:"direction"`
	LocalRepo     string          `json:"localRepo"`
	LocalPath     string          `json:"localPath"`
	RemoteURI     string          `json:"remoteUri"`
	RemoteBranch  string          `json:"remoteBranch"`
	CredentialRef string          `json:"credentialRef,omitempty"`
	Gitignore     string          `json:"gitignore,omitempty"`
	Zone          string          `json:"zone,omitempty"`
}

// MirrorResultStatus is the outcome of one task run.
type MirrorResultStatus string

const (
	MirrorSuccess  MirrorResultStatus = "SUCCESS"
	MirrorUpToDate MirrorResultStatus = "UP_TO_DATE"
	MirrorFailed   MirrorResultStatus = "FAILED"
)

// MirrorResult is the reported outcome of a mirror task run.
type MirrorResult struct {
	TaskID      string             `json:"taskId"`
	Status      MirrorResultStatus `json:"status"`
	Description string             `json:"description"`
	Revision    Revision           `json:"revision,omitempty"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt"`
}

// ServerStatus is the cluster-wide write gate.
type ServerStatus string

const (
	StatusWritable        ServerStatus = "WRITABLE"
	StatusReplicationOnly ServerStatus = "REPLICATION_ONLY"
)
