package gitadapter

import (
	"encoding/json"
	"testing"

	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridgeline/pkg/types"
)

func TestSplitLocalRepo(t *testing.T) {
	project, repo, err := splitLocalRepo("acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", project)
	assert.Equal(t, "widgets", repo)

	_, _, err = splitLocalRepo("no-slash")
	assert.Error(t, err)

	_, _, err = splitLocalRepo("/widgets")
	assert.Error(t, err)

	_, _, err = splitLocalRepo("acme/")
	assert.Error(t, err)
}

func TestAuthMethodNoneReturnsNil(t *testing.T) {
	auth, err := authMethod(types.Credential{Kind: types.CredentialNone})
	require.NoError(t, err)
	assert.Nil(t, auth)
}

func TestAuthMethodAccessTokenUsesPlaceholderUsername(t *testing.T) {
	auth, err := authMethod(types.Credential{Kind: types.CredentialAccessToken, Secret: "tok123"})
	require.NoError(t, err)
	basic, ok := auth.(*http.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "x-access-token", basic.Username)
	assert.Equal(t, "tok123", basic.Password)
}

func TestAuthMethodPasswordDefaultsUsername(t *testing.T) {
	auth, err := authMethod(types.Credential{Kind: types.CredentialPassword, Secret: "hunter2"})
	require.NoError(t, err)
	basic, ok := auth.(*http.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "git", basic.Username)
}

func TestAuthMethodSSHKeyRejectsInvalidKey(t *testing.T) {
	_, err := authMethod(types.Credential{Kind: types.CredentialSSHKey, Secret: "not a real key"})
	assert.Error(t, err)
}

func TestAuthMethodRejectsUnknownKind(t *testing.T) {
	_, err := authMethod(types.Credential{Kind: types.CredentialKind("BOGUS")})
	assert.Error(t, err)
}

func TestIsExcludedMatchesGlobPatterns(t *testing.T) {
	patterns := []string{"*.log", "build/**"}
	assert.True(t, isExcluded("debug.log", patterns))
	assert.True(t, isExcluded("build/output/app", patterns))
	assert.False(t, isExcluded("src/main.go", patterns))
}

func TestLocalPathJoinsPrefix(t *testing.T) {
	assert.Equal(t, "/config.json", localPath("", "config.json"))
	assert.Equal(t, "/configs/config.json", localPath("configs", "config.json"))
	assert.Equal(t, "/configs/config.json", localPath("/configs/", "config.json"))
}

func TestWorktreePathStripsLeadingSlash(t *testing.T) {
	assert.Equal(t, "config.json", worktreePath("/config.json"))
	assert.Equal(t, "configs/config.json", worktreePath("/configs/config.json"))
}

func TestFileBodyDecodesTextEntries(t *testing.T) {
	encoded, err := json.Marshal("hello world")
	require.NoError(t, err)

	body, err := fileBody(types.Entry{Type: types.EntryText, Content: encoded})
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestFileBodyPassesJSONEntriesThrough(t *testing.T) {
	body, err := fileBody(types.Entry{Type: types.EntryJSON, Content: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(body))
}

func TestGitignorePatternsSkipsBlankLinesAndComments(t *testing.T) {
	task := &Task{cfg: types.MirrorTaskConfig{Gitignore: "*.log\n\n# comment\nbuild/**\n"}}
	patterns, err := task.gitignorePatterns("")
	require.NoError(t, err)
	assert.Equal(t, []string{"*.log", "build/**"}, patterns)
}
