package executor

import (
	"encoding/json"

	"github.com/cuemby/ridgeline/pkg/metadata"
	"github.com/cuemby/ridgeline/pkg/types"
)

// CommandType discriminates the command catalogue the executor totally
// orders, replicated or standalone.
type CommandType string

const (
	CmdCreateProject    CommandType = "CreateProject"
	CmdRemoveProject    CommandType = "RemoveProject"
	CmdUnremoveProject  CommandType = "UnremoveProject"
	CmdPurgeProject     CommandType = "PurgeProject"
	CmdCreateRepository CommandType = "CreateRepository"
	CmdRemoveRepository CommandType = "RemoveRepository"
	CmdUnremoveRepository CommandType = "UnremoveRepository"
	CmdPurgeRepository  CommandType = "PurgeRepository"
	CmdPush             CommandType = "Push"
	CmdForcePush        CommandType = "ForcePush"
	CmdTransform        CommandType = "Transform"
	CmdUpdateServerStatus CommandType = "UpdateServerStatus"
	CmdMetadataMutation CommandType = "MetadataMutation"
)

// Command is the single envelope replicated through the Raft log (or
// applied in acceptance order standalone): a discriminator plus its
// JSON-encoded payload, mirroring the teacher's op/data Command shape.
type Command struct {
	Type CommandType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type createProjectPayload struct {
	Author string `json:"author"`
	Name   string `json:"name"`
}

type projectLifecyclePayload struct {
	Author string `json:"author"`
	Name   string `json:"name"`
}

type createRepositoryPayload struct {
	Author       string                        `json:"author"`
	Project      string                        `json:"project"`
	Name         string                        `json:"name"`
	ProjectRoles *types.RepositoryProjectRoles `json:"projectRoles,omitempty"`
}

type repositoryLifecyclePayload struct {
	Author  string `json:"author"`
	Project string `json:"project"`
	Name    string `json:"name"`
}

type pushPayload struct {
	Project string         `json:"project"`
	Repo    string         `json:"repo"`
	BaseRev types.Revision `json:"baseRev"`
	Author  string         `json:"author"`
	Summary string         `json:"summary"`
	Changes []types.Change `json:"changes"`
}

type transformPayload struct {
	Project   string          `json:"project"`
	Repo      string          `json:"repo"`
	Author    string          `json:"author"`
	Summary   string          `json:"summary"`
	Path      string          `json:"path"`
	EntryType types.EntryType `json:"entryType"`
	NewContent json.RawMessage `json:"newContent"`
}

type updateServerStatusPayload struct {
	Status types.ServerStatus `json:"status"`
}

type metadataMutationPayload struct {
	Op metadata.Operation `json:"op"`
}

func encodeCommand(t CommandType, payload interface{}) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Type: t, Data: data}, nil
}
