package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/ridgeline/pkg/executor"
	"github.com/cuemby/ridgeline/pkg/metadata"
	"github.com/cuemby/ridgeline/pkg/types"
)

var projectApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Declaratively apply a project manifest",
	Long: `Apply reads a YAML manifest describing a project, its repositories,
and its members, and reconciles Ridgeline's metadata to match it. Existing
projects, repositories, and members are left alone; only what the manifest
adds is created.

Example:
  apiVersion: ridgeline/v1
  kind: Project
  metadata:
    name: payments
  spec:
    repositories:
      - name: configs
        memberRole: WRITE
        guestRole: READ
    members:
      - userId: alice
        role: OWNER`,
	RunE: runProjectApply,
}

func init() {
	projectApplyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	_ = projectApplyCmd.MarkFlagRequired("file")
	projectCmd.AddCommand(projectApplyCmd)
}

// ProjectManifest is the declarative shape project apply reconciles against
// live metadata, mirroring the apiVersion/kind/metadata/spec envelope the
// teacher's resource manifests use.
type ProjectManifest struct {
	APIVersion string               `yaml:"apiVersion"`
	Kind       string               `yaml:"kind"`
	Metadata   ProjectManifestMeta  `yaml:"metadata"`
	Spec       ProjectManifestSpec  `yaml:"spec"`
}

type ProjectManifestMeta struct {
	Name string `yaml:"name"`
}

type ProjectManifestSpec struct {
	Repositories []ManifestRepository `yaml:"repositories"`
	Members      []ManifestMember     `yaml:"members"`
}

type ManifestRepository struct {
	Name       string `yaml:"name"`
	MemberRole string `yaml:"memberRole"`
	GuestRole  string `yaml:"guestRole"`
}

type ManifestMember struct {
	UserID string `yaml:"userId"`
	Role   string `yaml:"role"`
}

func runProjectApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var manifest ProjectManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.Kind != "" && manifest.Kind != "Project" {
		return fmt.Errorf("unsupported manifest kind: %s", manifest.Kind)
	}
	if manifest.Metadata.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}

	who := author(cmd)

	return withExecutor(cmd, func(exec *executor.Executor) error {
		if err := applyProject(exec, who, manifest.Metadata.Name); err != nil {
			return err
		}
		for _, repo := range manifest.Spec.Repositories {
			if err := applyRepository(exec, who, manifest.Metadata.Name, repo); err != nil {
				return err
			}
		}
		for _, member := range manifest.Spec.Members {
			if err := applyMember(exec, who, manifest.Metadata.Name, member); err != nil {
				return err
			}
		}
		fmt.Printf("✓ Project applied: %s\n", manifest.Metadata.Name)
		return nil
	})
}

func applyProject(exec *executor.Executor, who, name string) error {
	reg, err := exec.CurrentRegistry()
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	if _, exists := reg.Projects[name]; exists {
		fmt.Printf("Project already exists: %s (skipping)\n", name)
		return nil
	}
	fmt.Printf("Creating project: %s\n", name)
	if err := exec.CreateProject(who, name); err != nil {
		return fmt.Errorf("create project %s: %w", name, err)
	}
	return nil
}

func applyRepository(exec *executor.Executor, who, project string, repo ManifestRepository) error {
	meta, err := exec.ProjectMetadata(project)
	if err != nil {
		return fmt.Errorf("read project metadata: %w", err)
	}
	if _, exists := meta.Repositories[repo.Name]; exists {
		fmt.Printf("Repository already exists: %s/%s (skipping)\n", project, repo.Name)
		return nil
	}
	fmt.Printf("Creating repository: %s/%s\n", project, repo.Name)
	var roles *types.RepositoryProjectRoles
	if repo.MemberRole != "" || repo.GuestRole != "" {
		roles = &types.RepositoryProjectRoles{
			Member: types.RepositoryRole(repo.MemberRole),
			Guest:  types.RepositoryRole(repo.GuestRole),
		}
	}
	if err := exec.CreateRepository(who, project, repo.Name, roles); err != nil {
		return fmt.Errorf("create repository %s/%s: %w", project, repo.Name, err)
	}
	return nil
}

func applyMember(exec *executor.Executor, who, project string, member ManifestMember) error {
	meta, err := exec.ProjectMetadata(project)
	if err != nil {
		return fmt.Errorf("read project metadata: %w", err)
	}
	if _, exists := meta.Members[member.UserID]; exists {
		fmt.Printf("Member already present: %s in %s (skipping)\n", member.UserID, project)
		return nil
	}
	fmt.Printf("Adding member: %s to %s as %s\n", member.UserID, project, member.Role)
	op := metadata.Operation{
		Type:    metadata.OpAddMember,
		Author:  who,
		Project: project,
		UserID:  member.UserID,
		Role:    member.Role,
	}
	if err := exec.MetadataMutation(op); err != nil {
		return fmt.Errorf("add member %s to %s: %w", member.UserID, project, err)
	}
	return nil
}
