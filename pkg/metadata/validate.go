package metadata

import (
	"regexp"
	"strings"

	"github.com/cuemby/ridgeline/pkg/rerr"
)

var nameValidator = regexp.MustCompile(`^[0-9A-Za-z](?:[-+_0-9A-Za-z.]*[0-9A-Za-z])?$`)

// ValidateName checks a project or repository name against the shared
// validator: alphanumeric-bounded, interior dashes/dots/underscores/plus
// allowed, and never ending in the reserved ".removed" suffix.
func ValidateName(name string) error {
	if !nameValidator.MatchString(name) {
		return rerr.New(rerr.InvalidPush, name, "name does not match the allowed pattern")
	}
	if strings.HasSuffix(name, ".removed") {
		return rerr.New(rerr.InvalidPush, name, `name must not end in ".removed"`)
	}
	return nil
}

// DogmaRepository is the reserved metadata repository every project carries.
const DogmaRepository = "dogma"

// LegacyMetaRepository is the pre-migration name for DogmaRepository.
const LegacyMetaRepository = "meta"

// InternalProject is the reserved project whose dogma repository holds the
// GlobalRegistry, distinct from every other project's own dogma repository
// holding its ProjectMetadata.
const InternalProject = "system"

// IsReservedRepository reports whether name is a repository the effective
// role resolution treats specially (admin-only regardless of project role).
func IsReservedRepository(name string) bool {
	return name == DogmaRepository || name == LegacyMetaRepository
}
