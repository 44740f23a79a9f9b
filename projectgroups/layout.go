// Package projectgroups maps project groups of the cloud onto a tree of
// group folders and keeps that tree in sync.
package projectgroups

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// ProjectGroupPrefix marks the cloud groups that belong to projects.
const ProjectGroupPrefix = "cafevdb-project-"

const projectsFolder = "projects"

// ErrNotProjectGroup is returned for group ids without ProjectGroupPrefix.
var ErrNotProjectGroup = errors.New("not a project group")

var (
	trailingYear = regexp.MustCompile(`(\d{4})$`)
	yearSegment  = regexp.MustCompile(`^\d{4}$`)
)

// ProjectGroupID is the cloud group id of a project.
func ProjectGroupID(projectID int) string {
	return ProjectGroupPrefix + strconv.Itoa(projectID)
}

// IsProjectGroup reports whether groupID carries the project prefix.
func IsProjectGroup(groupID string) bool {
	return strings.HasPrefix(groupID, ProjectGroupPrefix) && len(groupID) > len(ProjectGroupPrefix)
}

// ProjectYear extracts the year a project name ends with.
func ProjectYear(name string) mo.Option[int] {
	m := trailingYear.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return mo.None[int]()
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return mo.None[int]()
	}
	return mo.Some(year)
}

// FolderLayout is where a project's folder and its parents are mounted.
type FolderLayout struct {
	Root string
	// Ancestors lists the parent mounts from the top down.
	Ancestors []string
	Leaf      string
}

// NewFolderLayout computes the layout of the project called name below root.
// Names ending in a year nest below {root}/projects/{year}.
func NewFolderLayout(root, name string) (FolderLayout, error) {
	root = strings.Trim(root, "/")
	name = strings.TrimSpace(strings.ReplaceAll(name, "/", "-"))
	if name == "" {
		return FolderLayout{}, fmt.Errorf("empty project name")
	}

	layout := FolderLayout{Root: root}
	parent := root
	if parent != "" {
		layout.Ancestors = append(layout.Ancestors, parent)
	}
	if year, ok := ProjectYear(name).Get(); ok {
		projects := join(root, projectsFolder)
		yearMount := join(projects, strconv.Itoa(year))
		layout.Ancestors = append(layout.Ancestors, projects, yearMount)
		parent = yearMount
	}
	layout.Leaf = join(parent, name)
	return layout, nil
}

// IsAncestor reports whether mountPoint is one of the layout's parents.
func (l FolderLayout) IsAncestor(mountPoint string) bool {
	for _, a := range l.Ancestors {
		if a == mountPoint {
			return true
		}
	}
	return false
}

// Contains reports whether mountPoint is the leaf or an ancestor.
func (l FolderLayout) Contains(mountPoint string) bool {
	return mountPoint == l.Leaf || l.IsAncestor(mountPoint)
}

// IsYearFolder reports whether mountPoint is a year level folder
// {root}/projects/{yyyy}.
func IsYearFolder(root, mountPoint string) bool {
	dir, base := path.Split(mountPoint)
	return strings.TrimSuffix(dir, "/") == join(strings.Trim(root, "/"), projectsFolder) && yearSegment.MatchString(base)
}

// isStructural reports whether mountPoint is a shared parent folder of the
// project tree rather than a project's own folder.
func isStructural(root, mountPoint string) bool {
	root = strings.Trim(root, "/")
	return (root != "" && mountPoint == root) || mountPoint == join(root, projectsFolder) || IsYearFolder(root, mountPoint)
}

func join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "/" + child
}
