package projectgroups

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/cafevdb/cafevdbmembers/internal/metrics"
	"github.com/cafevdb/cafevdbmembers/nextcloud"
)

// Config supplies the folder tree settings.
type Config interface {
	RootFolder(ctx context.Context) (string, error)
	ManagementGroup(ctx context.Context) (string, error)
}

// Rename records a moved folder.
type Rename struct {
	FolderID int    `json:"folderId"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// SyncResult lists the changes one operation made.
type SyncResult struct {
	GroupID       string   `json:"groupId"`
	Leaf          string   `json:"leaf"`
	Created       []string `json:"created,omitempty"`
	Renamed       []Rename `json:"renamed,omitempty"`
	GrantsAdded   []string `json:"grantsAdded,omitempty"`
	GrantsChanged []string `json:"grantsChanged,omitempty"`
	GrantsRemoved []string `json:"grantsRemoved,omitempty"`
	Deleted       []string `json:"deleted,omitempty"`
}

// Changed reports whether the operation mutated anything.
func (r SyncResult) Changed() bool {
	return len(r.Created)+len(r.Renamed)+len(r.GrantsAdded)+len(r.GrantsChanged)+len(r.GrantsRemoved)+len(r.Deleted) > 0
}

// Service reconciles group folders with project groups.
type Service struct {
	folders nextcloud.GroupFolders
	groups  nextcloud.GroupDirectory
	config  Config
	logger  *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a project group service
func NewService(folders nextcloud.GroupFolders, groups nextcloud.GroupDirectory, config Config, opts ...Option) *Service {
	s := &Service{
		folders: folders,
		groups:  groups,
		config:  config,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tree is the folder state of one operation.
type tree struct {
	root       string
	management string
	byMount    map[string]nextcloud.Folder
	byID       map[int]nextcloud.Folder
}

func (s *Service) load(ctx context.Context) (*tree, error) {
	root, err := s.config.RootFolder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read root folder: %w", err)
	}
	management, err := s.config.ManagementGroup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read management group: %w", err)
	}
	t := &tree{root: strings.Trim(root, "/"), management: management}
	return t, s.refresh(ctx, t)
}

func (s *Service) refresh(ctx context.Context, t *tree) error {
	folders, err := s.folders.Folders(ctx)
	if err != nil {
		return err
	}
	t.byMount = make(map[string]nextcloud.Folder, len(folders))
	t.byID = make(map[int]nextcloud.Folder, len(folders))
	for _, f := range folders {
		t.byMount[f.MountPoint] = f
		t.byID[f.ID] = f
	}
	return nil
}

// SyncProjectGroup makes the folder tree match the project behind groupID.
// Running it again without changes is a no-op.
func (s *Service) SyncProjectGroup(ctx context.Context, groupID string) (result SyncResult, err error) {
	defer func() { metrics.RecordGroupSync(err) }()

	result.GroupID = groupID
	if !IsProjectGroup(groupID) {
		return result, fmt.Errorf("%s: %w", groupID, ErrNotProjectGroup)
	}
	group, err := s.groups.Group(ctx, groupID)
	if err != nil {
		return result, err
	}
	t, err := s.load(ctx)
	if err != nil {
		return result, err
	}
	layout, err := NewFolderLayout(t.root, group.DisplayName)
	if err != nil {
		return result, fmt.Errorf("%s: %w", groupID, err)
	}
	result.Leaf = layout.Leaf

	s.logger.Debug("synchronizing project group",
		"group", groupID,
		"name", group.DisplayName,
		"leaf", layout.Leaf,
		"ancestors", layout.Ancestors)

	for _, mount := range layout.Ancestors {
		if err := s.ensureFolder(ctx, t, &result, mount, map[string]nextcloud.Permission{
			groupID:      nextcloud.PermissionRead,
			t.management: nextcloud.PermissionAll,
		}); err != nil {
			return result, err
		}
	}

	if err := s.ensureLeaf(ctx, t, &result, layout, groupID); err != nil {
		return result, err
	}

	for _, f := range t.byID {
		if layout.Contains(f.MountPoint) {
			continue
		}
		if _, ok := f.Grant(groupID); !ok {
			continue
		}
		if err := s.folders.RemoveGroup(ctx, f.ID, groupID); err != nil {
			return result, err
		}
		result.GrantsRemoved = append(result.GrantsRemoved, f.MountPoint+":"+groupID)
		s.logger.Info("removed stale grant", "folder", f.MountPoint, "group", groupID)
	}

	if err := s.refresh(ctx, t); err != nil {
		return result, err
	}
	if err := s.removeOrphans(ctx, t, &result, layout); err != nil {
		return result, err
	}
	return result, nil
}

// ensureFolder creates mount if missing and brings the given grants in line.
func (s *Service) ensureFolder(ctx context.Context, t *tree, result *SyncResult, mount string, grants map[string]nextcloud.Permission) error {
	f, ok := t.byMount[mount]
	if !ok {
		id, err := s.folders.CreateFolder(ctx, mount)
		if err != nil {
			return err
		}
		f = nextcloud.Folder{ID: id, MountPoint: mount, Groups: map[string]nextcloud.Permission{}}
		result.Created = append(result.Created, mount)
		s.logger.Info("created group folder", "folder", mount, "id", id)
	}
	if err := s.ensureGrants(ctx, result, &f, grants); err != nil {
		return err
	}
	t.byMount[mount] = f
	t.byID[f.ID] = f
	return nil
}

func (s *Service) ensureGrants(ctx context.Context, result *SyncResult, f *nextcloud.Folder, grants map[string]nextcloud.Permission) error {
	if f.Groups == nil {
		f.Groups = map[string]nextcloud.Permission{}
	}
	for group, want := range grants {
		have, ok := f.Grant(group)
		if !ok {
			if err := s.folders.AddGroup(ctx, f.ID, group); err != nil {
				return err
			}
			have = nextcloud.PermissionAll
			result.GrantsAdded = append(result.GrantsAdded, f.MountPoint+":"+group)
			s.logger.Info("added group to folder", "folder", f.MountPoint, "group", group)
		}
		if have != want {
			if err := s.folders.SetPermissions(ctx, f.ID, group, want); err != nil {
				return err
			}
			if ok {
				result.GrantsChanged = append(result.GrantsChanged, f.MountPoint+":"+group)
			}
			s.logger.Debug("set folder permissions", "folder", f.MountPoint, "group", group, "permissions", want)
		}
		f.Groups[group] = want
	}
	return nil
}

// ensureLeaf makes sure the project folder exists. A single folder outside
// the layout already giving the group write access is moved into place so
// its files survive a project rename.
func (s *Service) ensureLeaf(ctx context.Context, t *tree, result *SyncResult, layout FolderLayout, groupID string) error {
	grants := map[string]nextcloud.Permission{
		groupID:      nextcloud.PermissionWrite,
		t.management: nextcloud.PermissionAll,
	}
	if _, ok := t.byMount[layout.Leaf]; ok {
		return s.ensureFolder(ctx, t, result, layout.Leaf, grants)
	}

	var candidates []nextcloud.Folder
	for _, f := range t.byID {
		if layout.Contains(f.MountPoint) || isStructural(t.root, f.MountPoint) {
			continue
		}
		if p, ok := f.Grant(groupID); ok && p.Has(nextcloud.PermissionWrite) {
			candidates = append(candidates, f)
		}
	}

	if len(candidates) == 1 {
		f := candidates[0]
		if err := s.folders.RenameFolder(ctx, f.ID, layout.Leaf); err != nil {
			return err
		}
		s.logger.Info("renamed project folder", "from", f.MountPoint, "to", layout.Leaf, "id", f.ID)
		result.Renamed = append(result.Renamed, Rename{FolderID: f.ID, From: f.MountPoint, To: layout.Leaf})
		delete(t.byMount, f.MountPoint)
		f.MountPoint = layout.Leaf
		t.byMount[f.MountPoint] = f
		t.byID[f.ID] = f
	} else if len(candidates) > 1 {
		s.logger.Warn("ambiguous project folders, creating a new one",
			"group", groupID,
			"candidates", len(candidates))
	}
	return s.ensureFolder(ctx, t, result, layout.Leaf, grants)
}

// removeOrphans deletes empty folders outside keep that have nothing mounted
// below them: year folders of the current root, and folders left behind by an
// earlier root that carry nothing but the management grant. Folders still
// holding files are left alone. Deeper folders go first so that a stale root
// can follow its emptied children in the same pass.
func (s *Service) removeOrphans(ctx context.Context, t *tree, result *SyncResult, keep FolderLayout) error {
	candidates := make([]nextcloud.Folder, 0, len(t.byID))
	for _, f := range t.byID {
		if keep.Contains(f.MountPoint) {
			continue
		}
		if IsYearFolder(t.root, f.MountPoint) || t.stale(f) {
			candidates = append(candidates, f)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		di, dj := strings.Count(candidates[i].MountPoint, "/"), strings.Count(candidates[j].MountPoint, "/")
		if di != dj {
			return di > dj
		}
		return candidates[i].MountPoint < candidates[j].MountPoint
	})

	for _, f := range candidates {
		if t.occupied(f.MountPoint) {
			continue
		}
		if f.Size > 0 {
			s.logger.Warn("keeping orphaned folder with content", "folder", f.MountPoint, "size", f.Size)
			continue
		}
		if err := s.folders.DeleteFolder(ctx, f.ID); err != nil {
			return err
		}
		result.Deleted = append(result.Deleted, f.MountPoint)
		delete(t.byMount, f.MountPoint)
		delete(t.byID, f.ID)
		s.logger.Info("deleted orphaned folder", "folder", f.MountPoint)
	}
	return nil
}

// stale reports whether f is a leftover of the tree below a previous root
// folder: outside the current structure and granted to the management group
// alone.
func (t *tree) stale(f nextcloud.Folder) bool {
	if isStructural(t.root, f.MountPoint) || len(f.Groups) != 1 {
		return false
	}
	_, ok := f.Groups[t.management]
	return ok
}

func (t *tree) occupied(mountPoint string) bool {
	for mount := range t.byMount {
		if strings.HasPrefix(mount, mountPoint+"/") {
			return true
		}
	}
	return false
}

// RemoveProjectGroup tears down the folders of a deleted project. Folders
// the group could write to are deleted, shared parents only lose the grant.
func (s *Service) RemoveProjectGroup(ctx context.Context, groupID string) (result SyncResult, err error) {
	defer func() { metrics.RecordGroupSync(err) }()

	result.GroupID = groupID
	if !IsProjectGroup(groupID) {
		return result, fmt.Errorf("%s: %w", groupID, ErrNotProjectGroup)
	}
	t, err := s.load(ctx)
	if err != nil {
		return result, err
	}

	for _, f := range t.byID {
		p, ok := f.Grant(groupID)
		if !ok {
			continue
		}
		if p.Has(nextcloud.PermissionWrite) && !isStructural(t.root, f.MountPoint) {
			if err := s.folders.DeleteFolder(ctx, f.ID); err != nil {
				return result, err
			}
			result.Deleted = append(result.Deleted, f.MountPoint)
			s.logger.Info("deleted project folder", "folder", f.MountPoint, "group", groupID)
			continue
		}
		if err := s.folders.RemoveGroup(ctx, f.ID, groupID); err != nil {
			return result, err
		}
		result.GrantsRemoved = append(result.GrantsRemoved, f.MountPoint+":"+groupID)
	}

	if err := s.refresh(ctx, t); err != nil {
		return result, err
	}
	if err := s.removeOrphans(ctx, t, &result, FolderLayout{}); err != nil {
		return result, err
	}
	return result, nil
}

// Progress receives the outcome of each group during SyncAll.
type Progress func(index, total int, result SyncResult, err error)

// SyncAll synchronizes every project group. A failing group does not stop
// the run; the failures are returned joined.
func (s *Service) SyncAll(ctx context.Context, progress Progress) ([]SyncResult, error) {
	groups, err := s.groups.SearchGroups(ctx, ProjectGroupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list project groups: %w", err)
	}

	results := make([]SyncResult, 0, len(groups))
	var errs []error
	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := s.SyncProjectGroup(ctx, group.ID)
		if err != nil {
			s.logger.Error("project group synchronization failed", "group", group.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", group.ID, err))
		}
		results = append(results, result)
		if progress != nil {
			progress(i+1, len(groups), result, err)
		}
	}
	return results, errors.Join(errs...)
}
