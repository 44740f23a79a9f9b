// Package memory provides in-memory stand-ins for the cloud's group folders
// app and group directory, used by tests and local development.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/cafevdb/cafevdbmembers/nextcloud"
)

type folder struct {
	nextcloud.Folder
	files []string
}

// GroupFolders implements nextcloud.GroupFolders in memory. Folders carry a
// list of file names so tests can check that a rename keeps the contents.
type GroupFolders struct {
	mu      sync.Mutex
	nextID  int
	folders map[int]*folder
	failOn  map[string]error
	calls   []string
}

// NewGroupFolders creates an empty group folder store
func NewGroupFolders() *GroupFolders {
	return &GroupFolders{
		nextID:  1,
		folders: make(map[int]*folder),
		failOn:  make(map[string]error),
	}
}

// FailOn makes the named operation ("create", "add group", "remove group",
// "set permissions", "rename", "delete", "list") fail with err. A nil err
// clears the failure.
func (g *GroupFolders) FailOn(operation string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failOn, operation)
		return
	}
	g.failOn[operation] = err
}

// Calls returns the mutating operations performed so far.
func (g *GroupFolders) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// ResetCalls clears the operation log.
func (g *GroupFolders) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// AddFile places a file into a folder.
func (g *GroupFolders) AddFile(folderID int, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.folders[folderID]
	if !ok {
		return fmt.Errorf("folder %d: %w", folderID, nextcloud.ErrFolderNotFound)
	}
	f.files = append(f.files, name)
	f.Size += int64(len(name))
	return nil
}

// Files lists the files of a folder.
func (g *GroupFolders) Files(folderID int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if f, ok := g.folders[folderID]; ok {
		return append([]string(nil), f.files...)
	}
	return nil
}

// FolderAt returns the folder mounted at mountPoint.
func (g *GroupFolders) FolderAt(mountPoint string) (nextcloud.Folder, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, f := range g.folders {
		if f.MountPoint == mountPoint {
			return cloneFolder(f.Folder), true
		}
	}
	return nextcloud.Folder{}, false
}

func cloneFolder(f nextcloud.Folder) nextcloud.Folder {
	f.Groups = maps.Clone(f.Groups)
	if f.Groups == nil {
		f.Groups = make(map[string]nextcloud.Permission)
	}
	return f
}

// begin checks injected failures and logs the call. It must be called with
// the lock held.
func (g *GroupFolders) begin(operation string, folderID int) (*folder, error) {
	if err := g.failOn[operation]; err != nil {
		return nil, fmt.Errorf("%s: folder %d: %w", operation, folderID, err)
	}
	g.calls = append(g.calls, fmt.Sprintf("%s %d", operation, folderID))
	f, ok := g.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("%s: folder %d: %w", operation, folderID, nextcloud.ErrFolderNotFound)
	}
	return f, nil
}

func (g *GroupFolders) Folders(ctx context.Context) ([]nextcloud.Folder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failOn["list"]; err != nil {
		return nil, err
	}
	folders := make([]nextcloud.Folder, 0, len(g.folders))
	for _, f := range g.folders {
		folders = append(folders, cloneFolder(f.Folder))
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders, nil
}

func (g *GroupFolders) CreateFolder(ctx context.Context, mountPoint string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failOn["create"]; err != nil {
		return 0, fmt.Errorf("create %s: %w", mountPoint, err)
	}
	mountPoint = strings.Trim(mountPoint, "/")
	for _, f := range g.folders {
		if f.MountPoint == mountPoint {
			return 0, fmt.Errorf("create %s: mount point in use by folder %d", mountPoint, f.ID)
		}
	}
	id := g.nextID
	g.nextID++
	g.folders[id] = &folder{Folder: nextcloud.Folder{
		ID:         id,
		MountPoint: mountPoint,
		Groups:     make(map[string]nextcloud.Permission),
		Quota:      -3,
	}}
	g.calls = append(g.calls, fmt.Sprintf("create %s", mountPoint))
	return id, nil
}

// AddGroup grants the group full access, like the group folders app does.
func (g *GroupFolders) AddGroup(ctx context.Context, folderID int, group string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, err := g.begin("add group", folderID)
	if err != nil {
		return err
	}
	if _, ok := f.Groups[group]; !ok {
		f.Groups[group] = nextcloud.PermissionAll
	}
	return nil
}

func (g *GroupFolders) RemoveGroup(ctx context.Context, folderID int, group string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, err := g.begin("remove group", folderID)
	if err != nil {
		return err
	}
	delete(f.Groups, group)
	return nil
}

func (g *GroupFolders) SetPermissions(ctx context.Context, folderID int, group string, permissions nextcloud.Permission) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, err := g.begin("set permissions", folderID)
	if err != nil {
		return err
	}
	if _, ok := f.Groups[group]; !ok {
		return fmt.Errorf("set permissions: folder %d: group %s has no access", folderID, group)
	}
	f.Groups[group] = permissions
	return nil
}

func (g *GroupFolders) RenameFolder(ctx context.Context, folderID int, mountPoint string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, err := g.begin("rename", folderID)
	if err != nil {
		return err
	}
	f.MountPoint = strings.Trim(mountPoint, "/")
	return nil
}

func (g *GroupFolders) DeleteFolder(ctx context.Context, folderID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.begin("delete", folderID); err != nil {
		return err
	}
	delete(g.folders, folderID)
	return nil
}
