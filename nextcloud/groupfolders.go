package nextcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
	"github.com/cafevdb/cafevdbmembers/internal/metrics"
	"github.com/tidwall/gjson"
)

// Permission is the group folders permission bit mask.
type Permission int

const (
	PermissionRead   Permission = 1
	PermissionUpdate Permission = 2
	PermissionCreate Permission = 4
	PermissionDelete Permission = 8
	PermissionShare  Permission = 16
	PermissionAll    Permission = 31

	// PermissionWrite is the access of a group working in its folder.
	PermissionWrite = PermissionRead | PermissionUpdate | PermissionCreate | PermissionDelete
)

// Has reports whether all bits of other are set.
func (p Permission) Has(other Permission) bool { return p&other == other }

func (p Permission) String() string {
	if p == 0 {
		return "none"
	}
	var parts []string
	for _, bit := range []struct {
		p    Permission
		name string
	}{
		{PermissionRead, "read"},
		{PermissionUpdate, "update"},
		{PermissionCreate, "create"},
		{PermissionDelete, "delete"},
		{PermissionShare, "share"},
	} {
		if p.Has(bit.p) {
			parts = append(parts, bit.name)
		}
	}
	return strings.Join(parts, "|")
}

// Folder is one group folder.
type Folder struct {
	ID         int
	MountPoint string
	Groups     map[string]Permission
	Quota      int64
	Size       int64
	ACL        bool
}

// Grant returns the group's permissions on the folder.
func (f Folder) Grant(group string) (Permission, bool) {
	p, ok := f.Groups[group]
	return p, ok
}

// GroupFolders is the API of the group folders app.
type GroupFolders interface {
	Folders(ctx context.Context) ([]Folder, error)
	CreateFolder(ctx context.Context, mountPoint string) (int, error)
	AddGroup(ctx context.Context, folderID int, group string) error
	RemoveGroup(ctx context.Context, folderID int, group string) error
	SetPermissions(ctx context.Context, folderID int, group string, permissions Permission) error
	RenameFolder(ctx context.Context, folderID int, mountPoint string) error
	DeleteFolder(ctx context.Context, folderID int) error
}

const groupFoldersRoute = "/index.php/apps/groupfolders/folders"

type groupFoldersClient struct {
	requests *RequestService
}

// NewGroupFolders creates a group folders client on top of the request service
func NewGroupFolders(requests *RequestService) GroupFolders {
	return &groupFoldersClient{requests: requests}
}

func folderRoute(folderID int, parts ...string) string {
	route := groupFoldersRoute + "/" + strconv.Itoa(folderID)
	for _, part := range parts {
		route += "/" + url.PathEscape(part)
	}
	return route
}

// call runs an OCS call and maps not-found replies onto ErrFolderNotFound.
func (c *groupFoldersClient) call(ctx context.Context, operation string, folderID int, method, route string, params url.Values, out any) error {
	err := c.requests.Call(ctx, method, route, params, out, true)
	if err == nil {
		if method != http.MethodGet {
			metrics.RecordFolderOperation(operation)
		}
		return nil
	}
	if httpclient.IsNotFound(err) {
		return fmt.Errorf("%s: folder %d: %w", operation, folderID, ErrFolderNotFound)
	}
	return fmt.Errorf("%s: folder %d: %w", operation, folderID, err)
}

func (c *groupFoldersClient) Folders(ctx context.Context) ([]Folder, error) {
	var raw json.RawMessage
	if err := c.requests.Call(ctx, http.MethodGet, groupFoldersRoute, nil, &raw, true); err != nil {
		return nil, fmt.Errorf("failed to list group folders: %w", err)
	}
	return parseFolders(raw)
}

// parseFolders decodes the folder map of the list endpoint. An empty list is
// sent as a JSON array. Group grants are either a plain permission number
// or an object carrying it.
func parseFolders(raw []byte) ([]Folder, error) {
	data := gjson.ParseBytes(raw)
	if !data.IsObject() && !data.IsArray() {
		return nil, fmt.Errorf("unexpected group folder list: %s", string(raw))
	}

	var folders []Folder
	data.ForEach(func(_, value gjson.Result) bool {
		folder := Folder{
			ID:         int(value.Get("id").Int()),
			MountPoint: value.Get("mount_point").String(),
			Quota:      value.Get("quota").Int(),
			Size:       value.Get("size").Int(),
			ACL:        value.Get("acl").Bool(),
			Groups:     make(map[string]Permission),
		}
		value.Get("groups").ForEach(func(group, grant gjson.Result) bool {
			perms := grant.Int()
			if grant.IsObject() {
				perms = grant.Get("permissions").Int()
			}
			folder.Groups[group.String()] = Permission(perms)
			return true
		})
		folders = append(folders, folder)
		return true
	})

	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders, nil
}

func (c *groupFoldersClient) CreateFolder(ctx context.Context, mountPoint string) (int, error) {
	var created struct {
		ID int `json:"id"`
	}
	params := url.Values{"mountpoint": {mountPoint}}
	if err := c.requests.Call(ctx, http.MethodPost, groupFoldersRoute, params, &created, true); err != nil {
		return 0, fmt.Errorf("failed to create group folder %s: %w", mountPoint, err)
	}
	if created.ID == 0 {
		return 0, fmt.Errorf("failed to create group folder %s: no id returned", mountPoint)
	}
	metrics.RecordFolderOperation("create")
	return created.ID, nil
}

func (c *groupFoldersClient) AddGroup(ctx context.Context, folderID int, group string) error {
	return c.call(ctx, "add group", folderID, http.MethodPost, folderRoute(folderID, "groups"),
		url.Values{"group": {group}}, nil)
}

func (c *groupFoldersClient) RemoveGroup(ctx context.Context, folderID int, group string) error {
	return c.call(ctx, "remove group", folderID, http.MethodDelete, folderRoute(folderID, "groups", group), nil, nil)
}

func (c *groupFoldersClient) SetPermissions(ctx context.Context, folderID int, group string, permissions Permission) error {
	return c.call(ctx, "set permissions", folderID, http.MethodPost, folderRoute(folderID, "groups", group),
		url.Values{"permissions": {strconv.Itoa(int(permissions))}}, nil)
}

func (c *groupFoldersClient) RenameFolder(ctx context.Context, folderID int, mountPoint string) error {
	return c.call(ctx, "rename", folderID, http.MethodPost, folderRoute(folderID, "mountpoint"),
		url.Values{"mountpoint": {mountPoint}}, nil)
}

func (c *groupFoldersClient) DeleteFolder(ctx context.Context, folderID int) error {
	return c.call(ctx, "delete", folderID, http.MethodDelete, folderRoute(folderID), nil, nil)
}
