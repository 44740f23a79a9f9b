package nextcloud

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequests(t *testing.T, handler http.HandlerFunc) *RequestService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wrapper, err := httpclient.NewHttpClientWrapper(server.Client(), *u, logger)
	require.NoError(t, err)
	return NewRequestService(wrapper, logger)
}

func ocsReply(w http.ResponseWriter, statusCode int, data string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ocs":{"meta":{"status":"ok","statuscode":` + strconv.Itoa(statusCode) + `,"message":""},"data":` + data + `}}`))
}

func TestParseFolders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Folder
	}{
		{
			name: "empty list",
			raw:  `[]`,
			want: nil,
		},
		{
			name: "plain permissions",
			raw: `{"2":{"id":2,"mount_point":"CAFEVDB/projects","groups":{"cafevdb-management":31,"cafevdb-project-7":1},"quota":-3,"size":0,"acl":false},
			       "1":{"id":1,"mount_point":"CAFEVDB","groups":[],"quota":-3,"size":12,"acl":true}}`,
			want: []Folder{
				{ID: 1, MountPoint: "CAFEVDB", Groups: map[string]Permission{}, Quota: -3, Size: 12, ACL: true},
				{ID: 2, MountPoint: "CAFEVDB/projects", Groups: map[string]Permission{
					"cafevdb-management": PermissionAll,
					"cafevdb-project-7":  PermissionRead,
				}, Quota: -3},
			},
		},
		{
			name: "object permissions",
			raw:  `{"5":{"id":5,"mount_point":"Board","groups":{"board":{"displayName":"Board","permissions":15,"type":"group"}}}}`,
			want: []Folder{
				{ID: 5, MountPoint: "Board", Groups: map[string]Permission{"board": PermissionWrite}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFolders([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseFolders([]byte(`"nope"`))
	assert.Error(t, err)
}

func TestGroupFolders_Mutations(t *testing.T) {
	type request struct {
		method string
		path   string
		form   url.Values
	}
	var seen []request

	rs := newTestRequests(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = append(seen, request{method: r.Method, path: r.URL.Path, form: r.PostForm})
		switch {
		case r.URL.Path == "/index.php/apps/groupfolders/folders/404/mountpoint":
			ocsReply(w, 998, `[]`)
		case r.Method == http.MethodPost && r.URL.Path == "/index.php/apps/groupfolders/folders":
			ocsReply(w, 100, `{"id":9}`)
		default:
			ocsReply(w, 100, `{"success":true}`)
		}
	})
	gf := NewGroupFolders(rs)
	ctx := context.Background()

	id, err := gf.CreateFolder(ctx, "CAFEVDB/projects/2024/Tour2024")
	require.NoError(t, err)
	assert.Equal(t, 9, id)

	require.NoError(t, gf.AddGroup(ctx, 9, "cafevdb-project-7"))
	require.NoError(t, gf.SetPermissions(ctx, 9, "cafevdb-project-7", PermissionWrite))
	require.NoError(t, gf.RenameFolder(ctx, 9, "CAFEVDB/projects/2025/Tour2025"))
	require.NoError(t, gf.RemoveGroup(ctx, 9, "cafevdb-project-7"))
	require.NoError(t, gf.DeleteFolder(ctx, 9))

	err = gf.RenameFolder(ctx, 404, "x")
	assert.ErrorIs(t, err, ErrFolderNotFound)
	assert.ErrorContains(t, err, "folder 404")

	require.Len(t, seen, 7)
	assert.Equal(t, "CAFEVDB/projects/2024/Tour2024", seen[0].form.Get("mountpoint"))
	assert.Equal(t, request{http.MethodPost, "/index.php/apps/groupfolders/folders/9/groups", url.Values{"group": {"cafevdb-project-7"}}}, seen[1])
	assert.Equal(t, "/index.php/apps/groupfolders/folders/9/groups/cafevdb-project-7", seen[2].path)
	assert.Equal(t, "15", seen[2].form.Get("permissions"))
	assert.Equal(t, "CAFEVDB/projects/2025/Tour2025", seen[3].form.Get("mountpoint"))
	assert.Equal(t, http.MethodDelete, seen[4].method)
	assert.Equal(t, "/index.php/apps/groupfolders/folders/9", seen[5].path)
}

func TestGroupFolders_Folders(t *testing.T) {
	rs := newTestRequests(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		ocsReply(w, 100, `{"3":{"id":3,"mount_point":"CAFEVDB","groups":{"cafevdb-management":31}}}`)
	})

	folders, err := NewGroupFolders(rs).Folders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 1)
	perms, ok := folders[0].Grant("cafevdb-management")
	assert.True(t, ok)
	assert.Equal(t, PermissionAll, perms)
}

func TestPermission_String(t *testing.T) {
	assert.Equal(t, "none", Permission(0).String())
	assert.Equal(t, "read|update|create|delete", PermissionWrite.String())
	assert.True(t, PermissionAll.Has(PermissionWrite))
	assert.False(t, PermissionRead.Has(PermissionWrite))
}

func TestGroupDirectory(t *testing.T) {
	rs := newTestRequests(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ocs/v2.php/cloud/groups/details", r.URL.Path)
		switch r.URL.Query().Get("search") {
		case "cafevdb-project-":
			ocsReply(w, 200, `{"groups":[
				{"id":"cafevdb-project-7","displayname":"Tour2024"},
				{"id":"cafevdb-project-8","displayname":"Spring Concert 2025"},
				{"id":"old-cafevdb-project-1","displayname":"Legacy"}]}`)
		case "cafevdb-project-7":
			ocsReply(w, 200, `{"groups":[{"id":"cafevdb-project-7","displayname":"Tour2024"},{"id":"cafevdb-project-70","displayname":""}]}`)
		default:
			ocsReply(w, 200, `{"groups":[]}`)
		}
	})
	dir := NewGroupDirectory(rs)
	ctx := context.Background()

	groups, err := dir.SearchGroups(ctx, "cafevdb-project-")
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{ID: "cafevdb-project-7", DisplayName: "Tour2024"},
		{ID: "cafevdb-project-8", DisplayName: "Spring Concert 2025"},
	}, groups)

	group, err := dir.Group(ctx, "cafevdb-project-7")
	require.NoError(t, err)
	assert.Equal(t, "Tour2024", group.DisplayName)

	_, err = dir.Group(ctx, "cafevdb-project-99")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}
