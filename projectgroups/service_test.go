package projectgroups

import (
	"context"
	"testing"

	"github.com/cafevdb/cafevdbmembers/nextcloud"
	"github.com/cafevdb/cafevdbmembers/nextcloud/memory"
	"github.com/cafevdb/cafevdbmembers/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const management = "cafevdb-management"

type fixture struct {
	folders *memory.GroupFolders
	groups  *memory.Groups
	config  *settings.Settings
	service *Service
}

func newFixture(groups ...nextcloud.Group) *fixture {
	f := &fixture{
		folders: memory.NewGroupFolders(),
		groups:  memory.NewGroups(groups...),
	}
	f.config = settings.New(settings.NewMemoryStore(), settings.Defaults{RootFolder: "CAFEVDB", ManagementGroup: management})
	f.service = NewService(f.folders, f.groups, f.config)
	return f
}

// mounts maps every mount point to its grants.
func (f *fixture) mounts(t *testing.T) map[string]map[string]nextcloud.Permission {
	t.Helper()
	folders, err := f.folders.Folders(context.Background())
	require.NoError(t, err)
	got := make(map[string]map[string]nextcloud.Permission, len(folders))
	for _, folder := range folders {
		got[folder.MountPoint] = folder.Groups
	}
	return got
}

func grants(group string, p nextcloud.Permission) map[string]nextcloud.Permission {
	return map[string]nextcloud.Permission{group: p, management: nextcloud.PermissionAll}
}

func TestSyncProjectGroup_CreatesTree(t *testing.T) {
	f := newFixture(nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2024"})

	result, err := f.service.SyncProjectGroup(context.Background(), "cafevdb-project-7")
	require.NoError(t, err)
	assert.Equal(t, "CAFEVDB/projects/2024/Tour2024", result.Leaf)
	assert.Equal(t, []string{"CAFEVDB", "CAFEVDB/projects", "CAFEVDB/projects/2024", "CAFEVDB/projects/2024/Tour2024"}, result.Created)

	assert.Equal(t, map[string]map[string]nextcloud.Permission{
		"CAFEVDB":                        grants("cafevdb-project-7", nextcloud.PermissionRead),
		"CAFEVDB/projects":               grants("cafevdb-project-7", nextcloud.PermissionRead),
		"CAFEVDB/projects/2024":          grants("cafevdb-project-7", nextcloud.PermissionRead),
		"CAFEVDB/projects/2024/Tour2024": grants("cafevdb-project-7", nextcloud.PermissionWrite),
	}, f.mounts(t))
}

func TestSyncProjectGroup_WithoutYear(t *testing.T) {
	f := newFixture(nextcloud.Group{ID: "cafevdb-project-3", DisplayName: "Board"})

	_, err := f.service.SyncProjectGroup(context.Background(), "cafevdb-project-3")
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]nextcloud.Permission{
		"CAFEVDB":       grants("cafevdb-project-3", nextcloud.PermissionRead),
		"CAFEVDB/Board": grants("cafevdb-project-3", nextcloud.PermissionWrite),
	}, f.mounts(t))
}

func TestSyncProjectGroup_Idempotent(t *testing.T) {
	f := newFixture(
		nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2024"},
		nextcloud.Group{ID: "cafevdb-project-8", DisplayName: "Gala2024"},
	)
	ctx := context.Background()

	_, err := f.service.SyncAll(ctx, nil)
	require.NoError(t, err)
	before := f.mounts(t)
	f.folders.ResetCalls()

	for _, id := range []string{"cafevdb-project-7", "cafevdb-project-8"} {
		result, err := f.service.SyncProjectGroup(ctx, id)
		require.NoError(t, err)
		assert.False(t, result.Changed(), "second sync of %s changed %+v", id, result)
	}
	assert.Empty(t, f.folders.Calls())
	assert.Equal(t, before, f.mounts(t))
	assert.Len(t, before, 5)
}

func TestSyncProjectGroup_RenameKeepsContents(t *testing.T) {
	f := newFixture(nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2024"})
	ctx := context.Background()

	_, err := f.service.SyncProjectGroup(ctx, "cafevdb-project-7")
	require.NoError(t, err)
	leaf, ok := f.folders.FolderAt("CAFEVDB/projects/2024/Tour2024")
	require.True(t, ok)
	require.NoError(t, f.folders.AddFile(leaf.ID, "setlist.pdf"))

	f.groups.Put(nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2025"})
	result, err := f.service.SyncProjectGroup(ctx, "cafevdb-project-7")
	require.NoError(t, err)

	assert.Equal(t, []Rename{{FolderID: leaf.ID, From: "CAFEVDB/projects/2024/Tour2024", To: "CAFEVDB/projects/2025/Tour2025"}}, result.Renamed)
	assert.Equal(t, []string{"CAFEVDB/projects/2025"}, result.Created)
	assert.Equal(t, []string{"CAFEVDB/projects/2024"}, result.Deleted)

	moved, ok := f.folders.FolderAt("CAFEVDB/projects/2025/Tour2025")
	require.True(t, ok)
	assert.Equal(t, leaf.ID, moved.ID)
	assert.Equal(t, []string{"setlist.pdf"}, f.folders.Files(moved.ID))

	assert.Equal(t, map[string]map[string]nextcloud.Permission{
		"CAFEVDB":                        grants("cafevdb-project-7", nextcloud.PermissionRead),
		"CAFEVDB/projects":               grants("cafevdb-project-7", nextcloud.PermissionRead),
		"CAFEVDB/projects/2025":          grants("cafevdb-project-7", nextcloud.PermissionRead),
		"CAFEVDB/projects/2025/Tour2025": grants("cafevdb-project-7", nextcloud.PermissionWrite),
	}, f.mounts(t))
}

func TestSyncProjectGroup_AmbiguousCandidates(t *testing.T) {
	f := newFixture(nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Board"})
	ctx := context.Background()

	for _, mount := range []string{"Old/One", "Old/Two"} {
		id, err := f.folders.CreateFolder(ctx, mount)
		require.NoError(t, err)
		require.NoError(t, f.folders.AddGroup(ctx, id, "cafevdb-project-7"))
		require.NoError(t, f.folders.SetPermissions(ctx, id, "cafevdb-project-7", nextcloud.PermissionWrite))
	}

	result, err := f.service.SyncProjectGroup(ctx, "cafevdb-project-7")
	require.NoError(t, err)
	assert.Empty(t, result.Renamed)
	assert.Contains(t, result.Created, "CAFEVDB/Board")
	assert.ElementsMatch(t, []string{"Old/One:cafevdb-project-7", "Old/Two:cafevdb-project-7"}, result.GrantsRemoved)

	mounts := f.mounts(t)
	assert.Empty(t, mounts["Old/One"])
	assert.Empty(t, mounts["Old/Two"])
}

func TestRemoveProjectGroup_KeepsSiblingYear(t *testing.T) {
	f := newFixture(
		nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2024"},
		nextcloud.Group{ID: "cafevdb-project-8", DisplayName: "Gala2024"},
	)
	ctx := context.Background()
	_, err := f.service.SyncAll(ctx, nil)
	require.NoError(t, err)

	result, err := f.service.RemoveProjectGroup(ctx, "cafevdb-project-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"CAFEVDB/projects/2024/Tour2024"}, result.Deleted)
	assert.ElementsMatch(t, []string{
		"CAFEVDB:cafevdb-project-7",
		"CAFEVDB/projects:cafevdb-project-7",
		"CAFEVDB/projects/2024:cafevdb-project-7",
	}, result.GrantsRemoved)

	assert.Equal(t, map[string]map[string]nextcloud.Permission{
		"CAFEVDB":                        grants("cafevdb-project-8", nextcloud.PermissionRead),
		"CAFEVDB/projects":               grants("cafevdb-project-8", nextcloud.PermissionRead),
		"CAFEVDB/projects/2024":          grants("cafevdb-project-8", nextcloud.PermissionRead),
		"CAFEVDB/projects/2024/Gala2024": grants("cafevdb-project-8", nextcloud.PermissionWrite),
	}, f.mounts(t))

	// The last project of the year takes the year folder with it.
	result, err = f.service.RemoveProjectGroup(ctx, "cafevdb-project-8")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CAFEVDB/projects/2024/Gala2024", "CAFEVDB/projects/2024"}, result.Deleted)

	mounts := f.mounts(t)
	assert.Len(t, mounts, 2)
	assert.Contains(t, mounts, "CAFEVDB/projects")
}

func TestSyncProjectGroup_OrphanYearFolders(t *testing.T) {
	f := newFixture(nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2024"})
	ctx := context.Background()

	empty, err := f.folders.CreateFolder(ctx, "CAFEVDB/projects/2018")
	require.NoError(t, err)
	withFiles, err := f.folders.CreateFolder(ctx, "CAFEVDB/projects/2019")
	require.NoError(t, err)
	require.NoError(t, f.folders.AddFile(withFiles, "archive.zip"))
	_, err = f.folders.CreateFolder(ctx, "CAFEVDB/projects/2020")
	require.NoError(t, err)
	_, err = f.folders.CreateFolder(ctx, "CAFEVDB/projects/2020/Legacy2020")
	require.NoError(t, err)

	result, err := f.service.SyncProjectGroup(ctx, "cafevdb-project-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"CAFEVDB/projects/2018"}, result.Deleted)

	mounts := f.mounts(t)
	assert.NotContains(t, mounts, "CAFEVDB/projects/2018")
	assert.Contains(t, mounts, "CAFEVDB/projects/2019")
	assert.Contains(t, mounts, "CAFEVDB/projects/2020")
	_, ok := f.folders.FolderAt("CAFEVDB/projects/2018")
	assert.False(t, ok, "folder %d should be gone", empty)
}

func TestSyncAll_RootFolderChange(t *testing.T) {
	f := newFixture(
		nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2024"},
		nextcloud.Group{ID: "cafevdb-project-8", DisplayName: "Board"},
	)
	ctx := context.Background()

	_, err := f.service.SyncAll(ctx, nil)
	require.NoError(t, err)
	_, err = f.config.SetApp(ctx, settings.RootFolder, "NEW")
	require.NoError(t, err)

	results, err := f.service.SyncAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"CAFEVDB/projects/2024", "CAFEVDB/projects"}, results[0].Deleted)
	assert.Equal(t, []string{"CAFEVDB"}, results[1].Deleted)

	both := map[string]nextcloud.Permission{
		"cafevdb-project-7": nextcloud.PermissionRead,
		"cafevdb-project-8": nextcloud.PermissionRead,
		management:          nextcloud.PermissionAll,
	}
	assert.Equal(t, map[string]map[string]nextcloud.Permission{
		"NEW":                        both,
		"NEW/projects":               grants("cafevdb-project-7", nextcloud.PermissionRead),
		"NEW/projects/2024":          grants("cafevdb-project-7", nextcloud.PermissionRead),
		"NEW/projects/2024/Tour2024": grants("cafevdb-project-7", nextcloud.PermissionWrite),
		"NEW/Board":                  grants("cafevdb-project-8", nextcloud.PermissionWrite),
	}, f.mounts(t))
}

func TestSyncAll_RootFolderChangeKeepsContent(t *testing.T) {
	f := newFixture(nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2024"})
	ctx := context.Background()

	_, err := f.service.SyncAll(ctx, nil)
	require.NoError(t, err)
	projects, ok := f.folders.FolderAt("CAFEVDB/projects")
	require.True(t, ok)
	require.NoError(t, f.folders.AddFile(projects.ID, "README.md"))
	_, err = f.config.SetApp(ctx, settings.RootFolder, "NEW")
	require.NoError(t, err)

	results, err := f.service.SyncAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"CAFEVDB/projects/2024"}, results[0].Deleted)

	mounts := f.mounts(t)
	assert.Equal(t, map[string]nextcloud.Permission{management: nextcloud.PermissionAll}, mounts["CAFEVDB/projects"])
	assert.Contains(t, mounts, "CAFEVDB")
	assert.Contains(t, mounts, "NEW/projects/2024/Tour2024")
}

func TestSyncProjectGroup_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not a project group", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.SyncProjectGroup(ctx, "musicians")
		assert.ErrorIs(t, err, ErrNotProjectGroup)
		_, err = f.service.RemoveProjectGroup(ctx, "musicians")
		assert.ErrorIs(t, err, ErrNotProjectGroup)
	})

	t.Run("unknown group", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.SyncProjectGroup(ctx, "cafevdb-project-1")
		assert.ErrorIs(t, err, nextcloud.ErrGroupNotFound)
	})

	t.Run("folder vanished", func(t *testing.T) {
		f := newFixture(nextcloud.Group{ID: "cafevdb-project-7", DisplayName: "Tour2024"})
		f.folders.FailOn("add group", nextcloud.ErrFolderNotFound)
		_, err := f.service.SyncProjectGroup(ctx, "cafevdb-project-7")
		assert.ErrorIs(t, err, nextcloud.ErrFolderNotFound)
		assert.ErrorContains(t, err, "add group")
	})
}

func TestSyncAll_ContinuesAfterFailure(t *testing.T) {
	f := newFixture(
		nextcloud.Group{ID: "cafevdb-project-1", DisplayName: "Tour2024"},
		nextcloud.Group{ID: "cafevdb-project-2", DisplayName: "   "},
		nextcloud.Group{ID: "cafevdb-project-3", DisplayName: "Gala2025"},
		nextcloud.Group{ID: "musicians"},
	)

	type step struct {
		index, total int
		group        string
		failed       bool
	}
	var steps []step
	results, err := f.service.SyncAll(context.Background(), func(index, total int, result SyncResult, err error) {
		steps = append(steps, step{index, total, result.GroupID, err != nil})
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "cafevdb-project-2")
	assert.Len(t, results, 3)
	assert.Equal(t, []step{
		{1, 3, "cafevdb-project-1", false},
		{2, 3, "cafevdb-project-2", true},
		{3, 3, "cafevdb-project-3", false},
	}, steps)

	mounts := f.mounts(t)
	assert.Contains(t, mounts, "CAFEVDB/projects/2024/Tour2024")
	assert.Contains(t, mounts, "CAFEVDB/projects/2025/Gala2025")
}
