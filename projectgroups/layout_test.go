package projectgroups

import (
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectYear(t *testing.T) {
	tests := []struct {
		name string
		want mo.Option[int]
	}{
		{"Tour2024", mo.Some(2024)},
		{"Spring Concert 2025 ", mo.Some(2025)},
		{"Board", mo.None[int]()},
		{"Tour24", mo.None[int]()},
		{"2024Tour", mo.None[int]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProjectYear(tt.name))
		})
	}
}

func TestNewFolderLayout(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		project string
		want    FolderLayout
	}{
		{
			name:    "with year",
			root:    "/CAFEVDB/",
			project: "Tour2024",
			want: FolderLayout{
				Root:      "CAFEVDB",
				Ancestors: []string{"CAFEVDB", "CAFEVDB/projects", "CAFEVDB/projects/2024"},
				Leaf:      "CAFEVDB/projects/2024/Tour2024",
			},
		},
		{
			name:    "without year",
			root:    "CAFEVDB",
			project: "Board",
			want:    FolderLayout{Root: "CAFEVDB", Ancestors: []string{"CAFEVDB"}, Leaf: "CAFEVDB/Board"},
		},
		{
			name:    "empty root with year",
			root:    "",
			project: "Gala2023",
			want: FolderLayout{
				Ancestors: []string{"projects", "projects/2023"},
				Leaf:      "projects/2023/Gala2023",
			},
		},
		{
			name:    "empty root without year",
			root:    "/",
			project: "Board",
			want:    FolderLayout{Leaf: "Board"},
		},
		{
			name:    "slashes in name",
			root:    "Orchestra/Shared",
			project: "A/B 2024",
			want: FolderLayout{
				Root:      "Orchestra/Shared",
				Ancestors: []string{"Orchestra/Shared", "Orchestra/Shared/projects", "Orchestra/Shared/projects/2024"},
				Leaf:      "Orchestra/Shared/projects/2024/A-B 2024",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFolderLayout(tt.root, tt.project)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Contains(got.Leaf))
			assert.False(t, got.IsAncestor(got.Leaf))
		})
	}

	_, err := NewFolderLayout("CAFEVDB", "  ")
	assert.Error(t, err)
}

func TestIsYearFolder(t *testing.T) {
	assert.True(t, IsYearFolder("CAFEVDB", "CAFEVDB/projects/2024"))
	assert.True(t, IsYearFolder("", "projects/2024"))
	assert.False(t, IsYearFolder("CAFEVDB", "CAFEVDB/projects/2024/Tour2024"))
	assert.False(t, IsYearFolder("CAFEVDB", "CAFEVDB/projects/24"))
	assert.False(t, IsYearFolder("CAFEVDB", "Other/projects/2024"))
	assert.False(t, IsYearFolder("CAFEVDB", "CAFEVDB/2024"))
}

func TestProjectGroupID(t *testing.T) {
	assert.Equal(t, "cafevdb-project-17", ProjectGroupID(17))
	assert.True(t, IsProjectGroup("cafevdb-project-17"))
	assert.False(t, IsProjectGroup("cafevdb-project-"))
	assert.False(t, IsProjectGroup("musicians"))
}
