package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cafevdb/cafevdbmembers/nextcloud"
)

// Groups implements nextcloud.GroupDirectory in memory.
type Groups struct {
	mu     sync.RWMutex
	groups map[string]nextcloud.Group
}

// NewGroups creates a directory holding the given groups
func NewGroups(groups ...nextcloud.Group) *Groups {
	d := &Groups{groups: make(map[string]nextcloud.Group)}
	for _, g := range groups {
		d.Put(g)
	}
	return d
}

// Put adds or replaces a group.
func (d *Groups) Put(group nextcloud.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if group.DisplayName == "" {
		group.DisplayName = group.ID
	}
	d.groups[group.ID] = group
}

// Remove deletes a group.
func (d *Groups) Remove(groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.groups, groupID)
}

func (d *Groups) Group(ctx context.Context, groupID string) (nextcloud.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nextcloud.Group{}, fmt.Errorf("group %s: %w", groupID, nextcloud.ErrGroupNotFound)
	}
	return g, nil
}

func (d *Groups) SearchGroups(ctx context.Context, prefix string) ([]nextcloud.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var groups []nextcloud.Group
	for id, g := range d.groups {
		if strings.HasPrefix(id, prefix) {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}
