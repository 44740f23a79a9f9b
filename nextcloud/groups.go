package nextcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Group is a cloud user group.
type Group struct {
	ID          string
	DisplayName string
}

// GroupDirectory looks up groups of the cloud's user backend.
type GroupDirectory interface {
	Group(ctx context.Context, groupID string) (Group, error)
	SearchGroups(ctx context.Context, prefix string) ([]Group, error)
}

const groupDetailsRoute = "/ocs/v2.php/cloud/groups/details"

type groupDirectory struct {
	requests *RequestService
}

// NewGroupDirectory creates a group directory backed by the OCS provisioning API
func NewGroupDirectory(requests *RequestService) GroupDirectory {
	return &groupDirectory{requests: requests}
}

func (d *groupDirectory) search(ctx context.Context, term string) ([]Group, error) {
	var raw json.RawMessage
	params := url.Values{"search": {term}}
	if err := d.requests.Call(ctx, http.MethodGet, groupDetailsRoute, params, &raw, true); err != nil {
		return nil, fmt.Errorf("failed to search groups %q: %w", term, err)
	}

	var groups []Group
	gjson.GetBytes(raw, "groups").ForEach(func(_, value gjson.Result) bool {
		group := Group{
			ID:          value.Get("id").String(),
			DisplayName: value.Get("displayname").String(),
		}
		if group.DisplayName == "" {
			group.DisplayName = group.ID
		}
		groups = append(groups, group)
		return true
	})
	return groups, nil
}

// Group returns the group with exactly the given id.
func (d *groupDirectory) Group(ctx context.Context, groupID string) (Group, error) {
	groups, err := d.search(ctx, groupID)
	if err != nil {
		return Group{}, err
	}
	for _, group := range groups {
		if group.ID == groupID {
			return group, nil
		}
	}
	return Group{}, fmt.Errorf("group %s: %w", groupID, ErrGroupNotFound)
}

// SearchGroups returns the groups whose id starts with prefix. The backend
// search matches substrings, so results are filtered again.
func (d *groupDirectory) SearchGroups(ctx context.Context, prefix string) ([]Group, error) {
	groups, err := d.search(ctx, prefix)
	if err != nil {
		return nil, err
	}
	matching := groups[:0]
	for _, group := range groups {
		if strings.HasPrefix(group.ID, prefix) {
			matching = append(matching, group)
		}
	}
	return matching, nil
}
