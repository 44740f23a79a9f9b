package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// ErrUnknownSetting is returned for keys outside the known set.
var ErrUnknownSetting = errors.New("unknown setting")

// ErrInvalidValue is returned when a value fails validation.
var ErrInvalidValue = errors.New("invalid setting value")

// App setting keys
const (
	RootFolder      = "rootFolder"
	ManagementGroup = "managementGroup"
)

// User setting keys
const (
	Language         = "language"
	RowAccessToken   = "rowAccessToken"
	ShowPastProjects = "showPastProjects"
)

type definition struct {
	defaultValue string
	// internal values are never exposed through the settings endpoints
	internal  bool
	normalize func(string) (string, error)
}

// Defaults are the fallback app values used when nothing is stored.
type Defaults struct {
	RootFolder      string
	ManagementGroup string
}

// Settings validates and resolves settings on top of a Store.
type Settings struct {
	store Store
	app   map[string]definition
	user  map[string]definition
}

// New creates the settings facade
func New(store Store, defaults Defaults) *Settings {
	return &Settings{
		store: store,
		app: map[string]definition{
			RootFolder:      {defaultValue: NormalizeFolder(defaults.RootFolder), normalize: normalizeRootFolder},
			ManagementGroup: {defaultValue: defaults.ManagementGroup, normalize: normalizeGroup},
		},
		user: map[string]definition{
			Language:         {normalize: normalizeLanguage},
			RowAccessToken:   {internal: true},
			ShowPastProjects: {defaultValue: "false", normalize: normalizeBool},
		},
	}
}

// App returns an application setting.
func (s *Settings) App(ctx context.Context, key string) (string, error) {
	def, ok := s.app[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	value, found, err := s.store.AppValue(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return def.defaultValue, nil
	}
	return value, nil
}

// SetApp validates and stores an application setting. It returns the
// previous value.
func (s *Settings) SetApp(ctx context.Context, key, value string) (string, error) {
	def, ok := s.app[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	normalized, err := def.apply(value)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	previous, err := s.App(ctx, key)
	if err != nil {
		return "", err
	}
	if err := s.store.SetAppValue(ctx, key, normalized); err != nil {
		return "", err
	}
	return previous, nil
}

// User returns a personal setting of the given user. Internal keys are
// reported as unknown unless includeInternal is set.
func (s *Settings) User(ctx context.Context, userID, key string, includeInternal bool) (string, error) {
	def, ok := s.user[key]
	if !ok || (def.internal && !includeInternal) {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	value, found, err := s.store.UserValue(ctx, userID, key)
	if err != nil {
		return "", err
	}
	if !found {
		return def.defaultValue, nil
	}
	return value, nil
}

// SetUser validates and stores a personal setting. An empty value resets it
// to the default.
func (s *Settings) SetUser(ctx context.Context, userID, key, value string, includeInternal bool) error {
	def, ok := s.user[key]
	if !ok || (def.internal && !includeInternal) {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if value == "" {
		return s.store.DeleteUserValue(ctx, userID, key)
	}
	normalized, err := def.apply(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	return s.store.SetUserValue(ctx, userID, key, normalized)
}

// RootFolder is the mount path prefix of all project folders.
func (s *Settings) RootFolder(ctx context.Context) (string, error) {
	return s.App(ctx, RootFolder)
}

// ManagementGroup is the group holding full control of every project folder.
func (s *Settings) ManagementGroup(ctx context.Context) (string, error) {
	return s.App(ctx, ManagementGroup)
}

// ShowPastProjects reports the user's preference for listing finished projects.
func (s *Settings) ShowPastProjects(ctx context.Context, userID string) (bool, error) {
	v, err := s.User(ctx, userID, ShowPastProjects, false)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (d definition) apply(value string) (string, error) {
	if d.normalize == nil {
		return value, nil
	}
	return d.normalize(value)
}

// NormalizeFolder trims surrounding slashes and blanks of a mount path.
func NormalizeFolder(folder string) string {
	return strings.Trim(strings.TrimSpace(folder), "/")
}

func normalizeRootFolder(value string) (string, error) {
	folder := NormalizeFolder(value)
	for _, segment := range strings.Split(folder, "/") {
		if segment == "." || segment == ".." {
			return "", fmt.Errorf("path segment %q not allowed", segment)
		}
		if folder != "" && segment == "" {
			return "", fmt.Errorf("empty path segment")
		}
	}
	return folder, nil
}

func normalizeGroup(value string) (string, error) {
	group := strings.TrimSpace(value)
	if group == "" {
		return "", fmt.Errorf("group must not be empty")
	}
	return group, nil
}

func normalizeLanguage(value string) (string, error) {
	tag, err := language.Parse(value)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

func normalizeBool(value string) (string, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(b), nil
}
