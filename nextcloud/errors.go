// Package nextcloud talks to the cloud platform the portal runs beside:
// the group folders app, the user and group directory and the OCS user
// endpoint.
package nextcloud

import "errors"

var (
	// ErrFolderNotFound is returned when a group folder id is unknown.
	ErrFolderNotFound = errors.New("group folder not found")
	// ErrGroupNotFound is returned when a group id is unknown.
	ErrGroupNotFound = errors.New("group not found")
	// ErrSessionOpen is returned when a cloud call would run while the
	// request session is still held.
	ErrSessionOpen = errors.New("request session must be closed before calling the cloud")
)
