// Package auth resolves the owner id that scopes ingestion records and chat
// history.
//
// Requests carry an HS256 bearer token whose `id` (or `sub`) claim names the
// owner. When no signing secret is configured the process runs in local mode
// and every caller is the same owner, derived from the OS username.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os/user"
)

// LocalOwner is used when the OS username cannot be determined.
const LocalOwner = "local"

var (
	// ErrEmptyUsername is returned when an empty username is provided
	ErrEmptyUsername = errors.New("username cannot be empty")
)

// DeriveOwnerID derives a stable owner ID from a username using SHA256 hashing.
//
// The owner ID is the hex-encoded SHA256 of the username, so the same user
// always maps to the same history without the name itself being stored.
//
//	ownerID, err := auth.DeriveOwnerID("alice")
//	// ownerID = "2bd806c97f0e00af1a1fc3328fa763a9269723c8db8fac4f93af71db186d6e90"
//
// Returns ErrEmptyUsername if username is empty.
func DeriveOwnerID(username string) (string, error) {
	if username == "" {
		return "", ErrEmptyUsername
	}
	hash := sha256.Sum256([]byte(username))
	return hex.EncodeToString(hash[:]), nil
}

// LocalOwnerID is the owner for local mode and the CLI.
func LocalOwnerID() string {
	u, err := user.Current()
	if err != nil {
		return LocalOwner
	}
	id, err := DeriveOwnerID(u.Username)
	if err != nil {
		return LocalOwner
	}
	return id
}
