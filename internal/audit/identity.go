package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// IdentityMatch represents the result of identity verification.
type IdentityMatch int

const (
	// IdentityMatches indicates the file matches the expected identity.
	IdentityMatches IdentityMatch = iota
	// IdentityHashMismatch indicates the content hash does not match.
	IdentityHashMismatch
	// IdentitySizeMismatch indicates the file size does not match.
	IdentitySizeMismatch
	// IdentityNotFound indicates the file was not found.
	IdentityNotFound
)

// CaptureIdentity computes the SHA-256 hash, size and modification time of path.
func CaptureIdentity(path string) (*FileIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	hash, err := HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	return &FileIdentity{
		ContentHash: hash,
		Size:        info.Size(),
		ModTime:     info.ModTime().UTC(),
	}, nil
}

// VerifyIdentity compares the file at path against expected. Size is checked
// before the hash.
func VerifyIdentity(path string, expected FileIdentity) (IdentityMatch, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return IdentityNotFound, nil
		}
		return IdentityNotFound, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Size() != expected.Size {
		return IdentitySizeMismatch, nil
	}

	hash, err := HashFile(path)
	if err != nil {
		return IdentityNotFound, fmt.Errorf("failed to compute hash: %w", err)
	}
	if hash != expected.ContentHash {
		return IdentityHashMismatch, nil
	}
	return IdentityMatches, nil
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
