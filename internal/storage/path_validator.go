package storage

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"go-chat-vault/pkg/apierror"
)

// PathValidator maps blob keys ("<owner>/<stored name>") onto files below a
// fixed root. Keys are relative, slash separated and never name the root.
type PathValidator struct {
	rootAbs string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &PathValidator{rootAbs: rootAbs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.rootAbs
}

func (v *PathValidator) ResolveKey(key string) (string, error) {
	if key == "" {
		return "", apierror.Validation("blob key is required", "")
	}
	if hasControlCharacters(key) {
		return "", apierror.Validation("blob key contains invalid characters", key)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", apierror.Validation("blob key must be a relative slash separated path", key)
	}

	for _, segment := range strings.Split(key, "/") {
		switch segment {
		case "..":
			return "", apierror.New(apierror.CodePathTraversal, "path traversal attempt detected", key, http.StatusForbidden)
		case "", ".":
			return "", apierror.Validation("blob key contains an empty segment", key)
		}
	}

	resolved := filepath.Join(v.rootAbs, filepath.FromSlash(key))
	if !isBelowRoot(v.rootAbs, resolved) {
		return "", apierror.New(apierror.CodePathTraversal, "resolved path is outside storage root", key, http.StatusForbidden)
	}

	return resolved, nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

func isBelowRoot(rootAbs string, candidateAbs string) bool {
	return strings.HasPrefix(candidateAbs, rootAbs+string(filepath.Separator))
}
