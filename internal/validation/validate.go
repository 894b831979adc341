// Package validation checks transfer inputs before any request reaches the store.
//
// Every failure wraps ErrInvalidInput so callers can tell a bad argument from
// a transfer failure.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

const (
	// MaxConcurrency caps the worker pool.
	MaxConcurrency = 1000

	// MaxParts caps the ranged requests of one download.
	MaxParts = 10000
)

func invalid(op, msg string) *errors.Error {
	return errors.NewError(op, errors.ErrInvalidInput).WithCode(errors.CodeInvalidInput).WithMessage(msg)
}

// ValidateBucketName validates that a bucket name is DNS-compliant according to AWS S3 rules.
func ValidateBucketName(bucket string) error {
	const op = "validateBucketName"

	switch {
	case bucket == "":
		return invalid(op, "bucket name cannot be empty").WithBucket(bucket)
	case len(bucket) < 3 || len(bucket) > 63:
		return invalid(op, "bucket name must be between 3 and 63 characters long").WithBucket(bucket)
	}

	// Bucket names can consist only of lowercase letters, numbers, dots (.), and hyphens (-)
	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return invalid(op, "bucket name can only contain lowercase letters, numbers, dots, and hyphens").
				WithBucket(bucket)
		}
	}

	first, last := bucket[0], bucket[len(bucket)-1]
	switch {
	case first == '-' || first == '.' || last == '-' || last == '.':
		return invalid(op, "bucket name cannot start or end with a hyphen or dot").WithBucket(bucket)
	case isIPAddress(bucket):
		return invalid(op, "bucket name cannot be formatted as an IP address").WithBucket(bucket)
	case strings.Contains(bucket, "..") || strings.Contains(bucket, "--"):
		return invalid(op, "bucket name cannot contain two adjacent periods or hyphens").WithBucket(bucket)
	case bucket == "localhost":
		return invalid(op, "bucket name cannot be a reserved word").WithBucket(bucket)
	}

	return nil
}

// ValidateObjectKey rejects empty or oversized keys, traversal sequences and control characters.
func ValidateObjectKey(key string) error {
	const op = "validateObjectKey"

	switch {
	case key == "":
		return invalid(op, "object key cannot be empty").WithKey(key)
	case hasPathTraversal(key):
		return invalid(op, "object key cannot contain path traversal sequences").WithKey(key)
	case len(key) > 1024:
		// S3 supports up to 1024 bytes
		return invalid(op, "object key cannot exceed 1024 bytes").WithKey(key)
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return invalid(op, "object key cannot contain control characters").WithKey(key)
	}

	return nil
}

// ValidateFileName checks a download destination name. It must be a single
// path element so the file lands inside the destination directory.
func ValidateFileName(name string) error {
	const op = "validateFileName"

	switch {
	case name == "" || name == "." || name == "..":
		return invalid(op, fmt.Sprintf("%q is not a file name", name))
	case strings.ContainsAny(name, `/\`):
		return invalid(op, "file name cannot contain path separators")
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return invalid(op, "file name cannot contain control characters")
	}
	return nil
}

// ValidateMetadata validates metadata keys and values according to S3 rules.
func ValidateMetadata(metadata map[string]string) error {
	const op = "validateMetadata"

	for key, value := range metadata {
		switch {
		case key == "":
			return invalid(op, "metadata key cannot be empty")
		case len(key) > 128:
			return invalid(op, "metadata key cannot exceed 128 characters")
		case len(value) > 2048:
			return invalid(op, "metadata value cannot exceed 2048 characters")
		}

		// Keys cannot start with prefixes reserved by AWS
		for _, prefix := range []string{"aws:", "x-amz-", "x-amz:"} {
			if strings.HasPrefix(strings.ToLower(key), prefix) {
				return invalid(op, "metadata key cannot start with reserved prefix: "+prefix)
			}
		}

		for _, char := range key {
			if char < 32 || char > 126 {
				return invalid(op, "metadata key can only contain printable ASCII characters")
			}
		}
		for _, char := range value {
			if !unicode.IsPrint(char) && char != '\t' {
				return invalid(op, "metadata value can only contain printable characters")
			}
		}
	}

	return nil
}

var mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)

// ValidateContentType accepts an empty value or a well-formed MIME type.
func ValidateContentType(contentType string) error {
	if contentType == "" || mimePattern.MatchString(contentType) {
		return nil
	}
	return invalid("validateContentType", "content type must be a valid MIME type")
}

var validACLs = map[s3types.ObjectACL]bool{
	s3types.ACLPrivate:           true,
	s3types.ACLPublicRead:        true,
	"public-read-write":          true,
	s3types.ACLAuthenticatedRead: true,
	"aws-exec-read":              true,
	s3types.ACLOwnerRead:         true,
	s3types.ACLOwnerFullControl:  true,
}

// ValidateACL validates a canned ACL. Empty means no ACL is applied.
func ValidateACL(acl s3types.ObjectACL) error {
	if acl == "" || validACLs[acl] {
		return nil
	}
	return invalid("validateACL", fmt.Sprintf("unknown canned ACL %q", acl))
}

// ValidateConcurrency checks a worker count; zero selects the default.
func ValidateConcurrency(n int) error {
	if n < 0 || n > MaxConcurrency {
		return invalid("validateConcurrency", fmt.Sprintf("concurrency must be between 0 and %d", MaxConcurrency))
	}
	return nil
}

// ValidateParts checks a requested download part count; zero selects the concurrency.
func ValidateParts(n int) error {
	if n < 0 {
		return invalid("validateParts", "part count cannot be negative")
	}
	if n > MaxParts {
		return invalid("validateParts", fmt.Sprintf("part count cannot exceed %d", MaxParts))
	}
	return nil
}

// isValidBucketChar checks if a character is valid in a bucket name
func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// isIPAddress checks if a string is formatted as an IPv4 address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
		}
	}
	return true
}

// hasPathTraversal checks for traversal and absolute paths in object keys
func hasPathTraversal(key string) bool {
	if strings.Contains(key, "..") {
		return true
	}

	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "/") {
		return true
	}

	// Windows-style absolute paths
	return len(cleaned) >= 3 && cleaned[1] == ':' && (cleaned[2] == '\\' || cleaned[2] == '/')
}
