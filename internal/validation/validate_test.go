package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

func assertValid(t *testing.T, err error, wantError bool, errMsg string) {
	t.Helper()
	if !wantError {
		assert.NoError(t, err)
		return
	}
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
	if errMsg != "" {
		assert.Contains(t, err.Error(), errMsg)
	}
}

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name      string
		bucket    string
		wantError bool
		errMsg    string
	}{
		// Valid bucket names
		{"valid_simple", "my-bucket", false, ""},
		{"valid_with_numbers", "my-bucket123", false, ""},
		{"valid_with_dots", "my.bucket", false, ""},
		{"valid_min_length", "abc", false, ""},
		{"valid_max_length", strings.Repeat("a", 63), false, ""},

		// Invalid bucket names
		{"empty", "", true, "bucket name cannot be empty"},
		{"too_short", "ab", true, "between 3 and 63 characters"},
		{"too_long", strings.Repeat("a", 64), true, "between 3 and 63 characters"},
		{"starts_with_hyphen", "-bucket", true, "cannot start or end with a hyphen or dot"},
		{"ends_with_dot", "bucket.", true, "cannot start or end with a hyphen or dot"},
		{"contains_uppercase", "MyBucket", true, "lowercase letters"},
		{"contains_underscore", "my_bucket", true, "lowercase letters"},
		{"ip_address", "192.168.1.1", true, "IP address"},
		{"adjacent_dots", "my..bucket", true, "two adjacent"},
		{"adjacent_hyphens", "my--bucket", true, "two adjacent"},
		{"reserved", "localhost", true, "reserved word"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			assertValid(t, err, tt.wantError, tt.errMsg)
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantError bool
		errMsg    string
	}{
		{"valid_simple", "file.txt", false, ""},
		{"valid_nested", "backups/2024/db.tar.gz", false, ""},
		{"valid_unicode", "données/résumé.pdf", false, ""},
		{"valid_max_length", strings.Repeat("a", 1024), false, ""},

		{"empty", "", true, "cannot be empty"},
		{"traversal", "../etc/passwd", true, "path traversal"},
		{"nested_traversal", "a/../../b", true, "path traversal"},
		{"absolute", "/etc/passwd", true, "path traversal"},
		{"windows_absolute", `C:\secrets`, true, "path traversal"},
		{"too_long", strings.Repeat("a", 1025), true, "1024 bytes"},
		{"control_character", "bad\x00key", true, "control characters"},
		{"newline", "bad\nkey", true, "control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateObjectKey(tt.key)
			assertValid(t, err, tt.wantError, tt.errMsg)
		})
	}
}

func TestValidateObjectKey_CarriesKey(t *testing.T) {
	err := ValidateObjectKey("../x")

	var e *errors.Error
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, "../x", e.Key)
		assert.Equal(t, "validateObjectKey", e.Op)
	}
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantError bool
	}{
		{"plain", "archive.tar", false},
		{"hidden", ".env", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dot_dot", "..", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"control", "a\tb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValid(t, ValidateFileName(tt.file), tt.wantError, "")
		})
	}
}

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name      string
		metadata  map[string]string
		wantError bool
		errMsg    string
	}{
		{"nil", nil, false, ""},
		{"valid", map[string]string{"owner": "ops", "build": "1234"}, false, ""},
		{"tab_in_value", map[string]string{"note": "a\tb"}, false, ""},

		{"empty_key", map[string]string{"": "v"}, true, "key cannot be empty"},
		{"long_key", map[string]string{strings.Repeat("k", 129): "v"}, true, "128 characters"},
		{"long_value", map[string]string{"k": strings.Repeat("v", 2049)}, true, "2048 characters"},
		{"reserved_aws", map[string]string{"aws:tag": "v"}, true, "reserved prefix: aws:"},
		{"reserved_amz", map[string]string{"X-Amz-Meta": "v"}, true, "reserved prefix: x-amz-"},
		{"non_ascii_key", map[string]string{"clé": "v"}, true, "printable ASCII"},
		{"control_value", map[string]string{"k": "a\x01b"}, true, "printable characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetadata(tt.metadata)
			assertValid(t, err, tt.wantError, tt.errMsg)
		})
	}
}

func TestValidateContentType(t *testing.T) {
	for _, ct := range []string{"", "text/plain", "application/json", "text/html; charset=utf-8", "application/vnd.api+json"} {
		assert.NoError(t, ValidateContentType(ct), ct)
	}
	for _, ct := range []string{"text", "/plain", "text/", "text plain"} {
		assertValid(t, ValidateContentType(ct), true, "valid MIME type")
	}
}

func TestValidateACL(t *testing.T) {
	for _, acl := range []s3types.ObjectACL{"", s3types.ACLPrivate, s3types.ACLPublicRead, s3types.ACLOwnerFullControl, "aws-exec-read"} {
		assert.NoError(t, ValidateACL(acl), string(acl))
	}
	assertValid(t, ValidateACL("world-writable"), true, `unknown canned ACL "world-writable"`)
}

func TestValidateConcurrencyAndParts(t *testing.T) {
	assert.NoError(t, ValidateConcurrency(0))
	assert.NoError(t, ValidateConcurrency(MaxConcurrency))
	assertValid(t, ValidateConcurrency(-1), true, "between 0 and")
	assertValid(t, ValidateConcurrency(MaxConcurrency+1), true, "between 0 and")

	assert.NoError(t, ValidateParts(0))
	assert.NoError(t, ValidateParts(12))
	assert.NoError(t, ValidateParts(MaxParts))
	assertValid(t, ValidateParts(-3), true, "cannot be negative")
	assertValid(t, ValidateParts(MaxParts+1), true, "cannot exceed 10000")
	assertValid(t, ValidateParts(1<<38), true, "cannot exceed 10000")
}
