package vault

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
)

func TestS3Vault_Keys(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "snapshots/store-a/4.snap"},
		{"backups", "backups/snapshots/store-a/4.snap"},
		{"/team/mcard/", "team/mcard/snapshots/store-a/4.snap"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			v := &S3Vault{bucket: "b", prefix: strings.Trim(tt.prefix, "/")}
			if got := v.snapshotKey("store-a", 4); got != tt.want {
				t.Errorf("snapshotKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSnapshotKey(t *testing.T) {
	tests := []struct {
		key    string
		want   int64
		wantOK bool
	}{
		{"snapshots/store-a/1.snap", 1, true},
		{"p/snapshots/store-a/42.snap", 42, true},
		{"snapshots/store-a/0.snap", 0, false},
		{"snapshots/store-a/latest.snap", 0, false},
		{"snapshots/store-a/3.tmp", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := parseSnapshotKey(tt.key)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("parseSnapshotKey(%q) = %d, %v, want %d, %v", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"head not found", fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "NotFound"}), true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.want {
				t.Errorf("isNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}
