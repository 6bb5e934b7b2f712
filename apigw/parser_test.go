package apigw

import (
	"errors"
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name              string
		path              string
		expectedBucket    string
		expectedForwarded string
	}{
		{
			name:              "Bucket only",
			path:              "/mybucket",
			expectedBucket:    "mybucket",
			expectedForwarded: "/",
		},
		{
			name:              "Bucket with trailing slash",
			path:              "/mybucket/",
			expectedBucket:    "mybucket",
			expectedForwarded: "/",
		},
		{
			name:              "Nested object",
			path:              "/mybucket/a/b.txt",
			expectedBucket:    "mybucket",
			expectedForwarded: "/a/b.txt",
		},
		{
			name:              "Percent-encoding preserved",
			path:              "/mybucket/path%20with%20spaces/obj%2Bname.txt",
			expectedBucket:    "mybucket",
			expectedForwarded: "/path%20with%20spaces/obj%2Bname.txt",
		},
		{
			name:              "Double slash after bucket kept verbatim",
			path:              "/mybucket//deep//key",
			expectedBucket:    "mybucket",
			expectedForwarded: "//deep//key",
		},
		{
			name:              "Key repeats bucket name",
			path:              "/logs/logs/2024",
			expectedBucket:    "logs",
			expectedForwarded: "/logs/2024",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParsePath(tt.path)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if parsed.Bucket != tt.expectedBucket {
				t.Errorf("Expected bucket %q, got %q", tt.expectedBucket, parsed.Bucket)
			}

			if parsed.ForwardedPath != tt.expectedForwarded {
				t.Errorf("Expected forwarded path %q, got %q", tt.expectedForwarded, parsed.ForwardedPath)
			}

			// Повторный разбор дает тот же результат
			again, err := ParsePath(tt.path)
			if err != nil || again != parsed {
				t.Errorf("ParsePath is not idempotent: %+v vs %+v (%v)", parsed, again, err)
			}
		})
	}
}

func TestParsePath_Malformed(t *testing.T) {
	for _, path := range []string{"", "/", "//x", "mybucket/key", "//"} {
		t.Run(path, func(t *testing.T) {
			_, err := ParsePath(path)
			if !errors.Is(err, ErrMalformedPath) {
				t.Errorf("Expected ErrMalformedPath for %q, got %v", path, err)
			}
		})
	}
}
