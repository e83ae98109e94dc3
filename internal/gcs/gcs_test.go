package gcs

import "testing"

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://exports/statements/jan.csv", "exports", "statements/jan.csv", false},
		{"gs://exports/jan.csv", "exports", "jan.csv", false},
		{"gs://exports", "", "", true},
		{"gs://exports/", "", "", true},
		{"https://exports/jan.csv", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		bucket, object, err := SplitURI(tt.uri)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SplitURI(%q) succeeded, want error", tt.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("SplitURI(%q): %v", tt.uri, err)
			continue
		}
		if bucket != tt.bucket || object != tt.object {
			t.Errorf("SplitURI(%q) = %q, %q, want %q, %q", tt.uri, bucket, object, tt.bucket, tt.object)
		}
	}
}
