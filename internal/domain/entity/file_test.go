package entity

import (
	"testing"
	"time"
)

func TestHasValidRemote(t *testing.T) {
	now := time.Now()
	uri := "providers/files/x"
	future := now.Add(time.Hour)
	past := now.Add(-time.Second)

	tests := []struct {
		name string
		file File
		want bool
	}{
		{"no remote reference", File{}, false},
		{"uri without expiry", File{RemoteURI: &uri}, false},
		{"expired", File{RemoteURI: &uri, RemoteExpiresAt: &past}, false},
		{"valid", File{RemoteURI: &uri, RemoteExpiresAt: &future}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.file.HasValidRemote(now); got != tt.want {
				t.Errorf("HasValidRemote() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderMimeType(t *testing.T) {
	if got := (&File{MimeType: MimeTypeJSON}).ProviderMimeType(); got != MimeTypePlain {
		t.Errorf("expected json mapped to text/plain, got %q", got)
	}
	if got := (&File{MimeType: "image/png"}).ProviderMimeType(); got != "image/png" {
		t.Errorf("expected png unchanged, got %q", got)
	}
}
