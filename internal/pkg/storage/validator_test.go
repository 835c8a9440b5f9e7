package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestValidateModel(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		wantType string
		wantErr  error
	}{
		{"stl", "bracket.stl", 1024, "model/stl", nil},
		{"upper case ext", "Gear.3MF", 1024, "model/3mf", nil},
		{"stp alias", "housing.stp", 1024, "model/step", nil},
		{"empty", "bracket.stl", 0, "", ErrEmptyFile},
		{"too large", "bracket.stl", MaxModelSize + 1, "", ErrFileTooLarge},
		{"exe", "setup.exe", 10, "", ErrUnsupportedModel},
		{"no ext", "bracket", 10, "", ErrUnsupportedModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateModel(tt.filename, tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.wantType {
				t.Fatalf("content type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"bracket v2.stl":       "bracket_v2.stl",
		"../../etc/passwd.stl": "passwd.stl",
		`C:\models\gear.3mf`:   "gear.3mf",
		"...":                  "model",
		"корпус.stl":           "______.stl",
		"ok-name_1.step":       "ok-name_1.step",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestModelKeyIsOwned(t *testing.T) {
	user := uuid.New()
	at := time.Date(2026, 3, 1, 10, 4, 5, 0, time.UTC)

	key := ModelKey(user, "../bracket v2.stl", at)
	want := "models/" + user.String() + "/20260301T100405/bracket_v2.stl"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
	if err := CheckOwnedKey(user, key); err != nil {
		t.Fatalf("own key rejected: %v", err)
	}
	if err := CheckOwnedKey(uuid.New(), key); !errors.Is(err, ErrForeignStoragePath) {
		t.Fatalf("foreign key accepted: %v", err)
	}
	traversal := "models/" + user.String() + "/../" + uuid.New().String() + "/x.stl"
	if err := CheckOwnedKey(user, traversal); !errors.Is(err, ErrForeignStoragePath) {
		t.Fatalf("traversal accepted: %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	if got := publicURL("https://cdn.example.com", "http://minio:9000", "b", "k.stl"); got != "https://cdn.example.com/k.stl" {
		t.Errorf("cdn url = %q", got)
	}
	if got := publicURL("", "http://minio:9000", "b", "k.stl"); got != "http://minio:9000/b/k.stl" {
		t.Errorf("endpoint url = %q", got)
	}
	if got := publicURL("", "", "b", "k.stl"); got != "https://b.s3.amazonaws.com/k.stl" {
		t.Errorf("aws url = %q", got)
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Fatal("empty config enabled")
	}
	if !(Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Fatal("complete config disabled")
	}
}
