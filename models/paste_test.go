package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPaste_IsExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{
			name:      "not expired - future date",
			expiresAt: timePtr(now.Add(1 * time.Hour)),
			want:      false,
		},
		{
			name:      "expired - past date",
			expiresAt: timePtr(now.Add(-1 * time.Hour)),
			want:      true,
		},
		{
			name:      "no expiration - nil",
			expiresAt: nil,
			want:      false,
		},
		{
			name:      "expires exactly now",
			expiresAt: timePtr(now),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Paste{
				ExpiresAt: tt.expiresAt,
			}
			got := p.IsExpiredAt(now)
			if got != tt.want {
				t.Errorf("Paste.IsExpiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaste_ApplyDefaults(t *testing.T) {
	p := &Paste{Content: "x"}
	p.ApplyDefaults()

	if p.Title != DefaultTitle {
		t.Errorf("expected title %q, got %q", DefaultTitle, p.Title)
	}
	if p.Language != DefaultLanguage {
		t.Errorf("expected language %q, got %q", DefaultLanguage, p.Language)
	}
	if p.AuthorName != DefaultAuthor {
		t.Errorf("expected author %q, got %q", DefaultAuthor, p.AuthorName)
	}
	if p.Tags == nil || len(p.Tags) != 0 {
		t.Errorf("expected empty non-nil tags, got %#v", p.Tags)
	}

	kept := &Paste{Title: "mine", Language: "go", AuthorName: "gopher", Tags: []string{"b", "a", "b"}}
	kept.ApplyDefaults()
	if kept.Title != "mine" || kept.Language != "go" || kept.AuthorName != "gopher" {
		t.Errorf("defaults overwrote supplied values: %+v", kept)
	}
	if len(kept.Tags) != 3 || kept.Tags[0] != "b" || kept.Tags[2] != "b" {
		t.Errorf("tags must keep order and duplicates, got %v", kept.Tags)
	}
}

func TestPaste_PublicOmitsInternalID(t *testing.T) {
	p := &Paste{
		ID:       42,
		PasteID:  "abcdEFGH",
		Content:  "print('hi')",
		Language: "python",
		Tags:     []string{"python"},
		Views:    3,
	}

	data, err := json.Marshal(p.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["id"]; ok {
		t.Errorf("public projection must not carry the internal id: %s", data)
	}
	if fields["pasteId"] != "abcdEFGH" {
		t.Errorf("expected pasteId abcdEFGH, got %v", fields["pasteId"])
	}
	if fields["views"] != float64(3) {
		t.Errorf("expected views 3, got %v", fields["views"])
	}

	// the projection must not alias the row's tags
	pub := p.Public()
	pub.Tags[0] = "changed"
	if p.Tags[0] != "python" {
		t.Errorf("projection aliases row tags")
	}
}

func TestPublicList_NeverNil(t *testing.T) {
	out := PublicList(nil)
	if out == nil {
		t.Fatal("expected empty slice, got nil")
	}
	data, _ := json.Marshal(out)
	if string(data) != "[]" {
		t.Errorf("expected [], got %s", data)
	}
}

func TestFileExtension(t *testing.T) {
	if got := FileExtension("python"); got != "py" {
		t.Errorf("python extension = %q", got)
	}
	if got := FileExtension("brainfuck"); got != "txt" {
		t.Errorf("unknown extension = %q", got)
	}
	if !IsSupportedLanguage("go") || IsSupportedLanguage("cobol") {
		t.Errorf("IsSupportedLanguage mismatch")
	}
}

// Helper function to create time pointer
func timePtr(t time.Time) *time.Time {
	return &t
}
