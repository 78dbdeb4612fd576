package models

import (
	"time"

	"gorm.io/datatypes"
)

// Defaults applied to optional paste fields
const (
	DefaultTitle    = "Untitled"
	DefaultLanguage = "plaintext"
	DefaultAuthor   = "Anonymous"
)

// File types accepted for pastes that represent an uploaded file
const (
	FileTypeCSV = "csv"
	FileTypeXML = "xml"
)

// Paste is the persisted row. ID is the internal key and must never reach a client;
// use Public() to build the response shape.
type Paste struct {
	ID         int64                       `gorm:"primaryKey;autoIncrement" bson:"_id"`
	PasteID    string                      `gorm:"column:paste_id;size:32;uniqueIndex;not null" bson:"paste_id"`
	Title      string                      `gorm:"default:Untitled" bson:"title"`
	Content    string                      `gorm:"type:text;not null" bson:"content"`
	Language   string                      `gorm:"size:64;index;default:plaintext" bson:"language"`
	AuthorName string                      `gorm:"default:Anonymous" bson:"author_name"`
	Tags       datatypes.JSONSlice[string] `bson:"tags"`
	Views      int64                       `gorm:"not null;default:0" bson:"views"`
	CreatedAt  time.Time                   `gorm:"not null;index" bson:"created_at"`
	ExpiresAt  *time.Time                  `gorm:"index" bson:"expires_at"`
	IsFile     bool                        `bson:"is_file"`
	FileName   string                      `gorm:"size:255" bson:"file_name"`
	FileType   string                      `gorm:"size:16" bson:"file_type"`
}

// PublicPaste is the client-facing projection of a Paste
type PublicPaste struct {
	PasteID    string     `json:"pasteId"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Language   string     `json:"language"`
	AuthorName string     `json:"authorName"`
	Tags       []string   `json:"tags"`
	Views      int64      `json:"views"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	IsFile     bool       `json:"isFile"`
	FileName   string     `json:"fileName,omitempty"`
	FileType   string     `json:"fileType,omitempty"`
}

// IsExpiredAt reports whether the paste is logically deleted at the given instant.
// A paste whose expiry equals now is already expired.
func (p *Paste) IsExpiredAt(now time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return !p.ExpiresAt.After(now)
}

// IsExpired checks if the paste has expired
func (p *Paste) IsExpired() bool {
	return p.IsExpiredAt(time.Now())
}

// ApplyDefaults fills absent optional fields with their documented defaults
func (p *Paste) ApplyDefaults() {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if p.AuthorName == "" {
		p.AuthorName = DefaultAuthor
	}
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[string]{}
	}
}

// Public strips the internal id
func (p *Paste) Public() PublicPaste {
	tags := make([]string, len(p.Tags))
	copy(tags, p.Tags)
	return PublicPaste{
		PasteID:    p.PasteID,
		Title:      p.Title,
		Content:    p.Content,
		Language:   p.Language,
		AuthorName: p.AuthorName,
		Tags:       tags,
		Views:      p.Views,
		CreatedAt:  p.CreatedAt,
		ExpiresAt:  p.ExpiresAt,
		IsFile:     p.IsFile,
		FileName:   p.FileName,
		FileType:   p.FileType,
	}
}

// PublicList projects a slice of rows, never returning nil
func PublicList(pastes []Paste) []PublicPaste {
	out := make([]PublicPaste, 0, len(pastes))
	for i := range pastes {
		out = append(out, pastes[i].Public())
	}
	return out
}
