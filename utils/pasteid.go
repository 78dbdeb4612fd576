package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PasteIDLength is the length of generated public ids
const PasteIDLength = 8

// pasteIDAlphabet is the URL-safe nanoid alphabet
const pasteIDAlphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"

// NewPasteID returns a random URL-safe public id of PasteIDLength characters
func NewPasteID() (string, error) {
	return gonanoid.New(PasteIDLength)
}

// IsValidPasteID checks the shape of a public id before it reaches the store.
// Seeded fixtures may use longer ids, so only the alphabet and a sane length are enforced.
func IsValidPasteID(id string) bool {
	if len(id) < 3 || len(id) > 32 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !isAlphabetByte(id[i]) {
			return false
		}
	}
	return true
}

func isAlphabetByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '-':
		return true
	}
	return false
}
