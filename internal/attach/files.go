package attach

import (
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
)

// File reads rel and returns it as a core part: an image part for image
// types, a file part otherwise. Data is base64 encoded.
func (s *Sandbox) File(rel string) (message.CorePart, error) {
	abs, err := s.Resolve(rel)
	if err != nil {
		return message.CorePart{}, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return message.CorePart{}, err
	}
	if fi.IsDir() {
		return message.CorePart{}, errs.New(CodeNotAFile, "%s is a directory", rel)
	}
	if fi.Size() > s.maxBytes {
		return message.CorePart{}, errs.New(CodeTooLarge, "%s is %d bytes; the limit is %d", rel, fi.Size(), s.maxBytes).
			WithDetails(map[string]any{"size": fi.Size(), "limit": s.maxBytes})
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return message.CorePart{}, err
	}

	mt := MimeType(abs, b)
	data := base64.StdEncoding.EncodeToString(b)
	if strings.HasPrefix(mt, "image/") {
		return message.CorePart{Type: message.CoreImage, Image: data, MimeType: mt, Filename: filepath.Base(abs)}, nil
	}
	return message.CorePart{Type: message.CoreFile, Data: data, MimeType: mt, Filename: filepath.Base(abs)}, nil
}

// MimeType guesses from the extension, then from the content.
func MimeType(name string, content []byte) string {
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
		return mt
	}
	mt := mimetype.Detect(content).String()
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		return base
	}
	return mt
}

// List returns the non-recursive entries of relDir, directories suffixed by
// "/", sorted by name. Denied directories are left out.
func (s *Sandbox) List(relDir string) ([]string, error) {
	if relDir == "" {
		relDir = "."
	}
	abs, err := s.Resolve(relDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, err := s.Resolve(filepath.Join(relDir, e.Name())); err != nil {
			continue
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Message builds a user message from text followed by one part per file.
func (s *Sandbox) Message(text string, paths ...string) (message.CoreMessage, error) {
	parts := make([]message.CorePart, 0, len(paths)+1)
	if text != "" {
		parts = append(parts, message.CorePart{Type: message.CoreText, Text: text})
	}
	for _, p := range paths {
		part, err := s.File(p)
		if err != nil {
			return message.CoreMessage{}, err
		}
		parts = append(parts, part)
	}
	return message.CoreMessage{Role: message.RoleUser, Content: message.PartsContent(parts...)}, nil
}
