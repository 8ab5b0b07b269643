package attach_test

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/recall-agent/internal/attach"
	"github.com/petasbytes/recall-agent/internal/errs"
	"github.com/petasbytes/recall-agent/internal/message"
)

func newSandbox(t *testing.T, opts ...attach.Option) (*attach.Sandbox, string) {
	t.Helper()
	root := t.TempDir()
	sb, err := attach.NewSandbox(root, opts...)
	require.NoError(t, err)
	return sb, sb.Root()
}

func write(t *testing.T, root, rel string, body []byte) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, body, 0o644))
}

func codeOf(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestResolve_BasicRejections(t *testing.T) {
	sb, _ := newSandbox(t)

	abs, err := filepath.Abs(".")
	require.NoError(t, err)
	_, err = sb.Resolve(abs)
	assert.Equal(t, attach.CodeOutsideSandbox, codeOf(err))

	_, err = sb.Resolve("../../x")
	assert.Equal(t, attach.CodeOutsideSandbox, codeOf(err))

	p, err := sb.Resolve("a/../b.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sb.Root(), "b.txt"), p)
}

func TestResolve_Denylist(t *testing.T) {
	sb, root := newSandbox(t, attach.WithDeny("secrets"))
	for _, d := range []string{".agent", ".git", "secrets"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0o755))
	}

	for _, rel := range []string{".agent/data", ".git/HEAD", "secrets/key", "secrets"} {
		_, err := sb.Resolve(rel)
		assert.Equal(t, attach.CodeDeniedRead, codeOf(err), rel)
	}
	_, err := sb.Resolve(".gitignore")
	assert.NoError(t, err)
}

func TestResolve_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test skipped on Windows")
	}
	sb, root := newSandbox(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "out")); err != nil {
		t.Skipf("symlink not allowed on this FS: %v", err)
	}

	_, err := sb.Resolve("out/escape.txt")
	assert.Equal(t, attach.CodeOutsideSandbox, codeOf(err))
}

func TestFile_TextAndImage(t *testing.T) {
	sb, root := newSandbox(t)
	write(t, root, "notes/todo.txt", []byte("buy milk"))
	png := []byte("\x89PNG\r\n\x1a\n0000")
	write(t, root, "pic.png", png)

	part, err := sb.File("notes/todo.txt")
	require.NoError(t, err)
	assert.Equal(t, message.CoreFile, part.Type)
	assert.Equal(t, "text/plain", part.MimeType)
	assert.Equal(t, "todo.txt", part.Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("buy milk")), part.Data)

	img, err := sb.File("pic.png")
	require.NoError(t, err)
	assert.Equal(t, message.CoreImage, img.Type)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), img.Image)
}

func TestFile_Rejections(t *testing.T) {
	sb, root := newSandbox(t, attach.WithMaxBytes(4))
	write(t, root, "big.txt", []byte("too large"))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))

	_, err := sb.File("big.txt")
	assert.Equal(t, attach.CodeTooLarge, codeOf(err))
	_, err = sb.File("dir")
	assert.Equal(t, attach.CodeNotAFile, codeOf(err))
	_, err = sb.File("missing.txt")
	assert.True(t, os.IsNotExist(err))
}

func TestMimeType_SniffsWithoutExtension(t *testing.T) {
	assert.Equal(t, "application/pdf", attach.MimeType("report.pdf", nil))
	assert.Equal(t, "text/plain", attach.MimeType("README", []byte("hello there")))
}

func TestList_SortsMarksDirsAndHidesDenied(t *testing.T) {
	sb, root := newSandbox(t)
	write(t, root, "b.txt", []byte("b"))
	write(t, root, "a/inner.txt", []byte("a"))
	write(t, root, ".git/HEAD", []byte("ref"))

	names, err := sb.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/", "b.txt"}, names)

	names, err = sb.List("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"inner.txt"}, names)

	_, err = sb.List("..")
	assert.Equal(t, attach.CodeOutsideSandbox, codeOf(err))
}

func TestMessage_TextThenFiles(t *testing.T) {
	sb, root := newSandbox(t)
	write(t, root, "a.txt", []byte("A"))

	m, err := sb.Message("what is this?", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, message.RoleUser, m.Role)
	require.Len(t, m.Content.Parts, 2)
	assert.Equal(t, message.CoreText, m.Content.Parts[0].Type)
	assert.Equal(t, "a.txt", m.Content.Parts[1].Filename)

	_, err = sb.Message("x", "../nope")
	assert.Error(t, err)
}
