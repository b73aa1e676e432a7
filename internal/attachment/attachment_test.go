package attachment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/jansevak/internal/model"
	"github.com/dharsanguruparan/jansevak/internal/signing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

var imageLimits = Limits{
	MaxBytes:     1024,
	AllowedTypes: []string{"image/png", "image/jpeg", "application/pdf"},
}

func TestReceiveAcceptsImage(t *testing.T) {
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 100)...)
	up, err := Receive(bytes.NewReader(body), "image", `C:\Users\me\pot hole.png`, imageLimits)
	require.NoError(t, err)
	defer up.Close()

	assert.Equal(t, "image/png", up.ContentType)
	assert.Equal(t, int64(len(body)), up.Size)
	assert.Equal(t, "pot hole.png", up.Filename)
	assert.False(t, up.IsPDF())

	got, err := io.ReadAll(up.File)
	require.NoError(t, err)
	assert.Equal(t, body, got, "file is rewound")

	name := up.File.Name()
	require.NoError(t, up.Close())
	_, err = os.Stat(name)
	assert.True(t, errors.Is(err, os.ErrNotExist), "temp file removed")
}

func TestReceiveRejections(t *testing.T) {
	cases := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"too large", append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 2048)...)},
		{"wrong type", []byte("just some plain text that is not an image")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Receive(bytes.NewReader(tc.body), "image", "x.png", imageLimits)
			require.Error(t, err)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "image", verr.Field)
		})
	}
}

func TestReceivePDF(t *testing.T) {
	up, err := Receive(strings.NewReader("%PDF-1.4\n%...."), "image", "bill.pdf", imageLimits)
	require.NoError(t, err)
	defer up.Close()
	assert.True(t, up.IsPDF())
}

func TestLimitsAllowed(t *testing.T) {
	l := Limits{AllowedTypes: []string{"text/plain"}}
	assert.True(t, l.Allowed("text/plain; charset=utf-8"))
	assert.False(t, l.Allowed("image/png"))
}

func TestNewKey(t *testing.T) {
	k1 := NewKey("../../etc/passwd", "image/png")
	k2 := NewKey("../../etc/passwd", "image/png")
	assert.NotEqual(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "complaints/"))
	assert.True(t, strings.HasSuffix(k1, "/passwd"))
	assert.NotContains(t, k1, "..")
	assert.False(t, IsPDFKey(k1))

	pdfKey := NewKey("scan", "application/pdf")
	assert.True(t, strings.HasSuffix(pdfKey, "/scan.pdf"))
	assert.True(t, IsPDFKey(pdfKey))
	assert.True(t, strings.HasSuffix(NewKey("Bill.PDF", "application/pdf"), "/Bill.PDF"))
}

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	signer := signing.NewSigner([]byte("secret"))
	store, err := NewDiskStore(t.TempDir(), signer, time.Minute, "/api/files")
	require.NoError(t, err)

	key := "complaints/abc/photo.png"
	require.NoError(t, store.Put(ctx, key, bytes.NewReader(pngHeader), int64(len(pngHeader)), "image/png"))

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	link, err := store.URL(ctx, key)
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/api/files", u.Path)
	q := u.Query()
	assert.Equal(t, key, q.Get("key"))
	assert.True(t, store.Verify(q.Get("key"), q.Get("expires"), q.Get("signature")))
	assert.False(t, store.Verify("complaints/other/photo.png", q.Get("expires"), q.Get("signature")))

	_, err = store.Get(ctx, "complaints/missing.png")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDiskStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), signing.NewSigner([]byte("s")), time.Minute, "/api/files")
	require.NoError(t, err)
	for _, key := range []string{"", "/", "../outside", "complaints/../../x", "/etc/passwd", "complaints//x", "complaints/./x", `complaints\..\x`} {
		_, err := store.Path(key)
		assert.ErrorIs(t, err, model.ErrValidation, key)
	}
}

func TestDiskStoreAllowsDotsInsideNames(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, signing.NewSigner([]byte("s")), time.Minute, "/api/files")
	require.NoError(t, err)
	for _, key := range []string{"complaints/abc/IMG..2024.png", "complaints/abc/..hidden", "complaints/abc/notes...pdf"} {
		p, err := store.Path(key)
		require.NoError(t, err, key)
		assert.True(t, strings.HasPrefix(p, dir), key)
	}
}

func TestDiskStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir(), signing.NewSigner([]byte("s")), time.Minute, "/api/files")
	require.NoError(t, err)

	key := "complaints/abc/photo.png"
	require.NoError(t, store.Put(ctx, key, bytes.NewReader(pngHeader), int64(len(pngHeader)), "image/png"))
	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, key), "deleting a missing key is not an error")
	assert.ErrorIs(t, store.Delete(ctx, "../escape"), model.ErrValidation)
}
