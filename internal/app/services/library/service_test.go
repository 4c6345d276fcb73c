package library

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/platform/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *filestore.Local) {
	t.Helper()
	files, err := filestore.NewLocal(t.TempDir(), "http://localhost:7000/files", time.Minute, "secret")
	require.NoError(t, err)
	return New(memory.New(), files, nil), files
}

func TestUploadListDelete(t *testing.T) {
	ctx := context.Background()
	svc, files := newService(t)
	admin := user.Actor{User: user.User{ID: 1, RoleID: user.RoleAdmin}, BuildingID: 7}
	resident := user.Actor{User: user.User{ID: 2, RoleID: user.RoleResident}, BuildingID: 7}

	content := []byte("%PDF-1.4 reglamento")
	doc, err := svc.Upload(ctx, admin, UploadInput{
		Name:        "Reglamento interno",
		Category:    "Reglamentos",
		FileName:    "reglamento 2025.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(content)),
	}, bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), doc.Size)
	assert.True(t, strings.HasPrefix(doc.ObjectKey, "library/7/"))
	assert.Contains(t, doc.URL, "signature=")

	rc, err := files.Open(ctx, doc.ObjectKey)
	require.NoError(t, err)
	stored, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, content, stored)

	docs, err := svc.List(ctx, resident)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].URL)

	err = svc.Delete(ctx, resident, doc.ID)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.GetServiceError(err).Code)

	other := user.Actor{User: user.User{ID: 3, RoleID: user.RoleAdmin}, BuildingID: 9}
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, other, doc.ID)))

	require.NoError(t, svc.Delete(ctx, admin, doc.ID))
	docs, err = svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, docs)

	// The object stays in the store.
	rc, err = files.Open(ctx, doc.ObjectKey)
	require.NoError(t, err)
	rc.Close()
}

func TestUploadValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	admin := user.Actor{User: user.User{ID: 1, RoleID: user.RoleAdmin}, BuildingID: 7}
	concierge := user.Actor{User: user.User{ID: 4, RoleID: user.RoleConcierge}, BuildingID: 7}
	body := func() io.Reader { return strings.NewReader("data") }

	cases := []struct {
		name  string
		actor user.Actor
		in    UploadInput
		code  apperrors.Code
	}{
		{"concierge", concierge, UploadInput{Name: "a", Category: "b", FileName: "a.pdf"}, apperrors.CodeForbidden},
		{"missing name", admin, UploadInput{Category: "b", FileName: "a.pdf"}, apperrors.CodeValidation},
		{"missing category", admin, UploadInput{Name: "a", FileName: "a.pdf"}, apperrors.CodeValidation},
		{"not a pdf", admin, UploadInput{Name: "a", Category: "b", FileName: "a.docx", ContentType: "application/msword"}, apperrors.CodeValidation},
		{"too large", admin, UploadInput{Name: "a", Category: "b", FileName: "a.pdf", Size: MaxFileSize + 1}, apperrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tc.actor, tc.in, body())
			svcErr := apperrors.GetServiceError(err)
			require.NotNil(t, svcErr)
			assert.Equal(t, tc.code, svcErr.Code)
		})
	}
}
