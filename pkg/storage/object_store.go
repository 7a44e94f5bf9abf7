package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrDocumentNotFound is returned when the requested document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// Document is an open static document. Callers must Close it.
type Document interface {
	io.ReadSeekCloser
}

// DocumentInfo describes an open document.
type DocumentInfo struct {
	Size        int64
	ModTime     time.Time
	ContentType string
}

// DocumentSource provides read access to static front-end documents.
type DocumentSource interface {
	Open(ctx context.Context, name string) (Document, DocumentInfo, error)
}

// DirSource serves documents from a directory on local disk.
type DirSource struct {
	dir string
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Open opens name inside the directory. Paths escaping the directory are rejected.
func (d *DirSource) Open(_ context.Context, name string) (Document, DocumentInfo, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		return nil, DocumentInfo{}, ErrDocumentNotFound
	}
	f, err := os.OpenInRoot(d.dir, filepath.FromSlash(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, DocumentInfo{}, ErrDocumentNotFound
		}
		return nil, DocumentInfo{}, fmt.Errorf("open document: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, DocumentInfo{}, fmt.Errorf("stat document: %w", err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, DocumentInfo{}, ErrDocumentNotFound
	}
	return f, DocumentInfo{
		Size:        st.Size(),
		ModTime:     st.ModTime(),
		ContentType: contentTypeFor(name),
	}, nil
}

// MinioSource serves documents from a MinIO/S3 compatible bucket.
type MinioSource struct {
	client *minio.Client
	bucket string
}

// NewMinioSource connects to MinIO and checks the bucket exists.
func NewMinioSource(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", bucket)
	}
	return &MinioSource{client: client, bucket: bucket}, nil
}

// Open fetches the object stored under name.
func (m *MinioSource) Open(ctx context.Context, name string) (Document, DocumentInfo, error) {
	key := strings.TrimPrefix(path.Clean("/"+name), "/")
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, DocumentInfo{}, fmt.Errorf("get object: %w", err)
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, DocumentInfo{}, ErrDocumentNotFound
		}
		return nil, DocumentInfo{}, fmt.Errorf("stat object: %w", err)
	}
	contentType := st.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(key)
	}
	return obj, DocumentInfo{
		Size:        st.Size,
		ModTime:     st.LastModified,
		ContentType: contentType,
	}, nil
}

func contentTypeFor(name string) string {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return contentType
}
