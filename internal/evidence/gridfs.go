// server/internal/evidence/gridfs.go
package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"garage-repair-api-server/internal/apperr"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	GridFSBucketName = "repair_images"
	// RawURLPrefix là route phục vụ ảnh lưu trong GridFS.
	RawURLPrefix = "/api/v1/repairs/images/"
)

// GridFSStore giữ ảnh ngay trong MongoDB khi không cấu hình S3.
type GridFSStore struct {
	bucket *gridfs.Bucket
}

func NewGridFSStore(db *mongo.Database) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(GridFSBucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open GridFS bucket: %w", err)
	}
	return &GridFSStore{bucket: bucket}, nil
}

func (s *GridFSStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	id, err := s.bucket.UploadFromStream(key, bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload file to GridFS: %w", err)
	}
	return RawURLPrefix + id.Hex() + "/raw", nil
}

func (s *GridFSStore) Open(_ context.Context, id string) ([]byte, string, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, "", apperr.NotFound("image %s", id)
	}

	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", apperr.NotFound("image %s", id)
		}
		return nil, "", err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if f := stream.GetFile(); f != nil && len(f.Metadata) > 0 {
		if v, ok := f.Metadata.Lookup("content_type").StringValueOK(); ok {
			contentType = v
		}
	}
	return data, contentType, nil
}
