// Package artifact stores step screenshots and DOM snapshots in a
// gocloud-addressable bucket. Step results carry only the opaque refs
// returned here
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/replaykit/replay/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

type (
	// Kind names the artifact type and fixes its file extension
	Kind string

	// Store writes and reads execution artifacts, supporting S3, GCS,
	// Azure Blob Storage, local files, and S3-compatible stores
	Store struct {
		bucket *blob.Bucket
		prefix string
	}
)

const (
	KindScreenshot Kind = "screenshot"
	KindSnapshot   Kind = "snapshot"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrUnknownKind      = errors.New("unknown artifact kind")
)

var kindExt = map[Kind]string{
	KindScreenshot: ".png",
	KindSnapshot:   ".html",
}

// NewStore opens the bucket behind the given URL. The prefix is
// prepended to every key
func NewStore(
	ctx context.Context, bucketURL, prefix string,
) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &Store{bucket: bucket, prefix: prefix}, nil
}

// Put stores one artifact for a step of an execution and returns its
// ref
func (s *Store) Put(
	ctx context.Context, execID api.ExecutionID, stepIndex int,
	kind Kind, data []byte,
) (string, error) {
	ref, err := s.refFor(execID, stepIndex, kind)
	if err != nil {
		return "", err
	}
	if err := s.bucket.WriteAll(ctx, ref, data, nil); err != nil {
		return "", err
	}
	return ref, nil
}

// Get reads an artifact back by its ref
func (s *Store) Get(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, ref)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, ref)
		}
		return nil, err
	}
	return data, nil
}

// Delete removes an artifact; missing refs are not an error
func (s *Store) Delete(ctx context.Context, ref string) error {
	err := s.bucket.Delete(ctx, ref)
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

// DeleteExecution removes every artifact stored for an execution
func (s *Store) DeleteExecution(
	ctx context.Context, execID api.ExecutionID,
) error {
	it := s.bucket.List(&blob.ListOptions{
		Prefix: s.executionPrefix(execID),
	})
	for {
		obj, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.bucket.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}
}

// Close releases the bucket
func (s *Store) Close() error {
	return s.bucket.Close()
}

func (s *Store) refFor(
	execID api.ExecutionID, stepIndex int, kind Kind,
) (string, error) {
	ext, ok := kindExt[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return fmt.Sprintf("%ssteps/%d/%s%s",
		s.executionPrefix(execID), stepIndex, string(kind), ext,
	), nil
}

func (s *Store) executionPrefix(execID api.ExecutionID) string {
	return fmt.Sprintf("%sexecutions/%s/", s.prefix, execID)
}
