// Package s3 is a remote vault store on an S3-compatible object store.
//
// Each record is one JSON object at <collection>/by-id/<id>. Listing by
// owner uses empty marker objects at <collection>/by-owner/<owner>/<id>,
// so ListByOwner is a prefix scan plus one GET per record.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/store"
)

// objectAPI is the subset of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Options configure Open. Endpoint and static keys are optional; without
// keys the default AWS credential chain applies.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type object struct {
	OwnerID   string    `json:"owner_id"`
	UpdatedAt time.Time `json:"updated_at"`
	Body      []byte    `json:"body"`
}

type Store struct {
	api    objectAPI
	bucket string
}

func New(api objectAPI, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

// Open builds an S3 client from opts. Path-style addressing is used when a
// custom endpoint is set, which is what MinIO and similar servers expect.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is empty")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(api, opts.Bucket), nil
}

func idKey(c store.Collection, id string) string {
	return path.Join(string(c), "by-id", url.PathEscape(id))
}

func ownerPrefix(c store.Collection, ownerID string) string {
	return path.Join(string(c), "by-owner", url.PathEscape(ownerID)) + "/"
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (s *Store) read(ctx context.Context, c store.Collection, id string) (object, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(idKey(c, id)),
	})
	if err != nil {
		if isNotFound(err) {
			return object{}, common.ErrorNotFound
		}
		return object{}, fmt.Errorf("s3 get %s/%s: %w", c, id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return object{}, fmt.Errorf("s3 read %s/%s: %w", c, id, err)
	}
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return object{}, fmt.Errorf("s3 decode %s/%s: %w", c, id, err)
	}
	return obj, nil
}

func (s *Store) GetByID(ctx context.Context, c store.Collection, id string) (store.Record, error) {
	if err := store.CheckCollection(c); err != nil {
		return store.Record{}, err
	}
	obj, err := s.read(ctx, c, id)
	if err != nil {
		return store.Record{}, err
	}
	return store.Record{ID: id, OwnerID: obj.OwnerID, Body: obj.Body, UpdatedAt: obj.UpdatedAt}, nil
}

func (s *Store) put(ctx context.Context, key string, body []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *Store) del(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s *Store) PutByID(ctx context.Context, c store.Collection, id string, rec store.Record) error {
	if err := store.CheckCollection(c); err != nil {
		return err
	}

	prev, err := s.read(ctx, c, id)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	data, err := json.Marshal(object{OwnerID: rec.OwnerID, UpdatedAt: rec.UpdatedAt.UTC(), Body: rec.Body})
	if err != nil {
		return err
	}
	if err := s.put(ctx, idKey(c, id), data); err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", c, id, err)
	}
	if err := s.put(ctx, ownerPrefix(c, rec.OwnerID)+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("s3 index %s/%s: %w", c, id, err)
	}
	if prev.OwnerID != "" && prev.OwnerID != rec.OwnerID {
		if err := s.del(ctx, ownerPrefix(c, prev.OwnerID)+url.PathEscape(id)); err != nil {
			return fmt.Errorf("s3 unindex %s/%s: %w", c, id, err)
		}
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, c store.Collection, id string) error {
	if err := store.CheckCollection(c); err != nil {
		return err
	}

	prev, err := s.read(ctx, c, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.del(ctx, idKey(c, id)); err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", c, id, err)
	}
	if err := s.del(ctx, ownerPrefix(c, prev.OwnerID)+url.PathEscape(id)); err != nil {
		return fmt.Errorf("s3 unindex %s/%s: %w", c, id, err)
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, c store.Collection, ownerID string) ([]store.Record, error) {
	if err := store.CheckCollection(c); err != nil {
		return nil, err
	}

	prefix := ownerPrefix(c, ownerID)
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []store.Record
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", c, err)
		}
		for _, obj := range page.Contents {
			id, err := url.PathUnescape(strings.TrimPrefix(aws.ToString(obj.Key), prefix))
			if err != nil {
				return nil, fmt.Errorf("s3 list %s: bad key %q", c, aws.ToString(obj.Key))
			}
			rec, err := s.GetByID(ctx, c, id)
			if errors.Is(err, common.ErrorNotFound) {
				// stale marker left by an interrupted delete
				continue
			}
			if err != nil {
				return nil, err
			}
			if rec.OwnerID != ownerID {
				continue
			}
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b store.Record) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
