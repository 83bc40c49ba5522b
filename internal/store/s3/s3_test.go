package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/keydozer/internal/store"
	"github.com/dmitrijs2005/keydozer/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Adapter { return New(newFakeS3(), "vault") })
}

func TestLayout_IndexMarkers(t *testing.T) {
	ctx := context.Background()
	f := newFakeS3()
	s := New(f, "vault")

	require.NoError(t, s.PutByID(ctx, store.Envelopes, "env/1", store.Record{OwnerID: "bob"}))
	assert.Equal(t, []string{"envelopes/by-id/env%2F1", "envelopes/by-owner/bob/env%2F1"}, f.keys())

	require.NoError(t, s.PutByID(ctx, store.Envelopes, "env/1", store.Record{OwnerID: "carol"}))
	assert.Equal(t, []string{"envelopes/by-id/env%2F1", "envelopes/by-owner/carol/env%2F1"}, f.keys())

	recs, err := s.ListByOwner(ctx, store.Envelopes, "carol")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "env/1", recs[0].ID)

	require.NoError(t, s.DeleteByID(ctx, store.Envelopes, "env/1"))
	assert.Empty(t, f.keys())
}

func TestListByOwner_SkipsStaleMarkers(t *testing.T) {
	ctx := context.Background()
	f := newFakeS3()
	s := New(f, "vault")

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.PutByID(ctx, store.Entries, id, store.Record{OwnerID: "alice", Body: []byte(`{}`)}))
	}
	delete(f.objects, "entries/by-id/c")

	recs, err := s.ListByOwner(ctx, store.Entries, "alice")
	require.NoError(t, err)
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "d", "e"}, ids)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	f := newFakeS3()
	s := New(f, "vault")

	f.putErr = errors.New("access denied")
	require.ErrorContains(t, s.PutByID(ctx, store.Owners, "alice", store.Record{OwnerID: "alice"}), "access denied")

	f.putErr = nil
	f.listErr = errors.New("throttled")
	_, err := s.ListByOwner(ctx, store.Owners, "alice")
	require.ErrorContains(t, err, "throttled")
}

func TestOpen_UsesEndpointAndStaticKeys(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	defer func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew }()

	var lo awsconfig.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{Region: lo.Region}, nil
	}
	var so s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		for _, fn := range optFns {
			fn(&so)
		}
		return newFakeS3()
	}

	s, err := Open(context.Background(), Options{Bucket: "vault", Region: "eu-west-1", Endpoint: "http://minio:9000", AccessKey: "ak", SecretKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "vault", s.bucket)
	assert.Equal(t, "eu-west-1", lo.Region)
	require.NotNil(t, lo.Credentials)
	assert.Equal(t, "http://minio:9000", aws.ToString(so.BaseEndpoint))
	assert.True(t, so.UsePathStyle)

	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ak", creds.AccessKeyID)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	require.Error(t, err)

	orig := loadDefaultAWSConfig
	defer func() { loadDefaultAWSConfig = orig }()
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no profile")
	}
	_, err = Open(context.Background(), Options{Bucket: "vault"})
	require.ErrorContains(t, err, "no profile")
}
