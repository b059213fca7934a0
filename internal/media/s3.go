package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrObjectNotUploaded is returned by S3Uploads.Confirm when the presigned key has no object behind it yet.
var ErrObjectNotUploaded = errors.New("object has not been uploaded to the presigned key")

// UploadConstraints bounds a presigned upload: an object larger than MaxBytes or with a content type not present
// in AllowedMimeTypes is rejected before a presigned URL is ever issued.
type UploadConstraints struct {
	MaxBytes         int64
	AllowedMimeTypes map[string]bool
}

func (c UploadConstraints) allows(contentType string, size int64) error {
	if c.MaxBytes > 0 && size > c.MaxBytes {
		return ErrFileTooLarge
	}
	if len(c.AllowedMimeTypes) > 0 && !c.AllowedMimeTypes[normaliseContentType(contentType)] {
		return ErrUnsupportedContentType
	}
	return nil
}

// PresignedUpload is returned to the caller so they can PUT the object directly to S3.
type PresignedUpload struct {
	URL       string
	Key       string
	ExpiresAt time.Time
}

// S3Uploads issues presigned PUT URLs for direct-to-S3 uploads (avatars, for C6) and confirms completed uploads with
// a HeadObject call rather than trusting a client-reported success.
type S3Uploads struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	urlTTL  time.Duration
}

// NewS3Uploads builds an S3Uploads client from the process configuration, optionally pointed at a local endpoint
// (e.g. a MinIO instance in development) the way store.Connect points DynamoDB at a local endpoint.
func NewS3Uploads(ctx context.Context, region, endpoint, bucket string, urlTTL time.Duration) (*S3Uploads, error) {
	optFns := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploads{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		urlTTL:  urlTTL,
	}, nil
}

// Presign issues a time-limited PUT URL for key, constrained by contentType and size. The caller still must Confirm
// after the client reports a successful upload, since nothing stops a client from never uploading or uploading
// something other than what it declared.
func (u *S3Uploads) Presign(ctx context.Context, key, contentType string, size int64, constraints UploadConstraints) (PresignedUpload, error) {
	if err := constraints.allows(contentType, size); err != nil {
		return PresignedUpload{}, err
	}

	req, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(u.urlTTL))
	if err != nil {
		return PresignedUpload{}, fmt.Errorf("presign put object: %w", err)
	}

	return PresignedUpload{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: time.Now().UTC().Add(u.urlTTL),
	}, nil
}

// Confirm verifies the object was actually written to key via HeadObject, returning ErrObjectNotUploaded if the HEAD
// check fails. It also re-checks the stored content type and size against constraints, since a presigned PUT URL
// only constrains the request the server expected, not what a client actually sent. Either failure rejects
// confirmation and leaves the object in place; cleanup is a separate lifecycle sweep, not this call.
func (u *S3Uploads) Confirm(ctx context.Context, key string, constraints UploadConstraints) error {
	out, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &notFound) || (errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404) {
			return ErrObjectNotUploaded
		}
		return fmt.Errorf("head object: %w", err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	if err := constraints.allows(contentType, size); err != nil {
		return err
	}
	return nil
}

// Delete removes the object at key. Intended for a lifecycle reaper sweeping unconfirmed uploads, not for Confirm
// itself to call inline.
func (u *S3Uploads) Delete(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PublicURL returns the object's public URL once confirmed, mirroring StorageProvider.URL's role for local storage.
func (u *S3Uploads) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, key)
}
