package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keithlinneman/ipa-rebrand/internal/pathutil"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

// ObjectGetter is the subset of *s3.Client used for s3:// templates.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", xerrors.Wrapf(err, "parse URL %q", rawURL)
	}
	if u.Scheme != "s3" {
		return "", "", xerrors.Newf("not an s3 URL: %s", rawURL)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", xerrors.Newf("s3 URL must name a bucket and key: %s", rawURL)
	}
	if pathutil.HasDotSegments(key) {
		return "", "", xerrors.Newf("s3 key contains dot segments: %s", rawURL)
	}
	return bucket, key, nil
}

func (f *Fetcher) openS3(ctx context.Context, u *url.URL, rawURL string) (io.ReadCloser, int64, error) {
	if f.s3 == nil {
		return nil, 0, xerrors.Newf("no S3 client configured for %s", rawURL)
	}
	bucket, key, err := ParseS3URL(u.String())
	if err != nil {
		return nil, 0, err
	}

	out, err := f.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var re *awshttp.ResponseError
		if errors.As(err, &re) && re.HTTPStatusCode() != http.StatusOK {
			return nil, 0, &StatusError{URL: rawURL, Code: re.HTTPStatusCode()}
		}
		return nil, 0, xerrors.Wrapf(err, "get S3 object s3://%s/%s", bucket, key)
	}

	total := int64(-1)
	if out.ContentLength != nil {
		total = *out.ContentLength
	}
	return out.Body, total, nil
}
