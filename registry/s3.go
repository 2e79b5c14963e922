package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	appconfig "download-counter-go/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectGetter 是 S3Registry 用到的 S3 接口子集
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Registry 从 S3 兼容存储桶取回对象
type S3Registry struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewS3Registry 创建S3客户端
func NewS3Registry(ctx context.Context, s3Config *appconfig.S3Config) (*S3Registry, error) {
	if s3Config == nil || s3Config.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	region := s3Config.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	// 未配置静态密钥时沿用默认凭证链
	if s3Config.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3Config.AccessKeyID,
			s3Config.SecretAccessKey,
			"",
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s3Config.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3Config.Endpoint)
		}
		o.UsePathStyle = s3Config.UsePathStyle
	})

	return NewS3RegistryWithClient(client, s3Config.BucketName, s3Config.Prefix), nil
}

func NewS3RegistryWithClient(client ObjectGetter, bucket, prefix string) *S3Registry {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Registry{client: client, bucket: bucket, prefix: prefix}
}

func (r *S3Registry) Fetch(ctx context.Context, objectName string) (*http.Response, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.prefix + objectName),
	})
	if err != nil {
		if status, ok := statusFromError(err); ok {
			return statusResponse(status), nil
		}
		return nil, fmt.Errorf("GetObject %s failed: %w", objectName, err)
	}

	header := make(http.Header)
	if ct := aws.ToString(out.ContentType); ct != "" {
		header.Set("Content-Type", ct)
	}
	if out.ContentLength != nil {
		header.Set("Content-Length", strconv.FormatInt(*out.ContentLength, 10))
	}
	if etag := aws.ToString(out.ETag); etag != "" {
		header.Set("ETag", etag)
	}
	if out.LastModified != nil {
		header.Set("Last-Modified", out.LastModified.UTC().Format(http.TimeFormat))
	}
	if cc := aws.ToString(out.CacheControl); cc != "" {
		header.Set("Cache-Control", cc)
	}

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Header:        header,
		Body:          out.Body,
		ContentLength: aws.ToInt64(out.ContentLength),
	}, nil
}

// statusFromError 把“对象不存在/无权限”之类的响应错误转换成 HTTP 状态码
func statusFromError(err error) (int, bool) {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return http.StatusNotFound, true
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() >= 400 && re.HTTPStatusCode() < 500 {
		return re.HTTPStatusCode(), true
	}
	return 0, false
}

func statusResponse(status int) *http.Response {
	return &http.Response{
		Status:     strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("")),
	}
}
