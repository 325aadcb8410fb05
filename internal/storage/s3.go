package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config descreve o bucket de destino dos relatórios.
type S3Config struct {
	Bucket     string
	Region     string
	Endpoint   string // opcional; MinIO, R2 etc.
	AccessKey  string // opcional; sem ele vale a cadeia padrão de credenciais
	SecretKey  string
	PathStyle  bool
	PublicURL  string
	HTTPClient *http.Client
}

// S3Uploader grava objetos com o SDK da AWS.
type S3Uploader struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Uploader carrega a configuração da AWS e monta o cliente S3.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: bucket do S3 ausente")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.HTTPClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(cfg.HTTPClient))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: config aws: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Uploader{client: client, cfg: cfg}, nil
}

// Upload envia o arquivo para o bucket configurado e retorna URL pública (se disponível).
func (u *S3Uploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key := strings.TrimLeft(strings.TrimSpace(input.Key), "/")
	if key == "" {
		return nil, errors.New("storage: chave do objeto obrigatória")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	put := &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(input.Body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(input.Body))),
	}
	if cc := strings.TrimSpace(input.CacheControl); cc != "" {
		put.CacheControl = aws.String(cc)
	}

	out, err := u.client.PutObject(ctx, put)
	if err != nil {
		return nil, fmt.Errorf("storage: upload falhou: %w", err)
	}

	etag := ""
	if out.ETag != nil {
		etag = strings.Trim(*out.ETag, "\"")
	}
	return &UploadResult{URL: u.urlPublica(key), ETag: etag}, nil
}

func (u *S3Uploader) urlPublica(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case u.cfg.PublicURL != "":
		return fmt.Sprintf("%s/%s", strings.TrimRight(u.cfg.PublicURL, "/"), escaped)
	case u.cfg.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.cfg.Endpoint, "/"), u.cfg.Bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, escaped)
}
