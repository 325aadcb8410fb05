package storage

import (
	"context"
	"errors"
)

// ErrNaoConfigurado indica que nenhum backend de armazenamento foi configurado.
var ErrNaoConfigurado = errors.New("storage: uploader não configurado")

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	URL  string
	ETag string
}

// Uploader define comportamento básico para armazenar blobs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}
