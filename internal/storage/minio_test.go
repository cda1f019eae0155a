package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicBaseFor(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/assets",
		publicBaseFor(MinioConfig{Endpoint: "minio:9000", Bucket: "assets", PublicBase: "https://cdn.example.com/assets/"}))
	assert.Equal(t, "http://minio:9000/assets",
		publicBaseFor(MinioConfig{Endpoint: "minio:9000", Bucket: "assets"}))
	assert.Equal(t, "https://s3.example.com/media",
		publicBaseFor(MinioConfig{Endpoint: "s3.example.com", Bucket: "media", UseSSL: true}))
}
