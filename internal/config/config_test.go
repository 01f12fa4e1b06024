package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE_MB", "2")
	t.Setenv("GENERATION_TIMEOUT", "90")
	t.Setenv("VECTOR_PROBE_TIMEOUT", "750ms")
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()

	assert.Equal(t, int64(2*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 90*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 750*time.Millisecond, cfg.Chroma.ProbeTimeout)
	assert.Equal(t, 1000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want time.Duration
	}{
		{"unset", "", 5 * time.Second},
		{"go duration", "2m", 2 * time.Minute},
		{"bare seconds", "12", 12 * time.Second},
		{"garbage", "soon", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.val)
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", 5*time.Second))
		})
	}
}

func TestParseOrigins_EmptyAllowsAll(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "curriculum:abc:preview", CacheKey.CurriculumPreviewKey("abc"))
	assert.Equal(t, "curriculum:abc:ingest", CacheKey.CurriculumIngestChannel("abc"))
}
