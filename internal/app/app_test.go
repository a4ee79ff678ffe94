package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/config"
	"github.com/kailas-cloud/sieve/internal/domain"
	answeruc "github.com/kailas-cloud/sieve/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/sieve/internal/usecase/health"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.Database.Driver = "memory"
	cfg.Catalog = config.CatalogConfig{Driver: "sqlite", DSN: ":memory:", AutoMigrate: true}
	cfg.Templates.Source = "sql"
	cfg.ApplyDefaults()
	return cfg
}

func TestNew_WithoutGenerator(t *testing.T) {
	a, err := New(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.AnswerSvc)
	_, err = a.Answerer().Answer(context.Background(), answeruc.Request{ResponseID: "r1"})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)

	report := a.HealthSvc.Check(context.Background())
	assert.Equal(t, healthuc.Healthy, report.Status)
	assert.Contains(t, report.Checks, "vectors")
	assert.Contains(t, report.Checks, "catalog")

	// no watcher configured
	a.RunWatcher(context.Background())
}

func TestNew_WithGenerator(t *testing.T) {
	cfg := testConfig()
	cfg.Generation.Model = "gpt-4o-mini"
	cfg.Generation.BaseURL = "http://localhost:1"

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.AnswerSvc)
	assert.Same(t, a.AnswerSvc, a.Answerer())
}

func TestNew_BadCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.Catalog.Driver = "oracle"

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
