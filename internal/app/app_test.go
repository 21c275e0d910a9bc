package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partquote/core/finish"
	"partquote/internal/config"
	"partquote/internal/errors"
)

func TestBuild(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Path = "../../catalog"
	cfg.Pricing.PrerequisitePolicy = "present"

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, a.Engine.CostModels())
	assert.Equal(t, "default", a.Engine.DefaultCostModel())
	assert.Equal(t, finish.PolicyPresent, a.Engine.Composer().Validator().Policy())
	assert.Equal(t, 6, a.Catalog.Operations.Len())
}

func TestBuildErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Path = "../../catalog"
	cfg.Pricing.PrerequisitePolicy = "sometimes"
	_, err := Build(context.Background(), cfg, nil)
	assert.True(t, errors.IsType(err, errors.TypeConfig))

	cfg = config.Default()
	cfg.Catalog.Path = t.TempDir() + "/missing"
	_, err = Build(context.Background(), cfg, nil)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}
