package mcp

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/mcp-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slate/adapter/cli"
)

func TestNewServer_RequiresApp(t *testing.T) {
	_, err := NewServer(nil, "test", nil)
	assert.Error(t, err)
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(&cli.App{}, "test", nil)
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestServe_RequiresConfig(t *testing.T) {
	assert.Error(t, Serve(context.Background(), nil, &cli.App{}, "test", nil))
}

func TestFieldsToArgs(t *testing.T) {
	args := fieldsToArgs([]middleware.Field{{Key: "tool", Value: "project.stage"}, {Key: "ms", Value: 3}})
	assert.Equal(t, []any{"tool", "project.stage", "ms", 3}, args)
}
