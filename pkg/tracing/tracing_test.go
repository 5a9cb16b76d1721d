package tracing_test

import (
	"testing"

	"pear/pkg/tracing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerWithoutExporterIsNoop(t *testing.T) {
	shutdown, err := tracing.InitTracer(tracing.Config{ServiceName: "pear"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NotPanics(t, shutdown)
}
