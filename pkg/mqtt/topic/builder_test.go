package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder("/parking/v1/")
	assert.Equal(t, "parking/v1", b.Root())
	assert.Equal(t, "parking/v1/auth-request/gate-01", b.Build("auth-request", "gate-01"))
	assert.Equal(t, "parking/v1/barrier-command/+", b.BuildWildcard("barrier-command"))
	assert.Equal(t, "$share/policy/parking/v1/auth-request/+", b.Shared("policy").BuildWildcard("auth-request"))
}
