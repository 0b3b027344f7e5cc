package access

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicy(t *testing.T) {
	p := NewPolicy(nil)
	require.True(t, p.IsAuthorized("Admin", nil))
	require.True(t, p.IsAuthorized(" C-Level ", []string{"Worker"}))
	require.True(t, p.IsAuthorized("Worker", []string{"Worker"}))
	require.False(t, p.IsAuthorized("Visitor", []string{"Worker"}))
	require.False(t, p.IsAuthorized("", []string{""}))
	require.False(t, p.IsAuthorized("   ", []string{"Worker"}))

	custom := NewPolicy([]string{"Security"})
	require.True(t, custom.IsAuthorized("Security", nil))
	require.False(t, custom.IsAuthorized("Admin", nil))
}
