package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunE2EAllChecksPass(t *testing.T) {
	reports := RunE2E()
	require.NotEmpty(t, reports)
	for _, r := range reports {
		require.Truef(t, r.Pass, "%s: %v", r.Name, r.Err)
	}
}
