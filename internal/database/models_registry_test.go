package database

import (
	"testing"

	modelspkg "mybuddy/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesReportAndToken(t *testing.T) {
	var report, token bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.Report:
			report = true
		case *modelspkg.ConfirmationToken:
			token = true
		}
	}
	require.True(t, report, "PersistentModels should include Report")
	require.True(t, token, "PersistentModels should include ConfirmationToken")
}

func TestPersistentModels_ParentsFirst(t *testing.T) {
	index := map[string]int{}
	for i, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.User:
			index["user"] = i
		case *modelspkg.Post:
			index["post"] = i
		case *modelspkg.Report:
			index["report"] = i
		}
	}
	assert.Less(t, index["user"], index["post"])
	assert.Less(t, index["post"], index["report"])
}
