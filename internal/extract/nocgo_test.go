//go:build !cgo

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrospec/internal/errors"
	"retrospec/internal/jsast"
)

func TestRegistryRejectsJavaScriptExtractorsWithoutCGO(t *testing.T) {
	r := NewRegistry(Options{})

	for _, id := range []string{AngularModuleID, "requirejs-module-extractor"} {
		_, err := r.ModuleExtractor(id)
		require.Error(t, err, id)
		assert.True(t, errors.Is(err, errors.ConfigInvalid), id)
		assert.ErrorIs(t, err, jsast.ErrNoCGO)
	}
	for _, id := range []string{AngularKarmaID, InlineCommentID, "jquery-mobile-test-suite-extractor"} {
		_, err := r.TestSuiteExtractor(id)
		require.Error(t, err, id)
		assert.True(t, errors.Is(err, errors.ConfigInvalid), id)
	}

	_, err := r.ModuleExtractor(TOMLDeclarationID)
	assert.NoError(t, err)
	_, err = r.TestSuiteExtractor(YAMLDeclarationID)
	assert.NoError(t, err)
}

func TestParseFailureWithoutCGOIsFatal(t *testing.T) {
	_, err := NewAngularModuleExtractor(Options{}).ExtractModules(t.Context(), File{Path: "a.js", Content: []byte("angular.module('a', [])")})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}
