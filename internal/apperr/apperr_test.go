package apperr

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/biz"
	"github.com/newgpp/parksuite-core/internal/knowledge"
)

func TestClassifyEmbeddingDimMismatchIsValidation(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &knowledge.ErrEmbeddingDimMismatch{Expected: 1536, Actual: 3})
	require.Equal(t, KindValidation, Classify(err))
	require.Equal(t, 400, StatusCode(Classify(err)))
}

func TestClassifySourceNotFoundIsNotFound(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &knowledge.ErrSourceNotFound{SourceID: "x"})
	require.Equal(t, KindNotFound, Classify(err))
	require.Equal(t, 404, StatusCode(Classify(err)))
}

func TestClassifyBizHTTP404IsNotFound(t *testing.T) {
	err := &biz.HTTPStatusError{StatusCode: 404, URL: "x"}
	require.Equal(t, KindNotFound, Classify(err))
}

func TestClassifyDeadlineExceededIsUnavailable(t *testing.T) {
	require.Equal(t, KindUnavailable, Classify(context.DeadlineExceeded))
}

func TestClassifyUnknownIsInternal(t *testing.T) {
	require.Equal(t, KindInternal, Classify(fmt.Errorf("boom")))
	require.Equal(t, 500, StatusCode(Classify(fmt.Errorf("boom"))))
}
