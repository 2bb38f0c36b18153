package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/domain"
)

func TestSynthesizeNoEvidenceSkipsLLM(t *testing.T) {
	s := NewSynthesizer(&stubModel{response: "should never be read"}, "stub-model", nil)

	result, err := s.Synthesize(context.Background(), "q", nil, nil, nil)

	require.NoError(t, err)
	require.Equal(t, noEvidenceConclusion, result.Conclusion)
	require.Empty(t, result.KeyPoints)
}

func TestSynthesizeParsesStrictJSON(t *testing.T) {
	s := NewSynthesizer(&stubModel{response: `{"conclusion":"每小时5元","key_points":["a","b"]}`}, "stub-model", nil)
	facts := map[string]interface{}{"intent": "rule_explain"}

	result, err := s.Synthesize(context.Background(), "收费规则", nil, facts, nil)

	require.NoError(t, err)
	require.Equal(t, "每小时5元", result.Conclusion)
	require.Equal(t, []string{"a", "b"}, result.KeyPoints)
	require.Equal(t, "stub-model", result.ModelID)
}

func TestSynthesizeFallsBackToRawTextOnParseFailure(t *testing.T) {
	s := NewSynthesizer(&stubModel{response: "not json at all"}, "stub-model", nil)
	facts := map[string]interface{}{"intent": "rule_explain"}

	result, err := s.Synthesize(context.Background(), "收费规则", nil, facts, nil)

	require.NoError(t, err)
	require.Equal(t, "not json at all", result.Conclusion)
	require.Empty(t, result.KeyPoints)
}

func TestSynthesizeIncludesIntentInPrompt(t *testing.T) {
	intent := domain.IntentFeeVerify
	s := NewSynthesizer(&stubModel{response: `{"conclusion":"ok","key_points":[]}`}, "stub-model", nil)

	result, err := s.Synthesize(context.Background(), "q", nil, map[string]interface{}{"x": 1}, &intent)

	require.NoError(t, err)
	require.Equal(t, "ok", result.Conclusion)
}
