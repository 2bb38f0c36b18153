package clarify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReactActionValidatorAcceptsAskUser(t *testing.T) {
	validate, err := NewReactActionValidator()
	require.NoError(t, err)
	require.NoError(t, validate([]byte(`{"action":"ask_user","clarify_question":"which lot?"}`)))
}

func TestReactActionValidatorAcceptsCallTool(t *testing.T) {
	validate, err := NewReactActionValidator()
	require.NoError(t, err)
	require.NoError(t, validate([]byte(`{"action":"call_tool","tool_name":"lookup_order","tool_args":{"order_no":"SCN-1"}}`)))
}

func TestReactActionValidatorRejectsUnknownAction(t *testing.T) {
	validate, err := NewReactActionValidator()
	require.NoError(t, err)
	require.Error(t, validate([]byte(`{"action":"guess"}`)))
}

func TestReactActionValidatorRejectsMissingAction(t *testing.T) {
	validate, err := NewReactActionValidator()
	require.NoError(t, err)
	require.Error(t, validate([]byte(`{"clarify_question":"x"}`)))
}
