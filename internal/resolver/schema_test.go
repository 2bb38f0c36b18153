package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntentSlotValidatorAcceptsWellFormedPayload(t *testing.T) {
	validate, err := NewIntentSlotValidator()
	require.NoError(t, err)

	payload := []byte(`{"intent":"fee_verify","intent_confidence":0.9,"slots":{"order_no":"SCN-020","plate_no":null,"city_code":null,"lot_code":null},"ambiguities":[]}`)
	require.NoError(t, validate(payload))
}

func TestIntentSlotValidatorRejectsUnknownIntent(t *testing.T) {
	validate, err := NewIntentSlotValidator()
	require.NoError(t, err)

	payload := []byte(`{"intent":"not_a_real_intent","slots":{},"ambiguities":[]}`)
	require.Error(t, validate(payload))
}

func TestIntentSlotValidatorRejectsMissingSlots(t *testing.T) {
	validate, err := NewIntentSlotValidator()
	require.NoError(t, err)

	payload := []byte(`{"intent":null,"ambiguities":[]}`)
	require.Error(t, validate(payload))
}
