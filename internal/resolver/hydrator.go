package resolver

import (
	"github.com/newgpp/parksuite-core/internal/domain"
)

// Hydrator is the SlotHydrator: it merges slots recalled from session
// memory into an IntentSlotParseResult without ever overriding a slot the
// current turn (or the user, transitively) already set.
type Hydrator struct{}

// NewHydrator returns a stateless SlotHydrator.
func NewHydrator() *Hydrator {
	return &Hydrator{}
}

// Hydrate fills the still-null carry slots (city_code, lot_code, plate_no)
// in parsed from remembered, plus any still-null slot the active intent
// requires, tagging the source as memory and emitting one trace tag per
// filled slot plus a terminal "slot_hydrate:none" when nothing was filled.
func (h *Hydrator) Hydrate(parsed domain.IntentSlotParseResult, remembered domain.Slots) domain.SlotHydrateResult {
	result := domain.SlotHydrateResult{
		Payload:              parsed.Payload,
		FieldSources:         parsed.FieldSources.Clone(),
		MissingRequiredSlots: parsed.MissingRequiredSlots,
	}
	if result.FieldSources == nil {
		result.FieldSources = domain.FieldSources{}
	}

	filled := hydrateField(&result.Payload.Slots.CityCode, remembered.CityCode, "city_code", result.FieldSources, &result.Trace)
	filled = hydrateField(&result.Payload.Slots.LotCode, remembered.LotCode, "lot_code", result.FieldSources, &result.Trace) || filled
	filled = hydrateField(&result.Payload.Slots.PlateNo, remembered.PlateNo, "plate_no", result.FieldSources, &result.Trace) || filled
	if parsed.Intent != nil {
		for _, key := range RequiredSlots(*parsed.Intent) {
			if key == "order_no" {
				filled = hydrateField(&result.Payload.Slots.OrderNo, remembered.OrderNo, "order_no", result.FieldSources, &result.Trace) || filled
			}
		}
	}

	if parsed.Intent != nil {
		result.MissingRequiredSlots = missingSlots(result.Payload.Slots, RequiredSlots(*parsed.Intent))
	}

	if !filled {
		result.Trace = append(result.Trace, "slot_hydrate:none")
	}
	return result
}

// hydrateField fills *dst from memory only when dst is currently null and
// memory actually has a value, recording a trace tag per filled slot.
func hydrateField(dst **string, remembered *string, key string, sources domain.FieldSources, trace *[]string) bool {
	if *dst != nil || remembered == nil || *remembered == "" {
		return false
	}
	*dst = remembered
	sources[key] = domain.SourceMemory
	*trace = append(*trace, "slot_hydrate:"+key)
	return true
}
