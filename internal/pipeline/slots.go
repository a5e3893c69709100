package pipeline

import (
	"encoding/json"
	"fmt"
)

// SlotStatus discriminates the value held by a result slot.
type SlotStatus int

const (
	// SlotInitial means no analysis has been run in this session.
	SlotInitial SlotStatus = iota
	// SlotPending means a run is in flight for this slot.
	SlotPending
	// SlotReady means the slot holds a genuine result payload.
	SlotReady
	// SlotError means the producing stage failed.
	SlotError
	// SlotSkipped means an upstream failure made this stage unreachable.
	SlotSkipped
)

// SlotValue is the sum type held by every result slot:
// Initial | Pending | Ready(payload) | Error(message, detail) | Skipped(reason).
// The sentinel JSON strings the debug panel and the dashboard consume are
// produced only at the serialization boundary; readiness checks use the
// status field, never string sniffing.
type SlotValue struct {
	Status  SlotStatus
	Payload string // Ready only: the serialized result
	Message string // Error only
	Detail  string // Error only
	Reason  string // Skipped only: "data_fetch", "stale_action_data", "ai_ta", "ai_ta_consistency"
}

func InitialSlot() SlotValue             { return SlotValue{Status: SlotInitial} }
func PendingSlot() SlotValue             { return SlotValue{Status: SlotPending} }
func ReadySlot(payload string) SlotValue { return SlotValue{Status: SlotReady, Payload: payload} }
func ErrorSlot(message, detail string) SlotValue {
	return SlotValue{Status: SlotError, Message: message, Detail: detail}
}
func SkippedSlot(reason string) SlotValue { return SlotValue{Status: SlotSkipped, Reason: reason} }

// IsReady reports whether the slot holds a genuine result.
func (v SlotValue) IsReady() bool { return v.Status == SlotReady }

// JSON serializes the slot to its wire sentinel. Ready slots pass their
// payload through verbatim.
func (v SlotValue) JSON() string {
	switch v.Status {
	case SlotReady:
		return v.Payload
	case SlotPending:
		return `{"status":"pending..."}`
	case SlotError:
		out, _ := json.Marshal(map[string]string{
			"status":  "error",
			"message": v.Message,
			"details": v.Detail,
		})
		return string(out)
	case SlotSkipped:
		out, _ := json.Marshal(map[string]string{
			"status":  fmt.Sprintf("skipped_due_to_%s_failure", v.Reason),
			"message": fmt.Sprintf("Skipped because the %s stage failed.", v.Reason),
		})
		return string(out)
	default:
		return `{"status":"no_analysis_run_yet"}`
	}
}

// Slot names. Every analysis stage keeps a request/result JSON pair for the
// debug panel.
const (
	SlotMarketStatus    = "marketStatus"
	SlotStockSnapshot   = "stockSnapshot"
	SlotStandardTAs     = "standardTAs"
	SlotOptionsChain    = "optionsChain"
	SlotAIAnalyzedTA    = "aiAnalyzedTA"
	SlotAIKeyTakeaways  = "aiKeyTakeaways"
	SlotAIOptionsWalls  = "aiOptionsAnalysis"
	SlotFetchRequest    = "fetchRequest"
	SlotFetchResponse   = "fetchResponse"
	SlotAITARequest     = "aiAnalyzedTARequest"
	SlotTakeawaysReq    = "aiKeyTakeawaysRequest"
	SlotOptionsWallsReq = "aiOptionsAnalysisRequest"
)

var allSlots = []string{
	SlotMarketStatus, SlotStockSnapshot, SlotStandardTAs, SlotOptionsChain,
	SlotAIAnalyzedTA, SlotAIKeyTakeaways, SlotAIOptionsWalls,
	SlotFetchRequest, SlotFetchResponse,
	SlotAITARequest, SlotTakeawaysReq, SlotOptionsWallsReq,
}

// ResultSet maps slot names to their current values. It is owned by the
// pipeline machine; observers receive copies.
type ResultSet struct {
	slots map[string]SlotValue
}

// NewResultSet creates a result set with every slot in its initial state.
func NewResultSet() *ResultSet {
	rs := &ResultSet{slots: make(map[string]SlotValue, len(allSlots))}
	for _, name := range allSlots {
		rs.slots[name] = InitialSlot()
	}
	return rs
}

// Get returns the value of a slot. Unknown names read as Initial.
func (rs *ResultSet) Get(name string) SlotValue {
	if v, ok := rs.slots[name]; ok {
		return v
	}
	return InitialSlot()
}

// Set assigns a slot value.
func (rs *ResultSet) Set(name string, v SlotValue) {
	rs.slots[name] = v
}

// ResetAll moves every slot to Pending at the start of a full run.
func (rs *ResultSet) ResetAll() {
	for _, name := range allSlots {
		rs.slots[name] = PendingSlot()
	}
}

// ResetKeyTakeaways resets only the key-takeaways pair, for manual runs.
func (rs *ResultSet) ResetKeyTakeaways() {
	rs.slots[SlotAIKeyTakeaways] = PendingSlot()
	rs.slots[SlotTakeawaysReq] = PendingSlot()
}

// ResetOptionsAnalysis resets only the options-analysis pair.
func (rs *ResultSet) ResetOptionsAnalysis() {
	rs.slots[SlotAIOptionsWalls] = PendingSlot()
	rs.slots[SlotOptionsWallsReq] = PendingSlot()
}

// ResetAITA resets the AI-TA pair before the TA stage runs.
func (rs *ResultSet) ResetAITA() {
	rs.slots[SlotAIAnalyzedTA] = PendingSlot()
	rs.slots[SlotAITARequest] = PendingSlot()
}

// SkipDownstreamOfFetch marks every AI slot Skipped after a failed or
// stale data fetch, so the UI can tell "never attempted" from "waiting".
func (rs *ResultSet) SkipDownstreamOfFetch(reason string) {
	for _, name := range []string{
		SlotAIAnalyzedTA, SlotAITARequest,
		SlotAIKeyTakeaways, SlotTakeawaysReq,
		SlotAIOptionsWalls, SlotOptionsWallsReq,
	} {
		rs.slots[name] = SkippedSlot(reason)
	}
}

// SkipDownstreamOfAITA marks the takeaways and options slots Skipped after
// a failed AI-TA stage.
func (rs *ResultSet) SkipDownstreamOfAITA(reason string) {
	for _, name := range []string{
		SlotAIKeyTakeaways, SlotTakeawaysReq,
		SlotAIOptionsWalls, SlotOptionsWallsReq,
	} {
		rs.slots[name] = SkippedSlot(reason)
	}
}

// Snapshot returns a copy of every slot serialized to its wire sentinel.
func (rs *ResultSet) Snapshot() map[string]string {
	out := make(map[string]string, len(rs.slots))
	for name, v := range rs.slots {
		out[name] = v.JSON()
	}
	return out
}

// Clone returns a deep copy of the result set.
func (rs *ResultSet) Clone() *ResultSet {
	clone := &ResultSet{slots: make(map[string]SlotValue, len(rs.slots))}
	for name, v := range rs.slots {
		clone.slots[name] = v
	}
	return clone
}
