package pipeline

import "encoding/json"

// DataReady reports whether a serialized slot payload is a genuine result.
// A blob that fails to parse, or that carries a recognizable "status" or
// "error" field, is a sentinel (pending, error, skipped) and not ready.
// Used at the presentation boundary where only the JSON string is
// available; internal readiness checks use SlotValue.IsReady.
func DataReady(payload string) bool {
	if payload == "" {
		return false
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		// Non-object JSON (arrays, numbers) still counts as a result if
		// it parses at all.
		var any interface{}
		return json.Unmarshal([]byte(payload), &any) == nil
	}

	if _, ok := probe["status"]; ok {
		return false
	}
	if _, ok := probe["error"]; ok {
		return false
	}
	return true
}

// KeyTakeawaysReady reports whether every prerequisite slot for the
// key-takeaways façade holds a genuine result.
func KeyTakeawaysReady(rs *ResultSet) bool {
	return rs.Get(SlotStockSnapshot).IsReady() &&
		rs.Get(SlotStandardTAs).IsReady() &&
		rs.Get(SlotAIAnalyzedTA).IsReady() &&
		rs.Get(SlotMarketStatus).IsReady()
}

// OptionsAnalysisReady reports whether the options façade prerequisites
// hold genuine results.
func OptionsAnalysisReady(rs *ResultSet) bool {
	return rs.Get(SlotStockSnapshot).IsReady() &&
		rs.Get(SlotOptionsChain).IsReady()
}
