package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/pipeline"
)

func completedSnapshot() pipeline.SessionSnapshot {
	return pipeline.SessionSnapshot{
		PipelineState: pipeline.StateIdle,
		ActiveTicker:  "NVDA",
		Slots: map[string]string{
			pipeline.SlotStockSnapshot: `{"ticker":"NVDA","currentPrice":100.5,"todaysChange":1.5,"todaysChangePerc":1.51,"day":{"h":102,"l":99},"prevDay":{"h":110,"l":90,"c":100}}`,
			pipeline.SlotAIAnalyzedTA:  `{"pivotPoint":100,"support1":90,"support2":80,"support3":70,"resistance1":110,"resistance2":120,"resistance3":130}`,
			pipeline.SlotAIKeyTakeaways: `{"priceAction":{"takeaway":"Holding above pivot.","sentiment":"bullish"},` +
				`"trend":{"takeaway":"Uptrend intact.","sentiment":"bullish"},` +
				`"volatility":{"takeaway":"Volatility contracting toward the mean.","sentiment":"decreasing"},` +
				`"momentum":{"takeaway":"RSI neutral.","sentiment":"neutral"},` +
				`"patterns":{"takeaway":"Bull flag forming.","sentiment":"bullish"}}`,
			pipeline.SlotAIOptionsWalls: `{"callWalls":[{"strike":110,"openInterest":5000,"type":"call"}],"putWalls":[]}`,
		},
	}
}

func TestGenerateProducesPDF(t *testing.T) {
	svc := NewService(common.GetLogger())

	data, err := svc.Generate(completedSnapshot())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "expected PDF magic bytes, got %q", data[:8])
}

func TestGenerateSkipsSentinelSections(t *testing.T) {
	svc := NewService(common.GetLogger())

	snap := completedSnapshot()
	snap.Slots[pipeline.SlotAIKeyTakeaways] = `{"status":"pending..."}`
	snap.Slots[pipeline.SlotAIOptionsWalls] = `{"status":"skipped_due_to_data_fetch_failure","message":"x"}`

	data, err := svc.Generate(snap)
	require.NoError(t, err)
	assert.NotEmpty(t, data, "expected a PDF even with sentinel slots")
}

func TestGenerateRequiresAnalyzedTicker(t *testing.T) {
	svc := NewService(common.GetLogger())

	_, err := svc.Generate(pipeline.SessionSnapshot{Slots: map[string]string{}})
	assert.Error(t, err, "expected error without an analyzed ticker")
}
