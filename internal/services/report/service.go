package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/pipeline"
	"github.com/ternarybob/auspex/pkg/models"
)

// Service renders a session's analysis results into a PDF report. Slots
// still holding sentinels are simply left out of the document; a report
// over a half-finished run is valid, just shorter.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new report service.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Generate builds the analysis report for one session snapshot.
func (s *Service) Generate(snap pipeline.SessionSnapshot) ([]byte, error) {
	if snap.ActiveTicker == "" {
		return nil, fmt.Errorf("no analyzed ticker to report on")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	r := &reportRenderer{pdf: pdf}
	r.title(fmt.Sprintf("%s Analysis Report", snap.ActiveTicker))
	r.subtitle(time.Now().UTC().Format("2 January 2006 15:04 MST"))

	s.renderSnapshot(r, snap)
	s.renderPivots(r, snap)
	s.renderTakeaways(r, snap)
	s.renderWalls(r, snap)

	r.footer("Generated by auspex. Not investment advice.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().
		Str("ticker", snap.ActiveTicker).
		Int("pdf_size", buf.Len()).
		Msg("Analysis report generated")
	return buf.Bytes(), nil
}

func (s *Service) renderSnapshot(r *reportRenderer, snap pipeline.SessionSnapshot) {
	payload := snap.Slots[pipeline.SlotStockSnapshot]
	if !pipeline.DataReady(payload) {
		return
	}
	var stock models.StockSnapshot
	if err := json.Unmarshal([]byte(payload), &stock); err != nil {
		s.logger.Warn().Err(err).Msg("Snapshot slot unreadable for report")
		return
	}

	r.heading("Market Snapshot")
	r.keyValue("Current Price", money(stock.CurrentPrice))
	r.keyValue("Today's Change", fmt.Sprintf("%s (%.2f%%)", money(stock.TodaysChange), stock.TodaysChangePerc))
	if stock.Day != nil {
		r.keyValue("Day Range", fmt.Sprintf("%s - %s", money(stock.Day.Low), money(stock.Day.High)))
	}
	if stock.PrevDay != nil {
		r.keyValue("Previous Close", money(stock.PrevDay.Close))
	}
}

func (s *Service) renderPivots(r *reportRenderer, snap pipeline.SessionSnapshot) {
	payload := snap.Slots[pipeline.SlotAIAnalyzedTA]
	if !pipeline.DataReady(payload) {
		return
	}
	var pivots models.PivotLevels
	if err := json.Unmarshal([]byte(payload), &pivots); err != nil {
		s.logger.Warn().Err(err).Msg("Pivot slot unreadable for report")
		return
	}

	r.heading("Pivot Levels")
	rows := []struct {
		label string
		value float64
	}{
		{"Resistance 3", pivots.Resistance3},
		{"Resistance 2", pivots.Resistance2},
		{"Resistance 1", pivots.Resistance1},
		{"Pivot Point", pivots.PivotPoint},
		{"Support 1", pivots.Support1},
		{"Support 2", pivots.Support2},
		{"Support 3", pivots.Support3},
	}
	for _, row := range rows {
		r.keyValue(row.label, money(row.value))
	}
}

func (s *Service) renderTakeaways(r *reportRenderer, snap pipeline.SessionSnapshot) {
	payload := snap.Slots[pipeline.SlotAIKeyTakeaways]
	if !pipeline.DataReady(payload) {
		return
	}
	var takeaways models.KeyTakeaways
	if err := json.Unmarshal([]byte(payload), &takeaways); err != nil {
		s.logger.Warn().Err(err).Msg("Takeaways slot unreadable for report")
		return
	}

	r.heading("Key Takeaways")
	sections := []struct {
		label string
		t     models.Takeaway
	}{
		{"Price Action", takeaways.PriceAction},
		{"Trend", takeaways.Trend},
		{"Volatility", takeaways.Volatility},
		{"Momentum", takeaways.Momentum},
		{"Patterns", takeaways.Patterns},
	}
	for _, sec := range sections {
		r.takeaway(sec.label, sec.t.Sentiment, sec.t.Takeaway)
	}
}

func (s *Service) renderWalls(r *reportRenderer, snap pipeline.SessionSnapshot) {
	payload := snap.Slots[pipeline.SlotAIOptionsWalls]
	if !pipeline.DataReady(payload) {
		return
	}
	var walls models.OptionsWalls
	if err := json.Unmarshal([]byte(payload), &walls); err != nil {
		s.logger.Warn().Err(err).Msg("Walls slot unreadable for report")
		return
	}

	r.heading("Options Walls")
	if len(walls.CallWalls) == 0 && len(walls.PutWalls) == 0 {
		r.paragraph("No significant call or put walls detected in the analyzed chain.")
		return
	}
	for _, wall := range walls.CallWalls {
		r.keyValue(fmt.Sprintf("Call wall @ %s", money(wall.Strike)),
			fmt.Sprintf("OI %.0f, volume %.0f", wall.OpenInterest, wall.Volume))
	}
	for _, wall := range walls.PutWalls {
		r.keyValue(fmt.Sprintf("Put wall @ %s", money(wall.Strike)),
			fmt.Sprintf("OI %.0f, volume %.0f", wall.OpenInterest, wall.Volume))
	}
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// reportRenderer wraps the small set of layout primitives the report uses.
type reportRenderer struct {
	pdf *fpdf.Fpdf
}

func (r *reportRenderer) title(text string) {
	r.pdf.SetFont("Arial", "B", 16)
	r.pdf.CellFormat(0, 10, text, "", 1, "L", false, 0, "")
}

func (r *reportRenderer) subtitle(text string) {
	r.pdf.SetFont("Arial", "", 9)
	r.pdf.SetTextColor(100, 100, 100)
	r.pdf.CellFormat(0, 6, text, "", 1, "L", false, 0, "")
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.Ln(2)
}

func (r *reportRenderer) heading(text string) {
	r.pdf.Ln(3)
	r.pdf.SetFont("Arial", "B", 12)
	r.pdf.CellFormat(0, 8, text, "B", 1, "L", false, 0, "")
	r.pdf.Ln(1)
}

func (r *reportRenderer) keyValue(label, value string) {
	r.pdf.SetFont("Arial", "B", 9)
	r.pdf.CellFormat(55, 6, label, "", 0, "L", false, 0, "")
	r.pdf.SetFont("Arial", "", 9)
	r.pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func (r *reportRenderer) takeaway(label, sentiment, text string) {
	r.pdf.SetFont("Arial", "B", 9)
	r.pdf.CellFormat(0, 6, fmt.Sprintf("%s (%s)", label, sentiment), "", 1, "L", false, 0, "")
	r.paragraph(text)
}

func (r *reportRenderer) paragraph(text string) {
	r.pdf.SetFont("Arial", "", 9)
	r.pdf.MultiCell(0, 5, text, "", "L", false)
	r.pdf.Ln(1)
}

func (r *reportRenderer) footer(text string) {
	r.pdf.Ln(6)
	r.pdf.SetFont("Arial", "I", 8)
	r.pdf.SetTextColor(120, 120, 120)
	r.pdf.MultiCell(0, 4, text, "", "L", false)
	r.pdf.SetTextColor(0, 0, 0)
}
