package pipeline

import "github.com/ternarybob/auspex/pkg/models"

func pivotFixture() *models.PivotLevels {
	return &models.PivotLevels{
		PivotPoint:  100,
		Support1:    90,
		Support2:    80,
		Support3:    70,
		Resistance1: 110,
		Resistance2: 120,
		Resistance3: 130,
	}
}

func takeawaysFixture() *models.KeyTakeaways {
	insight := models.Takeaway{Takeaway: "Holding above the pivot on rising volume.", Sentiment: "bullish"}
	return &models.KeyTakeaways{
		PriceAction: insight,
		Trend:       insight,
		Volatility:  models.Takeaway{Takeaway: "Implied volatility is contracting toward the monthly mean.", Sentiment: "decreasing"},
		Momentum:    insight,
		Patterns:    insight,
	}
}

func wallsFixture() *models.OptionsWalls {
	return &models.OptionsWalls{
		CallWalls: []models.WallDetail{{Strike: 110, OpenInterest: 5000, Type: "call"}},
		PutWalls:  []models.WallDetail{{Strike: 90, OpenInterest: 4200, Type: "put"}},
	}
}
