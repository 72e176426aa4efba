package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildPipeline_SingleMatchFacetRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	from := now.AddDate(0, 0, -60)

	pipeline := buildPipeline("t1", from, now, now)

	// One database call: a $match stage followed by one $facet stage.
	require.Len(t, pipeline, 2)
	assert.Equal(t, "$match", pipeline[0][0].Key)
	assert.Equal(t, "$facet", pipeline[1][0].Key)

	match := pipeline[0][0].Value.(bson.D)
	assert.Equal(t, "tenant_id", match[0].Key)
	assert.Equal(t, "t1", match[0].Value)
	assert.Equal(t, "deleted_at", match[1].Key)
	assert.Equal(t, "created_at", match[2].Key)

	facet := pipeline[1][0].Value.(bson.D)
	keys := make([]string, 0, len(facet))
	for _, elem := range facet {
		keys = append(keys, elem.Key)
	}
	assert.ElementsMatch(t, keys, []string{
		"total", "by_status", "urgency_stats", "sentiment_stats",
		"hourly_trend", "keywords", "at_risk",
	})
}

func TestDecodeStats_ComputesRatios(t *testing.T) {
	res := facetResult{}
	res.Total = []struct {
		Count int64 `bson:"count"`
	}{{Count: 8}}
	res.ByStatus = []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}{{ID: "open", Count: 5}, {ID: "closed", Count: 3}}
	res.UrgencyStats = []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}{{ID: "high", Count: 2}, {ID: "low", Count: 6}}
	res.SentimentStats = []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}{{ID: "negative", Count: 1}, {ID: "neutral", Count: 7}}

	stats := decodeStats(res)

	assert.Equal(t, int64(8), stats.TotalTickets)
	assert.Equal(t, int64(5), stats.ByStatus["open"])
	assert.Equal(t, 0.25, stats.UrgencyHighRatio)
	assert.Equal(t, 0.125, stats.NegativeSentimentRatio)
	assert.Empty(t, stats.HourlyTrend)
	assert.Empty(t, stats.TopKeywords)
	assert.Empty(t, stats.AtRiskCustomers)
}

func TestDecodeStats_RoundsToThreeDecimals(t *testing.T) {
	res := facetResult{}
	res.Total = []struct {
		Count int64 `bson:"count"`
	}{{Count: 3}}
	res.UrgencyStats = []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}{{ID: "high", Count: 1}}

	stats := decodeStats(res)
	assert.Equal(t, 0.333, stats.UrgencyHighRatio)
}

func TestDecodeStats_EmptyFacetsYieldZeros(t *testing.T) {
	stats := decodeStats(facetResult{})

	assert.Equal(t, int64(0), stats.TotalTickets)
	assert.Equal(t, 0.0, stats.UrgencyHighRatio)
	assert.Equal(t, 0.0, stats.NegativeSentimentRatio)
	assert.NotNil(t, stats.ByStatus)
	assert.NotNil(t, stats.HourlyTrend)
	assert.NotNil(t, stats.TopKeywords)
	assert.NotNil(t, stats.AtRiskCustomers)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 0.667, round3(2.0/3.0))
	assert.Equal(t, 0.0, round3(0))
	assert.Equal(t, 1.0, round3(1))
}
