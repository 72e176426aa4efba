package analytics

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// DefaultWindowDays bounds the stats window when the caller gives none.
const DefaultWindowDays = 60

// HourlyBucket is one hour of the trailing-24h trend.
type HourlyBucket struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}

// AtRiskCustomer is a customer with repeated high-urgency tickets.
type AtRiskCustomer struct {
	CustomerID       string   `json:"customer_id"`
	HighUrgencyCount int64    `json:"high_urgency_count"`
	TicketIDs        []string `json:"ticket_ids"`
}

// TenantStats is the full dashboard payload.
type TenantStats struct {
	TotalTickets           int64            `json:"total_tickets"`
	ByStatus               map[string]int64 `json:"by_status"`
	UrgencyHighRatio       float64          `json:"urgency_high_ratio"`
	NegativeSentimentRatio float64          `json:"negative_sentiment_ratio"`
	HourlyTrend            []HourlyBucket   `json:"hourly_trend"`
	TopKeywords            []string         `json:"top_keywords"`
	AtRiskCustomers        []AtRiskCustomer `json:"at_risk_customers"`
}

var stopwords = bson.A{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to",
	"for", "of", "with", "is", "are", "was", "were", "",
}

// Service computes dashboard metrics in a single database-side pipeline; no
// ticket documents are iterated application-side.
type Service struct {
	tickets *mongo.Collection
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates the analytics service.
func NewService(tickets *mongo.Collection, logger *zap.Logger) *Service {
	return &Service{tickets: tickets, logger: logger, now: time.Now}
}

// facetResult mirrors the aggregation's single output document.
type facetResult struct {
	Total []struct {
		Count int64 `bson:"count"`
	} `bson:"total"`
	ByStatus []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	} `bson:"by_status"`
	UrgencyStats []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	} `bson:"urgency_stats"`
	SentimentStats []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	} `bson:"sentiment_stats"`
	HourlyTrend []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	} `bson:"hourly_trend"`
	Keywords []struct {
		ID string `bson:"_id"`
	} `bson:"keywords"`
	AtRisk []struct {
		ID               string   `bson:"_id"`
		HighUrgencyCount int64    `bson:"high_urgency_count"`
		TicketIDs        []string `bson:"ticket_ids"`
	} `bson:"at_risk"`
}

// TenantStats runs the stats aggregation for a tenant over the given window.
// Zero-valued from/to default to the trailing DefaultWindowDays days. Empty
// result sets return zeros, not errors.
func (s *Service) TenantStats(ctx context.Context, tenantID string, from, to time.Time) (*TenantStats, error) {
	now := s.now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -DefaultWindowDays)
	}

	pipeline := buildPipeline(tenantID, from, to, now)

	started := time.Now()
	cursor, err := s.tickets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []facetResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	s.logger.Debug("stats pipeline executed",
		zap.String("tenant_id", tenantID), zap.Duration("elapsed", time.Since(started)))

	if len(results) == 0 {
		return emptyStats(), nil
	}
	return decodeStats(results[0]), nil
}

// buildPipeline assembles the match+$facet aggregation. The leading match is
// covered by the stats index.
func buildPipeline(tenantID string, from, to, now time.Time) mongo.Pipeline {
	match := bson.D{
		{Key: "tenant_id", Value: tenantID},
		{Key: "deleted_at", Value: bson.M{"$exists": false}},
		{Key: "created_at", Value: bson.M{"$gte": from, "$lte": to}},
	}

	countBy := func(field string) bson.A {
		return bson.A{
			bson.M{"$group": bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}},
		}
	}

	facet := bson.D{
		{Key: "total", Value: bson.A{bson.M{"$count": "count"}}},
		{Key: "by_status", Value: countBy("status")},
		{Key: "urgency_stats", Value: countBy("urgency")},
		{Key: "sentiment_stats", Value: countBy("sentiment")},
		{Key: "hourly_trend", Value: bson.A{
			bson.M{"$match": bson.M{"created_at": bson.M{"$gte": now.Add(-24 * time.Hour)}}},
			bson.M{"$group": bson.M{
				"_id": bson.M{"$dateToString": bson.M{
					"format": "%Y-%m-%d %H:00:00",
					"date":   "$created_at",
				}},
				"count": bson.M{"$sum": 1},
			}},
			bson.M{"$sort": bson.M{"_id": 1}},
			bson.M{"$limit": 24},
		}},
		{Key: "keywords", Value: bson.A{
			bson.M{"$project": bson.M{
				"words": bson.M{"$split": bson.A{
					bson.M{"$toLower": bson.M{"$concat": bson.A{"$subject", " ", "$message"}}},
					" ",
				}},
			}},
			bson.M{"$unwind": "$words"},
			bson.M{"$match": bson.M{"words": bson.M{
				"$nin":   stopwords,
				"$regex": "^[a-z]{4,}$",
			}}},
			bson.M{"$group": bson.M{"_id": "$words", "count": bson.M{"$sum": 1}}},
			bson.M{"$sort": bson.M{"count": -1}},
			bson.M{"$limit": 10},
		}},
		{Key: "at_risk", Value: bson.A{
			bson.M{"$match": bson.M{"urgency": domain.UrgencyHigh}},
			bson.M{"$group": bson.M{
				"_id":                "$customer_id",
				"high_urgency_count": bson.M{"$sum": 1},
				"ticket_ids":         bson.M{"$push": "$external_id"},
			}},
			bson.M{"$match": bson.M{"high_urgency_count": bson.M{"$gte": 2}}},
			bson.M{"$sort": bson.M{"high_urgency_count": -1}},
			bson.M{"$limit": 10},
		}},
	}

	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$facet", Value: facet}},
	}
}

func decodeStats(res facetResult) *TenantStats {
	stats := emptyStats()

	if len(res.Total) > 0 {
		stats.TotalTickets = res.Total[0].Count
	}
	for _, row := range res.ByStatus {
		stats.ByStatus[row.ID] = row.Count
	}

	if stats.TotalTickets > 0 {
		var highCount, negativeCount int64
		for _, row := range res.UrgencyStats {
			if row.ID == string(domain.UrgencyHigh) {
				highCount = row.Count
			}
		}
		for _, row := range res.SentimentStats {
			if row.ID == string(domain.SentimentNegative) {
				negativeCount = row.Count
			}
		}
		stats.UrgencyHighRatio = round3(float64(highCount) / float64(stats.TotalTickets))
		stats.NegativeSentimentRatio = round3(float64(negativeCount) / float64(stats.TotalTickets))
	}

	for _, row := range res.HourlyTrend {
		stats.HourlyTrend = append(stats.HourlyTrend, HourlyBucket{Hour: row.ID, Count: row.Count})
	}
	for _, row := range res.Keywords {
		stats.TopKeywords = append(stats.TopKeywords, row.ID)
	}
	for _, row := range res.AtRisk {
		stats.AtRiskCustomers = append(stats.AtRiskCustomers, AtRiskCustomer{
			CustomerID:       row.ID,
			HighUrgencyCount: row.HighUrgencyCount,
			TicketIDs:        row.TicketIDs,
		})
	}
	return stats
}

func emptyStats() *TenantStats {
	return &TenantStats{
		ByStatus:        map[string]int64{},
		HourlyTrend:     []HourlyBucket{},
		TopKeywords:     []string{},
		AtRiskCustomers: []AtRiskCustomer{},
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
