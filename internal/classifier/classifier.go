package classifier

import (
	"strings"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// Classification is the classifier output for one ticket.
type Classification struct {
	Urgency        domain.Urgency
	Sentiment      domain.Sentiment
	RequiresAction bool
}

// Keyword lists are domain data, not design; tune them freely.
var highUrgencyKeywords = []string{
	"urgent", "critical", "emergency", "asap", "immediately",
	"lawsuit", "legal", "lawyer", "attorney", "court",
	"refund", "chargeback", "fraud", "security breach",
	"data breach", "gdpr", "compliance", "violation",
	"outage", "down", "not working", "broken", "crashed",
}

var mediumUrgencyKeywords = []string{
	"issue", "problem", "error", "bug", "concern",
	"complaint", "unhappy", "dissatisfied", "disappointed",
}

var negativeKeywords = []string{
	"angry", "frustrated", "terrible", "awful", "horrible",
	"worst", "hate", "useless", "broken", "disappointed",
	"unacceptable", "poor", "bad", "annoyed", "upset",
}

var positiveKeywords = []string{
	"thank", "thanks", "appreciate", "great", "excellent",
	"good", "happy", "satisfied", "wonderful", "love",
}

var actionKeywords = []string{
	"refund", "cancel", "delete", "remove", "fix",
	"help", "urgent", "asap", "immediately",
	"lawsuit", "legal", "gdpr", "compliance",
	"broken", "not working", "error", "issue",
}

// Classify derives urgency, sentiment, and actionability from the subject and
// message. Pure and stateless; it never fails.
func Classify(subject, message string) Classification {
	text := strings.ToLower(subject + " " + message)

	urgency := domain.UrgencyLow
	if containsAny(text, highUrgencyKeywords) {
		urgency = domain.UrgencyHigh
	} else if containsAny(text, mediumUrgencyKeywords) {
		urgency = domain.UrgencyMedium
	}

	sentiment := domain.SentimentNeutral
	if containsAny(text, negativeKeywords) {
		sentiment = domain.SentimentNegative
	} else if containsAny(text, positiveKeywords) {
		sentiment = domain.SentimentPositive
	}

	// High urgency always requires action.
	requiresAction := urgency == domain.UrgencyHigh || containsAny(text, actionKeywords)

	return Classification{
		Urgency:        urgency,
		Sentiment:      sentiment,
		RequiresAction: requiresAction,
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
