package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-ingest/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		subject        string
		message        string
		urgency        domain.Urgency
		sentiment      domain.Sentiment
		requiresAction bool
	}{
		{
			name:           "plain question is low neutral",
			subject:        "Question about billing cycle",
			message:        "When does my billing cycle start?",
			urgency:        domain.UrgencyLow,
			sentiment:      domain.SentimentNeutral,
			requiresAction: false,
		},
		{
			name:           "urgent keyword in subject",
			subject:        "URGENT: cannot log in",
			message:        "Please look at this soon.",
			urgency:        domain.UrgencyHigh,
			sentiment:      domain.SentimentNeutral,
			requiresAction: true,
		},
		{
			name:           "gdpr in message body",
			subject:        "Data request",
			message:        "I want my data removed under GDPR.",
			urgency:        domain.UrgencyHigh,
			sentiment:      domain.SentimentNeutral,
			requiresAction: true,
		},
		{
			name:           "bug report is medium",
			subject:        "Bug in export",
			message:        "The CSV export has a problem with commas.",
			urgency:        domain.UrgencyMedium,
			sentiment:      domain.SentimentNeutral,
			requiresAction: false,
		},
		{
			name:           "angry customer is negative",
			subject:        "Very frustrated",
			message:        "This is the worst experience I have had.",
			urgency:        domain.UrgencyLow,
			sentiment:      domain.SentimentNegative,
			requiresAction: false,
		},
		{
			name:           "thanks is positive",
			subject:        "Thanks for the quick reply",
			message:        "I appreciate the support team.",
			urgency:        domain.UrgencyLow,
			sentiment:      domain.SentimentPositive,
			requiresAction: false,
		},
		{
			name:           "refund is high urgency and actionable",
			subject:        "Refund request",
			message:        "I would like a refund for my last invoice.",
			urgency:        domain.UrgencyHigh,
			sentiment:      domain.SentimentNeutral,
			requiresAction: true,
		},
		{
			name:           "case folding applies to both fields",
			subject:        "OUTAGE",
			message:        "EVERYTHING IS DOWN",
			urgency:        domain.UrgencyHigh,
			sentiment:      domain.SentimentNeutral,
			requiresAction: true,
		},
		{
			name:           "action keyword without urgency",
			subject:        "Please help",
			message:        "Could you walk me through the setup?",
			urgency:        domain.UrgencyLow,
			sentiment:      domain.SentimentNeutral,
			requiresAction: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.subject, tt.message)
			assert.Equal(t, tt.urgency, got.Urgency)
			assert.Equal(t, tt.sentiment, got.Sentiment)
			assert.Equal(t, tt.requiresAction, got.RequiresAction)
		})
	}
}

func TestClassify_HighUrgencyAlwaysRequiresAction(t *testing.T) {
	// "lawsuit" is a high-urgency keyword; the action list is irrelevant.
	got := Classify("Our lawyers are preparing a lawsuit", "")
	assert.Equal(t, domain.UrgencyHigh, got.Urgency)
	assert.True(t, got.RequiresAction)
}

func TestClassify_EmptyInput(t *testing.T) {
	got := Classify("", "")
	assert.Equal(t, domain.UrgencyLow, got.Urgency)
	assert.Equal(t, domain.SentimentNeutral, got.Sentiment)
	assert.False(t, got.RequiresAction)
}
