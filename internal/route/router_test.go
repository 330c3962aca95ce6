package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		question    string
		wantIntents []Intent
		wantDomains []string
	}{
		{
			name:        "plain sales question",
			question:    "Show me the sales figures for August",
			wantIntents: []Intent{IntentDataRetrieval},
			wantDomains: []string{DomainSales},
		},
		{
			name:        "contract question",
			question:    "How many contracts expire this quarter?",
			wantIntents: []Intent{IntentDataRetrieval},
			wantDomains: []string{DomainContract},
		},
		{
			name:        "region question with chart",
			question:    "Plot revenue by branch",
			wantIntents: []Intent{IntentDataRetrieval, IntentVisualization},
			wantDomains: []string{DomainSales, DomainRegion},
		},
		{
			name:        "insight request",
			question:    "Why did profit drop last month?",
			wantIntents: []Intent{IntentDataRetrieval, IntentInsightReport},
			wantDomains: []string{DomainSales},
		},
		{
			name:        "dashboard merges core domains",
			question:    "Give me an overview dashboard",
			wantIntents: []Intent{IntentDataRetrieval, IntentVisualization},
			wantDomains: []string{DomainSales, DomainContract},
		},
		{
			name:        "dashboard does not duplicate matched domain",
			question:    "Sales dashboard please",
			wantIntents: []Intent{IntentDataRetrieval, IntentVisualization},
			wantDomains: []string{DomainSales, DomainContract},
		},
		{
			name:        "no signal defaults to retrieval",
			question:    "hello there",
			wantIntents: []Intent{IntentDataRetrieval},
			wantDomains: []string{},
		},
		{
			name:        "case insensitive",
			question:    "SALES BY REGION",
			wantIntents: []Intent{IntentDataRetrieval},
			wantDomains: []string{DomainSales, DomainRegion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.question)
			assert.Equal(t, tt.wantIntents, d.Intents)
			assert.Equal(t, tt.wantDomains, d.Domains)
		})
	}
}

func TestClassify_PriorReference(t *testing.T) {
	d := Classify("Can you summarize this data?")

	assert.Equal(t, []Intent{IntentInsightReport}, d.Intents)
	assert.Empty(t, d.Domains)
	assert.NotNil(t, d.Domains)
}

func TestClassify_PriorReferenceWithChart(t *testing.T) {
	d := Classify("Draw a chart from the previous result")

	assert.Equal(t, []Intent{IntentInsightReport, IntentVisualization}, d.Intents)
	assert.Empty(t, d.Domains)
}

func TestClassify_Keywords(t *testing.T) {
	d := Classify("Show revenue by region as a chart")

	assert.Contains(t, d.Keywords, "revenue")
	assert.Contains(t, d.Keywords, "region")
	assert.Contains(t, d.Keywords, "chart")
}
