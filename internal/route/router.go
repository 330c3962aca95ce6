// Package route classifies a user question into analysis intents and the
// logical data domains that should serve it.
//
// Classification is a pure function over an explicit, priority-ordered rule
// list — no model call, no ambient state. The router only decides where a
// question goes; the Genie service decides what SQL it becomes.
package route

import "strings"

// Intent is a coarse category of what the user wants done.
type Intent string

const (
	IntentDataRetrieval Intent = "DATA_RETRIEVAL"
	IntentVisualization Intent = "VISUALIZATION"
	IntentInsightReport Intent = "INSIGHT_REPORT"
)

// Canonical domain names.
const (
	DomainSales    = "SALES"
	DomainContract = "CONTRACT"
	DomainRegion   = "REGION"
)

// Decision is the router's verdict for one question.
type Decision struct {
	// Intents, in rule order. Never empty: a question with no other signal
	// defaults to DATA_RETRIEVAL.
	Intents []Intent `json:"intents"`

	// Domains to query, in rule order. Empty when the question refers to a
	// previous result and needs no new retrieval.
	Domains []string `json:"domains"`

	// Keywords are the matched trigger words, for display and debugging.
	Keywords []string `json:"keywords"`
}

// domainRule maps trigger keywords to a domain. Rules are evaluated in
// order; the order is also the domain priority in the decision.
type domainRule struct {
	domain   string
	keywords []string
}

var domainRules = []domainRule{
	{DomainSales, []string{"sales", "revenue", "profit", "performance", "earnings"}},
	{DomainContract, []string{"contract", "customer", "product", "subscription"}},
	{DomainRegion, []string{"region", "branch", "city", "location", "map", "area"}},
}

// dashboardKeywords pull in both core domains for an at-a-glance question.
var dashboardKeywords = []string{"dashboard", "overview", "at a glance", "overall"}

// priorRefKeywords mark a question about the previous result. No new
// retrieval is needed, so the domain list stays empty.
var priorRefKeywords = []string{
	"this data", "that data", "previous result", "above result",
	"the result", "earlier", "just now", "you showed",
}

var vizKeywords = []string{"chart", "plot", "graph", "visualize", "visualise", "draw", "map", "dashboard"}

var insightKeywords = []string{"why", "analyze", "analyse", "analysis", "insight", "summarize", "summary", "report", "trend"}

// Classify routes question to intents and domains.
func Classify(question string) Decision {
	q := strings.ToLower(question)

	var d Decision

	// A reference to the previous result means re-analysis, not retrieval.
	if kw, ok := firstMatch(q, priorRefKeywords); ok {
		d.Intents = []Intent{IntentInsightReport}
		d.Domains = []string{}
		d.Keywords = append(d.Keywords, kw)
		if kw, ok := firstMatch(q, vizKeywords); ok {
			d.Intents = append(d.Intents, IntentVisualization)
			d.Keywords = append(d.Keywords, kw)
		}
		return d
	}

	for _, rule := range domainRules {
		if kw, ok := firstMatch(q, rule.keywords); ok {
			d.Domains = append(d.Domains, rule.domain)
			d.Keywords = append(d.Keywords, kw)
		}
	}

	// Dashboard-style questions span the two core business domains.
	if kw, ok := firstMatch(q, dashboardKeywords); ok {
		d.Keywords = append(d.Keywords, kw)
		d.Domains = mergeDomains(d.Domains, DomainSales, DomainContract)
	}

	d.Intents = []Intent{IntentDataRetrieval}
	if kw, ok := firstMatch(q, vizKeywords); ok {
		d.Intents = append(d.Intents, IntentVisualization)
		d.Keywords = append(d.Keywords, kw)
	}
	if kw, ok := firstMatch(q, insightKeywords); ok {
		d.Intents = append(d.Intents, IntentInsightReport)
		d.Keywords = append(d.Keywords, kw)
	}

	if d.Domains == nil {
		d.Domains = []string{}
	}
	return d
}

// firstMatch returns the first keyword contained in q.
func firstMatch(q string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return kw, true
		}
	}
	return "", false
}

// mergeDomains appends the extras that are not already present, keeping order.
func mergeDomains(domains []string, extras ...string) []string {
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		seen[d] = struct{}{}
	}
	for _, e := range extras {
		if _, ok := seen[e]; !ok {
			domains = append(domains, e)
			seen[e] = struct{}{}
		}
	}
	return domains
}
