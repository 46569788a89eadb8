// Package classifier labels a single event as bot or human and assigns a
// 0-100 threat score from its user-agent, URL and IP address. The keyword
// heuristic is deliberately simple; richer implementations (rate-based,
// learned) plug in behind the Classifier interface without touching
// ingestion or storage code.
package classifier

import "strings"

// Result is the outcome of classifying one event.
type Result struct {
	IsBot       bool    `json:"is_bot"`
	ThreatScore float64 `json:"threat_score"`
}

// Classifier labels a single event. Implementations must be deterministic
// and side-effect free.
type Classifier interface {
	Classify(userAgent, url, ipAddress string) Result
}

// Score weights
const (
	weightSuspiciousAgent = 30.0 // curl, wget, python, scraper
	weightSuspiciousURL   = 40.0 // admin paths, traversal, injection probes
	maxThreatScore        = 100.0
)

var botKeywords = []string{
	"bot", "crawler", "spider", "scraper", "curl", "wget",
}

var suspiciousAgents = []string{
	"curl", "wget", "python", "scraper",
}

var suspiciousURLPatterns = []string{
	"admin", "../", "script", "eval",
}

// Keyword is the keyword-heuristic Classifier.
type Keyword struct{}

// NewKeyword creates the default keyword classifier.
func NewKeyword() *Keyword {
	return &Keyword{}
}

// Classify reports whether the event looks automated and how risky it is.
// Missing user-agent or URL contribute zero to the score, never an error.
func (Keyword) Classify(userAgent, url, ipAddress string) Result {
	return Result{
		IsBot:       detectBot(userAgent),
		ThreatScore: scoreThreat(userAgent, url),
	}
}

func detectBot(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	ua := strings.ToLower(userAgent)
	for _, keyword := range botKeywords {
		if strings.Contains(ua, keyword) {
			return true
		}
	}
	return false
}

func scoreThreat(userAgent, url string) float64 {
	score := 0.0

	if userAgent != "" {
		ua := strings.ToLower(userAgent)
		for _, agent := range suspiciousAgents {
			if strings.Contains(ua, agent) {
				score += weightSuspiciousAgent
				break
			}
		}
	}

	if url != "" {
		u := strings.ToLower(url)
		for _, pattern := range suspiciousURLPatterns {
			if strings.Contains(u, pattern) {
				score += weightSuspiciousURL
				break
			}
		}
	}

	if score > maxThreatScore {
		score = maxThreatScore
	}
	return score
}
