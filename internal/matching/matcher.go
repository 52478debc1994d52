package matching

import (
	"sort"
	"strings"
)

// Decision is the three-way outcome of the decision policy.
type Decision string

const (
	DecisionAutoAccept  Decision = "auto_accept"
	DecisionNeedsReview Decision = "needs_review"
	DecisionAutoReject  Decision = "auto_reject"
)

// StatusInProgress is the only Deel contract status considered matchable.
const StatusInProgress = "in_progress"

// Candidate name fields recorded in Signals.MatchedAgainst
const (
	MatchedAgainstTitle      = "title"
	MatchedAgainstWorkerName = "worker.full_name"
)

// Signal weights. Email is the strongest signal when it matches; when it
// doesn't (or is missing on either side) it still participates at a reduced
// weight rather than being excluded, so a near-perfect name match can carry
// a mapping without email evidence.
const (
	emailMatchWeight    = 5.0
	emailMismatchWeight = 0.5
	nameWeight          = 5.0

	// Name evidence alone is treated as conclusive at this similarity,
	// regardless of the blended confidence.
	nameConclusiveThreshold = 0.95
)

// User is the source identity snapshot from the time-tracking system.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// FullName returns the user's display name for comparison.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Candidate is a target contract record from the payments system.
// WorkerEmail and WorkerName are empty when the contract has no linked worker.
type Candidate struct {
	ID          string
	Title       string
	Status      string
	WorkerName  string
	WorkerEmail string
}

// Signals is the fixed set of evidence feeding the confidence score.
// Every field is in [0,1] except the descriptive tags.
type Signals struct {
	EmailMatch     float64   `json:"email_match"`
	NameSimilarity float64   `json:"name_similarity"`
	MatchedAgainst string    `json:"matched_against"`
	NameDetails    NameScore `json:"name_details"`
}

// Result is the outcome of scoring one user against one candidate.
type Result struct {
	HarvestUserID  string
	DeelContractID string
	Confidence     float64
	Signals        Signals
	Decision       Decision
}

// Matcher scores source users against target contracts and applies the
// decision thresholds. Scoring is pure computation; a Matcher is safe for
// concurrent use.
type Matcher struct {
	autoAcceptThreshold float64
	reviewThreshold     float64
}

// NewMatcher creates a matcher with the given confidence thresholds.
// Confidence >= autoAccept auto-matches; >= review queues for human review.
func NewMatcher(autoAcceptThreshold, reviewThreshold float64) *Matcher {
	return &Matcher{
		autoAcceptThreshold: autoAcceptThreshold,
		reviewThreshold:     reviewThreshold,
	}
}

// MatchUser scores a single user against a single contract.
func (m *Matcher) MatchUser(user User, contract Candidate) Result {
	var signals Signals

	// Signal 1: exact email match
	userEmail := NormalizeEmail(user.Email)
	workerEmail := NormalizeEmail(contract.WorkerEmail)

	emailWeight := emailMismatchWeight
	if userEmail != "" && workerEmail != "" && userEmail == workerEmail {
		signals.EmailMatch = 1.0
		emailWeight = emailMatchWeight
	}

	// Signal 2: name similarity against both candidate name fields,
	// keeping whichever scores higher. Contract titles are sometimes
	// "Untitled Contract" while the worker name is the real one.
	fullName := user.FullName()
	titleScore := CompareNames(fullName, contract.Title)
	workerScore := CompareNames(fullName, contract.WorkerName)

	nameScore := titleScore
	signals.MatchedAgainst = MatchedAgainstTitle
	if workerScore.Best > titleScore.Best {
		nameScore = workerScore
		signals.MatchedAgainst = MatchedAgainstWorkerName
	}
	signals.NameSimilarity = nameScore.Best
	signals.NameDetails = nameScore

	confidence := (signals.EmailMatch*emailWeight + signals.NameSimilarity*nameWeight) /
		(emailWeight + nameWeight)

	return Result{
		HarvestUserID:  user.ID,
		DeelContractID: contract.ID,
		Confidence:     confidence,
		Signals:        signals,
		Decision:       m.decide(confidence, signals),
	}
}

// decide applies the threshold policy. The decision is a pure function of
// the signals and the configured thresholds.
func (m *Matcher) decide(confidence float64, signals Signals) Decision {
	switch {
	case signals.NameSimilarity >= nameConclusiveThreshold:
		return DecisionAutoAccept
	case confidence >= m.autoAcceptThreshold:
		return DecisionAutoAccept
	case confidence >= m.reviewThreshold:
		return DecisionNeedsReview
	default:
		return DecisionAutoReject
	}
}

// FindBestMatch scores the user against every in-progress contract and
// returns the highest-confidence result, or nil when no contract remains
// after filtering or the best result is an auto-reject. Ties keep the
// original candidate order.
func (m *Matcher) FindBestMatch(user User, contracts []Candidate) *Result {
	var results []Result
	for _, contract := range contracts {
		if contract.Status != StatusInProgress {
			continue
		}
		results = append(results, m.MatchUser(user, contract))
	}

	if len(results) == 0 {
		return nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})

	best := results[0]
	if best.Decision == DecisionAutoReject {
		return nil
	}
	return &best
}
