// Package resolve scores draft records against existing canonical entities
// and decides whether to link, create, or pause for human intervention.
// The entry point is a pure function: no side effects, all tunables passed
// in explicitly.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/provider-directory/internal/entity"
	"github.com/sells-group/provider-directory/internal/model"
)

// Action is the outcome of identity resolution for one draft.
type Action string

// Resolution actions.
const (
	ActionLink      Action = "link"
	ActionCreate    Action = "create"
	ActionIntervene Action = "intervene"
)

// Config holds the scoring weights and decision thresholds. Values are
// shipped defaults, not constants: callers pass the configured set.
type Config struct {
	NameWeight    float64
	PhoneWeight   float64
	WebsiteWeight float64
	LicenseWeight float64

	// ExactIDBonus is added once to the weighted score when phone, website,
	// or license matched exactly. Compensates for noisy scraped names.
	ExactIDBonus float64

	LinkThreshold      float64
	InterveneThreshold float64
	MaxCandidates      int
}

// DefaultConfig returns the shipped weights and thresholds.
func DefaultConfig() Config {
	return Config{
		NameWeight:         0.40,
		PhoneWeight:        0.30,
		WebsiteWeight:      0.20,
		LicenseWeight:      0.10,
		ExactIDBonus:       15,
		LinkThreshold:      80,
		InterveneThreshold: 65,
		MaxCandidates:      3,
	}
}

// Input carries everything resolution needs for one draft record.
type Input struct {
	Draft *model.DraftDocument

	// PriorLinkedID is set when the record was already linked in a prior
	// run; resolution is idempotent on re-entry.
	PriorLinkedID *int64

	// GroupEntityID is set when another record in the same scrape group
	// already resolved to an entity.
	GroupEntityID *int64

	// Entities are the existing canonical entities to score against.
	Entities []entity.CanonicalEntity
}

// Decision is the resolution outcome.
type Decision struct {
	Action     Action                 `json:"action"`
	EntityID   int64                  `json:"entity_id,omitempty"`
	Candidates []model.MatchCandidate `json:"candidates,omitempty"`
	Scores     map[int64]float64      `json:"scores,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
}

// Resolve decides link/create/intervene for a draft. Short-circuits first:
// a prior link or a resolved scrape group wins without re-scoring.
func Resolve(in Input, cfg Config) Decision {
	if in.PriorLinkedID != nil {
		return Decision{
			Action:   ActionLink,
			EntityID: *in.PriorLinkedID,
			Reason:   "record already linked in a prior run",
		}
	}
	if in.GroupEntityID != nil {
		return Decision{
			Action:   ActionLink,
			EntityID: *in.GroupEntityID,
			Reason:   "scrape group already resolved to entity",
		}
	}

	scored := make([]model.MatchCandidate, 0, len(in.Entities))
	for i := range in.Entities {
		c, ok := scoreEntity(in.Draft, &in.Entities[i], cfg)
		if ok {
			scored = append(scored, c)
		}
	}

	if len(scored) == 0 {
		return Decision{Action: ActionCreate, Reason: "no candidate entities to score"}
	}

	// Deterministic order: score descending, then entity id ascending, so
	// tied candidates in the intervention band surface in a stable order.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].TotalScore != scored[j].TotalScore {
			return scored[i].TotalScore > scored[j].TotalScore
		}
		return scored[i].EntityID < scored[j].EntityID
	})

	best := scored[0]
	switch {
	case best.TotalScore >= cfg.LinkThreshold:
		return Decision{
			Action:   ActionLink,
			EntityID: best.EntityID,
			Reason:   fmt.Sprintf("matched entity %d with score %.1f", best.EntityID, best.TotalScore),
		}

	case best.TotalScore >= cfg.InterveneThreshold:
		band := make([]model.MatchCandidate, 0, cfg.MaxCandidates)
		scores := make(map[int64]float64)
		for _, c := range scored {
			if c.TotalScore < cfg.InterveneThreshold {
				break
			}
			band = append(band, c)
			scores[c.EntityID] = c.TotalScore
			if len(band) == cfg.MaxCandidates {
				break
			}
		}
		return Decision{
			Action:     ActionIntervene,
			Candidates: band,
			Scores:     scores,
			Reason:     renderExplanation(in.Draft.BusinessInfo.Name, band),
		}

	default:
		return Decision{
			Action: ActionCreate,
			Reason: fmt.Sprintf("best score %.1f below intervention threshold", best.TotalScore),
		}
	}
}

// scoreEntity computes the weighted match score between a draft and one
// entity. Weights are renormalized over the signals present on both sides;
// returns ok=false when no signal is comparable.
func scoreEntity(draft *model.DraftDocument, e *entity.CanonicalEntity, cfg Config) (model.MatchCandidate, bool) {
	bi := draft.BusinessInfo

	var weightSum, weighted float64
	var signals model.SignalScores
	exactID := false

	if bi.Name != "" && e.BusinessName != "" {
		signals.Name = TokenSortRatio(bi.Name, e.BusinessName)
		weighted += cfg.NameWeight * signals.Name
		weightSum += cfg.NameWeight
	}

	if dp, ep := NormalizePhone(bi.Phone), NormalizePhone(e.Phone); dp != "" && ep != "" {
		if dp == ep {
			signals.Phone = 100
			exactID = true
		}
		weighted += cfg.PhoneWeight * signals.Phone
		weightSum += cfg.PhoneWeight
	}

	if dd, ed := NormalizeDomain(bi.Website), NormalizeDomain(e.Website); dd != "" && ed != "" {
		if dd == ed {
			signals.Website = 100
			exactID = true
		} else {
			signals.Website = Ratio(dd, ed)
		}
		weighted += cfg.WebsiteWeight * signals.Website
		weightSum += cfg.WebsiteWeight
	}

	if dl, el := bi.License.Number, e.LicenseNumber; dl != "" && el != "" {
		if strings.EqualFold(strings.TrimSpace(dl), strings.TrimSpace(el)) {
			signals.License = 100
			exactID = true
		}
		weighted += cfg.LicenseWeight * signals.License
		weightSum += cfg.LicenseWeight
	}

	if weightSum == 0 {
		return model.MatchCandidate{}, false
	}

	total := weighted / weightSum
	if exactID {
		total += cfg.ExactIDBonus
	}
	if total > 100 {
		total = 100
	}

	return model.MatchCandidate{
		EntityID:   e.ID,
		TotalScore: total,
		Signals:    signals,
	}, true
}

// renderExplanation builds the human-readable summary persisted with an
// intervention, so a reviewer never has to re-run matching to decide.
func renderExplanation(draftName string, candidates []model.MatchCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous match for %q; top candidates:", draftName)
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n%d. entity %d: score %.1f (name %.0f, phone %.0f, website %.0f, license %.0f)",
			i+1, c.EntityID, c.TotalScore,
			c.Signals.Name, c.Signals.Phone, c.Signals.Website, c.Signals.License)
	}
	return b.String()
}
