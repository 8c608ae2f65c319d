package patient

import (
	"math/bits"
	"time"

	"github.com/google/uuid"
)

// MatchOutcome classifies one candidate record against a subject record.
// Outcomes are computed on demand and never persisted.
type MatchOutcome string

const (
	MatchNone   MatchOutcome = "NO_MATCH"
	MatchReview MatchOutcome = "REVIEW"
	MatchAuto   MatchOutcome = "AUTO_MATCH"
)

// MatchAttribute is one of the compared identity attributes.
type MatchAttribute uint8

const (
	MatchName MatchAttribute = 1 << iota
	MatchDOB
	MatchEmail
	MatchPhone
)

// attributeSet is a fixed-size bit set over the four match attributes, so
// classification is a pure function of set membership independent of the
// order comparisons ran in.
type attributeSet uint8

func (s attributeSet) has(a MatchAttribute) bool { return uint8(s)&uint8(a) != 0 }

func (s attributeSet) size() int { return bits.OnesCount8(uint8(s)) }

// compareAttributes builds the set of attributes on which candidate equals
// subject. Comparison is exact value equality on the stored canonical fields:
// case-sensitive names, and two records that both lack an email or phone
// compare equal on that attribute through shared absence.
func compareAttributes(subject, candidate *Patient) attributeSet {
	var set attributeSet
	if candidate.FirstName == subject.FirstName && candidate.LastName == subject.LastName {
		set |= attributeSet(MatchName)
	}
	if datesEqual(candidate.DOB, subject.DOB) {
		set |= attributeSet(MatchDOB)
	}
	if candidate.Email == subject.Email {
		set |= attributeSet(MatchEmail)
	}
	if candidate.PhoneNo == subject.PhoneNo {
		set |= attributeSet(MatchPhone)
	}
	return set
}

func classify(set attributeSet) MatchOutcome {
	switch {
	case set.size() > 2 && set.has(MatchName) && set.has(MatchDOB):
		return MatchAuto
	case set.size() > 1:
		return MatchReview
	}
	return MatchNone
}

// Score classifies a single candidate against the subject.
func Score(subject, candidate *Patient) MatchOutcome {
	return classify(compareAttributes(subject, candidate))
}

// ScoreAll classifies every candidate against the subject and returns one
// outcome per candidate id. The subject itself is never scored.
func ScoreAll(subject *Patient, candidates []*Patient) map[uuid.UUID]MatchOutcome {
	outcomes := make(map[uuid.UUID]MatchOutcome, len(candidates))
	for _, c := range candidates {
		if c.ID == subject.ID {
			continue
		}
		outcomes[c.ID] = Score(subject, c)
	}
	return outcomes
}

// datesEqual treats two absent dates as equal, matching the value-equality
// semantics of the other attributes.
func datesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
