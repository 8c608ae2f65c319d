package patient

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func testPatient(first, last string, dob *time.Time, email, phone string) *Patient {
	p := New(uuid.New(), first, last)
	p.DOB = dob
	p.Email = email
	p.PhoneNo = phone
	return p
}

func TestScoreAutoMatch(t *testing.T) {
	subject := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "+61412345678")

	// Name, DOB and email agree: three attributes including both anchors.
	candidate := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "+61400000000")

	assert.Equal(t, MatchAuto, Score(subject, candidate))
}

func TestScoreReviewWithoutAnchors(t *testing.T) {
	subject := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "+61412345678")

	// Email and phone agree but name differs: review, never auto.
	candidate := testPatient("Janet", "Doe", datePtr(1985, time.July, 1), "jane@example.com", "+61412345678")

	assert.Equal(t, MatchReview, Score(subject, candidate))
}

func TestScoreThreeAttributesWithoutNameIsReview(t *testing.T) {
	subject := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "+61412345678")

	// DOB, email and phone agree but the name does not: more than two
	// attributes still only reaches review without both name and DOB.
	candidate := testPatient("Janet", "Roe", datePtr(1990, time.March, 14), "jane@example.com", "+61412345678")

	assert.Equal(t, MatchReview, Score(subject, candidate))
}

func TestScoreSingleAttributeIsNoMatch(t *testing.T) {
	subject := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "+61412345678")
	candidate := testPatient("Jane", "Doe", datePtr(1985, time.July, 1), "other@example.com", "+61400000000")

	assert.Equal(t, MatchNone, Score(subject, candidate))
}

func TestScoreNamesAreCaseSensitive(t *testing.T) {
	subject := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "")
	candidate := testPatient("jane", "doe", datePtr(1990, time.March, 14), "jane@example.com", "")

	// Lowercased name does not count as the name attribute, but shared
	// absence of a phone number does count as the phone attribute.
	assert.Equal(t, MatchReview, Score(subject, candidate))
}

func TestScoreSharedAbsenceCounts(t *testing.T) {
	// Neither record has email, phone or DOB. All three compare equal
	// through shared absence, and with the name agreeing the pair
	// classifies as an auto match.
	subject := testPatient("Jane", "Doe", nil, "", "")
	candidate := testPatient("Jane", "Doe", nil, "", "")

	assert.Equal(t, MatchAuto, Score(subject, candidate))
}

func TestScoreAbsentVersusPresentDOB(t *testing.T) {
	subject := testPatient("Jane", "Doe", nil, "jane@example.com", "")
	candidate := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "")

	// Name, email, shared-absent phone agree; DOB does not. Three
	// attributes without the DOB anchor: review.
	assert.Equal(t, MatchReview, Score(subject, candidate))
}

func TestScoreAllSkipsSubject(t *testing.T) {
	subject := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "+61412345678")
	twin := testPatient("Jane", "Doe", datePtr(1990, time.March, 14), "jane@example.com", "+61412345678")

	outcomes := ScoreAll(subject, []*Patient{subject, twin})

	assert.Len(t, outcomes, 1)
	assert.NotContains(t, outcomes, subject.ID)
	assert.Equal(t, MatchAuto, outcomes[twin.ID])
}

func TestDatesEqual(t *testing.T) {
	a := datePtr(1990, time.March, 14)
	b := datePtr(1990, time.March, 14)
	c := datePtr(1991, time.March, 14)

	assert.True(t, datesEqual(a, b))
	assert.False(t, datesEqual(a, c))
	assert.True(t, datesEqual(nil, nil))
	assert.False(t, datesEqual(a, nil))
	assert.False(t, datesEqual(nil, a))
}
