package person

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerson_PrimaryEmail(t *testing.T) {
	testCases := []struct {
		description string
		emails      []EmailAddress
		expect      string
	}{
		{description: "flagged primary", emails: []EmailAddress{{Address: "a@x.com"}, {Address: "b@x.com", IsPrimary: true}}, expect: "b@x.com"},
		{description: "first by convention", emails: []EmailAddress{{Address: "a@x.com"}, {Address: "b@x.com"}}, expect: "a@x.com"},
		{description: "none", expect: ""},
	}
	for _, tc := range testCases {
		p := &Person{EmailAddresses: tc.emails}
		assert.Equal(t, tc.expect, p.PrimaryEmail(), tc.description)
	}
}

func TestPerson_FullName(t *testing.T) {
	testCases := []struct {
		description string
		person      Person
		expect      string
	}{
		{description: "name wins", person: Person{Name: "Jo", GivenName: "Joanna", Surname: "Doe"}, expect: "Jo"},
		{description: "given and surname", person: Person{GivenName: "Joanna", Surname: "Doe", DisplayName: "JD"}, expect: "Joanna Doe"},
		{description: "display name", person: Person{GivenName: "Joanna", DisplayName: "JD"}, expect: "JD"},
		{description: "email", person: Person{EmailAddresses: []EmailAddress{{Address: "jd@x.com"}}}, expect: "jd@x.com"},
		{description: "unknown", person: Person{}, expect: "Unknown"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expect, tc.person.FullName(), tc.description)
	}
}

func TestPerson_SourcePriority(t *testing.T) {
	assert.Equal(t, 0, (&Person{}).SourcePriority())
	assert.Equal(t, 80, (&Person{Sources: []Source{SourceFuzzyMatch, SourcePersonalContacts}}).SourcePriority())
	assert.Equal(t, 100, (&Person{Sources: []Source{SourceEmailHistory, SourceDirectory}}).SourcePriority())
}

func TestPerson_AddSource(t *testing.T) {
	freezeClock(t)
	p := &Person{Sources: []Source{SourceDirectory}}
	p.AddSource(SourceDirectory)
	assert.Equal(t, []Source{SourceDirectory}, p.Sources)
	assert.True(t, p.UpdatedAt.IsZero(), "duplicate add should not touch UpdatedAt")

	p.AddSource(SourceEmailHistory)
	assert.Equal(t, []Source{SourceDirectory, SourceEmailHistory}, p.Sources)
	assert.Equal(t, fixedNow, p.UpdatedAt)
}

func mustPerson(t *testing.T) func(*Person, error) *Person {
	return func(p *Person, err error) *Person {
		t.Helper()
		require.NoError(t, err)
		return p
	}
}

func TestPerson_MergeWith_Union(t *testing.T) {
	freezeClock(t)
	a := mustPerson(t)(FromDirectory(resolution("Ann Lee", "ann@acme.com"), false))
	a.PhoneNumbers = []PhoneNumber{{Number: "111"}}
	b := mustPerson(t)(FromContact(ContactInfo{
		GivenName: "Ann", Surname: "Lee",
		EmailAddresses: []ContactEmail{{Address: "ANN@acme.com"}, {Address: "ann.lee@home.org"}},
		MobilePhone:    "222",
		BusinessPhone:  "111",
	}))

	for _, merged := range []*Person{a.MergeWith(b), b.MergeWith(a)} {
		var emails []string
		for _, e := range merged.EmailAddresses {
			emails = append(emails, e.Address)
		}
		assert.ElementsMatch(t, []string{"ann@acme.com", "ann.lee@home.org"}, emails)
		var phones []string
		for _, ph := range merged.PhoneNumbers {
			phones = append(phones, ph.Number)
		}
		assert.ElementsMatch(t, []string{"111", "222"}, phones)
		assert.ElementsMatch(t, []Source{SourceDirectory, SourcePersonalContacts}, merged.Sources)
		assert.Equal(t, "ann@acme.com", merged.PrimaryEmail())
		assert.Equal(t, "ann@acme.com", merged.ID)
	}

	assert.Len(t, a.EmailAddresses, 1, "input must not be mutated")
	assert.Equal(t, []Source{SourcePersonalContacts}, b.Sources, "input must not be mutated")
}

func TestPerson_MergeWith_BaseSelection(t *testing.T) {
	freezeClock(t)
	directory := &Person{
		ID: "jd@acme.com", Name: "John Doe",
		EmailAddresses: []EmailAddress{{Address: "jd@acme.com", IsPrimary: true}},
		Sources:        []Source{SourceDirectory},
		Organization:   "Acme",
	}
	history := &Person{
		ID: "jd@acme.com", Name: "jd",
		EmailAddresses: []EmailAddress{{Address: "jd@acme.com", IsPrimary: true}},
		Sources:        []Source{SourceEmailHistory},
		Organization:   "Acme Subsidiary",
		JobTitle:       "Engineer",
	}

	for _, merged := range []*Person{directory.MergeWith(history), history.MergeWith(directory)} {
		assert.Equal(t, "Acme", merged.Organization)
		assert.Equal(t, "Engineer", merged.JobTitle, "empty base field is filled from the donor")
		assert.Equal(t, "John Doe", merged.Name)
		assert.Equal(t, fixedNow, merged.UpdatedAt)
	}
}

func TestPerson_MergeWith_TieKeepsReceiver(t *testing.T) {
	a := &Person{Name: "A", Department: "Sales", Sources: []Source{SourceEmailHistory}, EmailAddresses: []EmailAddress{{Address: "x@y.com"}}}
	b := &Person{Name: "B", Department: "Ops", Sources: []Source{SourceEmailHistory}, EmailAddresses: []EmailAddress{{Address: "x@y.com"}}}
	assert.Equal(t, "Sales", a.MergeWith(b).Department)
	assert.Equal(t, "Ops", b.MergeWith(a).Department)
}

func TestPerson_MergeWith_Stats(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	base := &Person{Sources: []Source{SourceDirectory}, EmailAddresses: []EmailAddress{{Address: "x@y.com"}}}
	donor := &Person{Sources: []Source{SourceEmailHistory}, EmailAddresses: []EmailAddress{{Address: "x@y.com"}},
		CommunicationStats: &CommunicationStats{TotalEmails: 3, EmailsSent: 1, FirstContact: &mid, LastContact: &late}}

	adopted := base.MergeWith(donor)
	require.NotNil(t, adopted.CommunicationStats)
	assert.Equal(t, 3, adopted.CommunicationStats.TotalEmails)
	adopted.CommunicationStats.TotalEmails = 99
	assert.Equal(t, 3, donor.CommunicationStats.TotalEmails, "adopted stats are copied")

	base.CommunicationStats = &CommunicationStats{TotalEmails: 2, EmailsReceived: 2, FirstContact: &early, LastContact: &mid}
	summed := base.MergeWith(donor).CommunicationStats
	assert.Equal(t, 5, summed.TotalEmails)
	assert.Equal(t, 1, summed.EmailsSent)
	assert.Equal(t, 2, summed.EmailsReceived)
	assert.Equal(t, early, *summed.FirstContact)
	assert.Equal(t, late, *summed.LastContact)
	assert.Equal(t, 2, base.CommunicationStats.TotalEmails)
}

func TestPerson_MergeWith_VIPAndMetadata(t *testing.T) {
	base := &Person{Sources: []Source{SourceDirectory}, EmailAddresses: []EmailAddress{{Address: "x@y.com"}},
		Metadata: map[string]any{"team": "core", "region": "emea"}}
	donor := &Person{Sources: []Source{SourceFuzzyMatch}, EmailAddresses: []EmailAddress{{Address: "x@y.com"}},
		IsVIP: true, Metadata: map[string]any{"team": "platform"}}

	merged := base.MergeWith(donor)
	assert.True(t, merged.IsVIP)
	assert.Equal(t, map[string]any{"team": "platform", "region": "emea"}, merged.Metadata)
	assert.Equal(t, "core", base.Metadata["team"])
}

func TestFactories_MissingEmail(t *testing.T) {
	_, err := FromDirectory(resolution("Nobody", " "), true)
	assert.True(t, errors.Is(err, ErrMissingEmail))
	_, err = FromMailbox(Mailbox{Name: "Nobody"}, nil)
	assert.True(t, errors.Is(err, ErrMissingEmail))
	_, err = FromContact(ContactInfo{DisplayName: "Nobody", EmailAddresses: []ContactEmail{{Address: ""}}})
	assert.True(t, errors.Is(err, ErrMissingEmail))
}

func TestFromDirectory_FullData(t *testing.T) {
	r := Resolution{
		Mailbox: Mailbox{Name: "Jane Roe", EmailAddress: "Jane.Roe@Acme.com"},
		Contact: &ContactInfo{
			GivenName: "Jane", Surname: "Roe", CompanyName: "Acme", Department: "R&D", JobTitle: "Lead",
			PhoneNumbers:  []Phone{{Label: "BusinessPhone", Number: "+1 555"}},
			BusinessPhone: "+1 555",
			MobilePhone:   "+1 777",
		},
	}
	p := mustPerson(t)(FromDirectory(r, true))
	assert.Equal(t, "jane.roe@acme.com", p.ID)
	assert.Equal(t, "Jane.Roe@Acme.com", p.PrimaryEmail())
	assert.Equal(t, "SMTP", p.EmailAddresses[0].RoutingType)
	assert.Equal(t, "Acme", p.Organization)
	assert.Equal(t, []PhoneNumber{{Number: "+1 555", Type: "BusinessPhone"}, {Number: "+1 777", Type: "mobile"}}, p.PhoneNumbers)

	lean := mustPerson(t)(FromDirectory(r, false))
	assert.Empty(t, lean.Organization)
	assert.Equal(t, []Source{SourceDirectory}, lean.Sources)
}

func TestFromContact_Naming(t *testing.T) {
	p := mustPerson(t)(FromContact(ContactInfo{DisplayName: "Bobby", EmailAddresses: []ContactEmail{{Address: ""}, {Address: "bob@x.com"}}}))
	assert.Equal(t, "Bobby", p.Name)
	assert.Equal(t, "bob@x.com", p.ID)
	assert.True(t, p.EmailAddresses[0].IsPrimary)
	assert.Equal(t, "email2", p.EmailAddresses[0].Label)
}

func TestPerson_RelationshipStrength(t *testing.T) {
	freezeClock(t)
	assert.Equal(t, 0.0, (&Person{}).RelationshipStrength())

	last := fixedNow.AddDate(0, 0, -73)
	rate := 0.5
	p := &Person{IsVIP: true, CommunicationStats: &CommunicationStats{TotalEmails: 10, LastContact: &last, ResponseRate: &rate}}
	assert.InDelta(t, 0.1+0.24+0.1+0.2, p.RelationshipStrength(), 1e-9)

	p.CommunicationStats.TotalEmails = 500
	p.CommunicationStats.LastContact = &fixedNow
	one := 1.0
	p.CommunicationStats.ResponseRate = &one
	assert.InDelta(t, 1.0, p.RelationshipStrength(), 1e-9)
}
