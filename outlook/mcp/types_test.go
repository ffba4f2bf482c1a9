package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/exchange-mcp/outlook/person"
)

func TestFindPersonInputOptions(t *testing.T) {
	off := false
	testCases := []struct {
		description string
		input       FindPersonInput
		expect      person.FindOptions
	}{
		{
			description: "defaults",
			input:       FindPersonInput{Query: "ann"},
			expect:      person.NewFindOptions("ann"),
		},
		{
			description: "overrides",
			input:       FindPersonInput{Query: "ann", Sources: []string{"gal", "bogus"}, IncludeStats: &off, TimeRangeDays: 30, MaxResults: 5},
			expect:      person.FindOptions{Query: "ann", Sources: []person.Source{person.SourceDirectory}, TimeRangeDays: 30, MaxResults: 5},
		},
		{
			description: "unknown sources fall back to all",
			input:       FindPersonInput{Query: "ann", Sources: []string{"bogus"}},
			expect:      person.NewFindOptions("ann"),
		},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expect, tc.input.options(), tc.description)
	}
}

func TestPersonViewJSON(t *testing.T) {
	p, err := person.FromMailbox(person.Mailbox{Name: "Ann Lee", EmailAddress: "ann@acme.com"}, nil)
	assert.NoError(t, err)
	view := newPersonView(p)
	assert.Equal(t, "ann@acme.com", view.PrimaryEmail)
	assert.Equal(t, "Ann Lee", view.FullName)
	assert.Equal(t, p.SourcePriority(), view.SourcePriority)
	assert.Equal(t, "ann@acme.com", view.ID)
}

func TestNewResolvedName(t *testing.T) {
	r := person.Resolution{
		Mailbox: person.Mailbox{Name: "Ann", EmailAddress: "ann@acme.com", RoutingType: "SMTP"},
		Contact: &person.ContactInfo{JobTitle: "Lead", MobilePhone: "+1 777", PhoneNumbers: []person.Phone{{Number: "+1 555"}}},
	}
	got := newResolvedName(r)
	assert.Equal(t, ResolvedName{Name: "Ann", EmailAddress: "ann@acme.com", RoutingType: "SMTP", JobTitle: "Lead", Phone: "+1 777"}, got)
	assert.Equal(t, ResolvedName{Name: "Ann", EmailAddress: "ann@acme.com", RoutingType: "SMTP"}, newResolvedName(person.Resolution{Mailbox: r.Mailbox}))
}
