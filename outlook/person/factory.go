package person

import (
	"fmt"
	"strings"
)

const defaultRoutingType = "SMTP"

// FromDirectory builds a Person from a directory resolution.
// Contact details are copied only when fullData is set.
func FromDirectory(r Resolution, fullData bool) (*Person, error) {
	email := strings.TrimSpace(r.Mailbox.EmailAddress)
	if email == "" {
		return nil, fmt.Errorf("directory entry %q: %w", r.Mailbox.Name, ErrMissingEmail)
	}
	p := newPerson(email, firstNonEmpty(r.Mailbox.Name, email), SourceDirectory)
	p.EmailAddresses = []EmailAddress{{
		Address:     email,
		Label:       "primary",
		IsPrimary:   true,
		RoutingType: firstNonEmpty(r.Mailbox.RoutingType, defaultRoutingType),
	}}
	if fullData && r.Contact != nil {
		c := r.Contact
		p.DisplayName = c.DisplayName
		p.GivenName = c.GivenName
		p.Surname = c.Surname
		p.Organization = c.CompanyName
		p.Department = c.Department
		p.JobTitle = c.JobTitle
		p.OfficeLocation = c.OfficeLocation
		p.PhoneNumbers = contactPhones(c)
	}
	return p, nil
}

// FromMailbox builds a Person observed as a mail counterpart.
func FromMailbox(m Mailbox, stats *CommunicationStats) (*Person, error) {
	email := strings.TrimSpace(m.EmailAddress)
	if email == "" {
		return nil, fmt.Errorf("mail counterpart %q: %w", m.Name, ErrMissingEmail)
	}
	p := newPerson(email, firstNonEmpty(m.Name, email), SourceEmailHistory)
	p.EmailAddresses = []EmailAddress{{
		Address:     email,
		Label:       "primary",
		IsPrimary:   true,
		RoutingType: firstNonEmpty(m.RoutingType, defaultRoutingType),
	}}
	p.CommunicationStats = stats
	return p, nil
}

// FromContact builds a Person from a personal contact; the first address is primary.
func FromContact(c ContactInfo) (*Person, error) {
	var emails []EmailAddress
	for i, e := range c.EmailAddresses {
		address := strings.TrimSpace(e.Address)
		if address == "" {
			continue
		}
		emails = append(emails, EmailAddress{
			Address:     address,
			Label:       firstNonEmpty(e.Label, fmt.Sprintf("email%d", i+1)),
			IsPrimary:   len(emails) == 0,
			RoutingType: defaultRoutingType,
		})
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("contact %q: %w", c.DisplayName, ErrMissingEmail)
	}
	name := c.DisplayName
	if c.GivenName != "" && c.Surname != "" {
		name = c.GivenName + " " + c.Surname
	}
	p := newPerson(emails[0].Address, firstNonEmpty(name, emails[0].Address), SourcePersonalContacts)
	p.DisplayName = c.DisplayName
	p.GivenName = c.GivenName
	p.Surname = c.Surname
	p.EmailAddresses = emails
	p.Organization = c.CompanyName
	p.Department = c.Department
	p.JobTitle = c.JobTitle
	p.OfficeLocation = c.OfficeLocation
	p.PhoneNumbers = contactPhones(&c)
	return p, nil
}

func newPerson(email, name string, source Source) *Person {
	now := Now()
	return &Person{
		ID:        strings.ToLower(email),
		Name:      name,
		Sources:   []Source{source},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// contactPhones flattens listed, business and mobile numbers, skipping repeats.
func contactPhones(c *ContactInfo) []PhoneNumber {
	var out []PhoneNumber
	seen := map[string]bool{}
	add := func(number, kind string) {
		number = strings.TrimSpace(number)
		if number == "" || seen[number] {
			return
		}
		seen[number] = true
		out = append(out, PhoneNumber{Number: number, Type: kind})
	}
	for _, ph := range c.PhoneNumbers {
		add(ph.Number, firstNonEmpty(ph.Label, "business"))
	}
	add(c.BusinessPhone, "business")
	add(c.MobilePhone, "mobile")
	return out
}
