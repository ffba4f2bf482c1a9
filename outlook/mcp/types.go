package mcp

import (
	"github.com/viant/exchange-mcp/outlook/graph"
	"github.com/viant/exchange-mcp/outlook/person"
)

type FindPersonInput struct {
	Account       graph.Account `json:"account"`
	Query         string        `json:"query" description:"name, email address, partial name or @domain"`
	Sources       []string      `json:"sources,omitempty" description:"sources to search: directory (gal), personal_contacts (contacts), email_history (history); default all"`
	IncludeStats  *bool         `json:"includeStats,omitempty" description:"include communication statistics (default true)"`
	TimeRangeDays int           `json:"timeRangeDays,omitempty" description:"days of email history to scan (default 365)"`
	MaxResults    int           `json:"maxResults,omitempty" description:"maximum number of people to return (default 50)"`
}

func (in *FindPersonInput) options() person.FindOptions {
	opts := person.NewFindOptions(in.Query)
	if sources := person.ParseSources(in.Sources); len(sources) > 0 {
		opts.Sources = sources
	}
	if in.IncludeStats != nil {
		opts.IncludeStats = *in.IncludeStats
	}
	if in.TimeRangeDays > 0 {
		opts.TimeRangeDays = in.TimeRangeDays
	}
	if in.MaxResults > 0 {
		opts.MaxResults = in.MaxResults
	}
	return opts
}

type FindPersonOutput struct {
	Query        string       `json:"query"`
	TotalResults int          `json:"totalResults"`
	People       []PersonView `json:"people"`
}

type GetPersonInput struct {
	Account        graph.Account `json:"account"`
	Email          string        `json:"email" description:"email address of the person"`
	IncludeHistory *bool         `json:"includeHistory,omitempty" description:"include communication statistics (default true)"`
	DaysBack       int           `json:"daysBack,omitempty" description:"days of email history to scan (default 365)"`
}

type GetPersonOutput struct {
	Found  bool        `json:"found"`
	Email  string      `json:"email"`
	Person *PersonView `json:"person,omitempty"`
}

type CommunicationHistoryInput struct {
	Account   graph.Account `json:"account"`
	Email     string        `json:"email" description:"email address of the counterpart"`
	DaysBack  int           `json:"daysBack,omitempty" description:"days of email history to scan (default 365)"`
	MaxEmails int           `json:"maxEmails,omitempty" description:"maximum messages scanned per folder (default 100)"`
}

type CommunicationHistoryOutput struct {
	Email    string                     `json:"email"`
	DaysBack int                        `json:"daysBack"`
	Stats    *person.CommunicationStats `json:"stats"`
}

type ResolveNamesInput struct {
	Account        graph.Account `json:"account"`
	NameQuery      string        `json:"nameQuery" description:"name or address fragment to resolve against the directory"`
	ReturnFullInfo bool          `json:"returnFullInfo,omitempty" description:"include contact details such as job title and phones"`
}

type ResolvedName struct {
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress"`
	RoutingType  string `json:"routingType,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	Company      string `json:"company,omitempty"`
	Department   string `json:"department,omitempty"`
	JobTitle     string `json:"jobTitle,omitempty"`
	Office       string `json:"office,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

type ResolveNamesOutput struct {
	Query   string         `json:"query"`
	Results []ResolvedName `json:"results"`
	Count   int            `json:"count"`
}

// PersonView adds derived fields to a person for tool output.
type PersonView struct {
	*person.Person
	PrimaryEmail         string  `json:"primaryEmail"`
	FullName             string  `json:"fullName"`
	SourcePriority       int     `json:"sourcePriority"`
	RelationshipStrength float64 `json:"relationshipStrength"`
}

func newPersonView(p *person.Person) PersonView {
	return PersonView{
		Person:               p,
		PrimaryEmail:         p.PrimaryEmail(),
		FullName:             p.FullName(),
		SourcePriority:       p.SourcePriority(),
		RelationshipStrength: p.RelationshipStrength(),
	}
}

func newPersonViews(people []*person.Person) []PersonView {
	out := make([]PersonView, 0, len(people))
	for _, p := range people {
		out = append(out, newPersonView(p))
	}
	return out
}

func newResolvedName(r person.Resolution) ResolvedName {
	ret := ResolvedName{Name: r.Mailbox.Name, EmailAddress: r.Mailbox.EmailAddress, RoutingType: r.Mailbox.RoutingType}
	if c := r.Contact; c != nil {
		ret.DisplayName = c.DisplayName
		ret.Company = c.CompanyName
		ret.Department = c.Department
		ret.JobTitle = c.JobTitle
		ret.Office = c.OfficeLocation
		ret.Phone = firstPhone(c)
	}
	return ret
}

func firstPhone(c *person.ContactInfo) string {
	switch {
	case c.BusinessPhone != "":
		return c.BusinessPhone
	case c.MobilePhone != "":
		return c.MobilePhone
	case len(c.PhoneNumbers) > 0:
		return c.PhoneNumbers[0].Number
	}
	return ""
}

func daysOrDefault(days int) int {
	if days <= 0 {
		return 365
	}
	return days
}
