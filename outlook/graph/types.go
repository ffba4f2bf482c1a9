package graph

import (
	"strings"

	"github.com/viant/exchange-mcp/outlook/person"
)

// Account selects the signed-in mailbox used by a tool call.
type Account struct {
	// Alias identifies a stored account (e.g. "work", "personal").
	Alias    string `json:"alias" description:"account name"`
	TenantID string `json:"-" internal:"true"`
}

type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// directoryUser is the subset of a Graph user resource read by Directory.
type directoryUser struct {
	DisplayName       string   `json:"displayName"`
	GivenName         string   `json:"givenName"`
	Surname           string   `json:"surname"`
	Mail              string   `json:"mail"`
	UserPrincipalName string   `json:"userPrincipalName"`
	CompanyName       string   `json:"companyName"`
	Department        string   `json:"department"`
	JobTitle          string   `json:"jobTitle"`
	OfficeLocation    string   `json:"officeLocation"`
	BusinessPhones    []string `json:"businessPhones"`
	MobilePhone       string   `json:"mobilePhone"`
}

func (u *directoryUser) email() string {
	if u.Mail != "" {
		return u.Mail
	}
	if strings.Contains(u.UserPrincipalName, "@") {
		return u.UserPrincipalName
	}
	return ""
}

func (u *directoryUser) resolution(fullData bool) person.Resolution {
	r := person.Resolution{Mailbox: person.Mailbox{Name: u.DisplayName, EmailAddress: u.email(), RoutingType: "SMTP"}}
	if !fullData {
		return r
	}
	info := &person.ContactInfo{
		DisplayName:    u.DisplayName,
		GivenName:      u.GivenName,
		Surname:        u.Surname,
		CompanyName:    u.CompanyName,
		Department:     u.Department,
		JobTitle:       u.JobTitle,
		OfficeLocation: u.OfficeLocation,
		MobilePhone:    u.MobilePhone,
	}
	for _, number := range u.BusinessPhones {
		info.PhoneNumbers = append(info.PhoneNumbers, person.Phone{Label: "business", Number: number})
	}
	if len(u.BusinessPhones) > 0 {
		info.BusinessPhone = u.BusinessPhones[0]
	}
	r.Contact = info
	return r
}

// contact is the subset of a Graph contact resource read by Contacts.
type contact struct {
	DisplayName    string         `json:"displayName"`
	GivenName      string         `json:"givenName"`
	Surname        string         `json:"surname"`
	CompanyName    string         `json:"companyName"`
	Department     string         `json:"department"`
	JobTitle       string         `json:"jobTitle"`
	OfficeLocation string         `json:"officeLocation"`
	BusinessPhones []string       `json:"businessPhones"`
	HomePhones     []string       `json:"homePhones"`
	MobilePhone    string         `json:"mobilePhone"`
	EmailAddresses []emailAddress `json:"emailAddresses"`
}

func (c *contact) info() person.ContactInfo {
	info := person.ContactInfo{
		DisplayName:    c.DisplayName,
		GivenName:      c.GivenName,
		Surname:        c.Surname,
		CompanyName:    c.CompanyName,
		Department:     c.Department,
		JobTitle:       c.JobTitle,
		OfficeLocation: c.OfficeLocation,
		MobilePhone:    c.MobilePhone,
	}
	for _, number := range c.BusinessPhones {
		info.PhoneNumbers = append(info.PhoneNumbers, person.Phone{Label: "business", Number: number})
	}
	for _, number := range c.HomePhones {
		info.PhoneNumbers = append(info.PhoneNumbers, person.Phone{Label: "home", Number: number})
	}
	if len(c.BusinessPhones) > 0 {
		info.BusinessPhone = c.BusinessPhones[0]
	}
	for _, e := range c.EmailAddresses {
		info.EmailAddresses = append(info.EmailAddresses, person.ContactEmail{Address: e.Address})
	}
	return info
}
