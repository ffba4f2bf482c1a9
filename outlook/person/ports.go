package person

import (
	"context"
	"time"
)

// Mailbox identifies a mail recipient as reported by the directory or a message.
type Mailbox struct {
	Name         string `json:"name,omitempty"`
	EmailAddress string `json:"emailAddress"`
	RoutingType  string `json:"routingType,omitempty"`
}

// Phone is a labelled contact phone number.
type Phone struct {
	Label  string `json:"label,omitempty"`
	Number string `json:"number"`
}

// ContactEmail is a labelled contact email address.
type ContactEmail struct {
	Label   string `json:"label,omitempty"`
	Address string `json:"address"`
}

// ContactInfo holds the directory or personal-contact details of a person.
type ContactInfo struct {
	DisplayName    string         `json:"displayName,omitempty"`
	GivenName      string         `json:"givenName,omitempty"`
	Surname        string         `json:"surname,omitempty"`
	CompanyName    string         `json:"companyName,omitempty"`
	Department     string         `json:"department,omitempty"`
	JobTitle       string         `json:"jobTitle,omitempty"`
	OfficeLocation string         `json:"officeLocation,omitempty"`
	PhoneNumbers   []Phone        `json:"phoneNumbers,omitempty"`
	BusinessPhone  string         `json:"businessPhone,omitempty"`
	MobilePhone    string         `json:"mobilePhone,omitempty"`
	EmailAddresses []ContactEmail `json:"emailAddresses,omitempty"`
}

// Resolution is one directory match; Contact is set only when full data was requested and available.
type Resolution struct {
	Mailbox Mailbox      `json:"mailbox"`
	Contact *ContactInfo `json:"contact,omitempty"`
}

// Folder names a mailbox folder scanned for email history.
type Folder string

const (
	FolderInbox Folder = "inbox"
	FolderSent  Folder = "sent"
)

// MailItem carries the counterpart addresses and timestamps of one message.
type MailItem struct {
	Sender       *Mailbox
	ToRecipients []Mailbox
	Received     time.Time
	Sent         time.Time
}

// Resolver resolves a name, email or wildcard pattern against the directory.
// No match is an empty result, not an error.
type Resolver interface {
	Resolve(ctx context.Context, query string, fullData bool) ([]Resolution, error)
}

// ContactLister enumerates the caller's personal contacts.
type ContactLister interface {
	ListContacts(ctx context.Context, limit int) ([]ContactInfo, error)
}

// MailboxReader lists folder items newer than since, newest first.
type MailboxReader interface {
	FilterItems(ctx context.Context, folder Folder, since time.Time, limit int) ([]MailItem, error)
}

// Cache memoizes directory results per key.
type Cache interface {
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) ([]*Person, error)) ([]*Person, error)
}
