package graph

import (
	"context"
	"fmt"
	neturl "net/url"
	"strconv"

	"github.com/viant/exchange-mcp/outlook/person"
)

const contactsPageSize = 100

const contactsSelect = "displayName,givenName,surname,companyName,department,jobTitle,officeLocation,businessPhones,homePhones,mobilePhone,emailAddresses"

// Contacts lists personal contacts of a mailbox.
type Contacts struct {
	rest    restClient
	mailbox string
}

// NewContacts creates a Contacts reader for mailbox; empty means the signed-in user.
func NewContacts(tokens TokenSource, mailbox string, opts ...RESTOption) *Contacts {
	return &Contacts{rest: newRESTClient(tokens, opts), mailbox: mailbox}
}

// ListContacts returns up to limit contacts, following result pages.
func (c *Contacts) ListContacts(ctx context.Context, limit int) ([]person.ContactInfo, error) {
	if limit <= 0 {
		limit = contactsPageSize
	}
	q := neturl.Values{}
	q.Set("$top", strconv.Itoa(min(limit, contactsPageSize)))
	q.Set("$select", contactsSelect)
	next := c.rest.url(userPath(c.mailbox)+"/contacts", q)

	var out []person.ContactInfo
	for next != "" && len(out) < limit {
		var page struct {
			Value    []contact `json:"value"`
			NextLink string    `json:"@odata.nextLink"`
		}
		if err := c.rest.get(ctx, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		for i := range page.Value {
			if len(out) >= limit {
				break
			}
			out = append(out, page.Value[i].info())
		}
		next = page.NextLink
	}
	return out, nil
}
