package graph

import (
	"context"
	"fmt"
	"time"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
	"github.com/viant/exchange-mcp/outlook/person"
)

const messagesPageSize = 100

var folderIDs = map[person.Folder]string{
	person.FolderInbox: "inbox",
	person.FolderSent:  "sentitems",
}

// ClientFunc returns an authenticated Graph SDK client.
type ClientFunc func(ctx context.Context) (*msgraphsdk.GraphServiceClient, error)

// Mailbox reads message headers from well-known mail folders.
type Mailbox struct {
	client  ClientFunc
	mailbox string
}

// NewMailbox creates a reader for mailbox; empty means the signed-in user.
func NewMailbox(client ClientFunc, mailbox string) *Mailbox {
	return &Mailbox{client: client, mailbox: mailbox}
}

func (m *Mailbox) messages(client *msgraphsdk.GraphServiceClient, folderID string) *users.ItemMailFoldersItemMessagesRequestBuilder {
	if m.mailbox == "" {
		return client.Me().MailFolders().ByMailFolderId(folderID).Messages()
	}
	return client.Users().ByUserId(m.mailbox).MailFolders().ByMailFolderId(folderID).Messages()
}

// FilterItems returns up to limit messages of folder newer than since, newest first.
func (m *Mailbox) FilterItems(ctx context.Context, folder person.Folder, since time.Time, limit int) ([]person.MailItem, error) {
	folderID, ok := folderIDs[folder]
	if !ok {
		return nil, fmt.Errorf("unsupported folder %q", folder)
	}
	client, err := m.client(ctx)
	if err != nil {
		return nil, err
	}
	timeField := "receivedDateTime"
	if folder == person.FolderSent {
		timeField = "sentDateTime"
	}
	if limit <= 0 {
		limit = messagesPageSize
	}
	filter := fmt.Sprintf("%s ge %s", timeField, since.UTC().Format(time.RFC3339))
	top := int32(min(limit, messagesPageSize))
	cfg := &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{
			Filter:  &filter,
			Orderby: []string{timeField + " desc"},
			Select:  []string{"sender", "toRecipients", "receivedDateTime", "sentDateTime"},
			Top:     &top,
		},
	}
	builder := m.messages(client, folderID)
	resp, err := builder.Get(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("list %s messages: %w", folderID, err)
	}
	out := make([]person.MailItem, 0, top)
	for resp != nil {
		for _, msg := range resp.GetValue() {
			out = append(out, toMailItem(msg))
			if len(out) >= limit {
				return out, nil
			}
		}
		next := resp.GetOdataNextLink()
		if next == nil || *next == "" {
			break
		}
		if resp, err = builder.WithUrl(*next).Get(ctx, nil); err != nil {
			return nil, fmt.Errorf("list %s messages: %w", folderID, err)
		}
	}
	return out, nil
}

func toMailItem(msg models.Messageable) person.MailItem {
	item := person.MailItem{
		Received: ptrVal(msg.GetReceivedDateTime()),
		Sent:     ptrVal(msg.GetSentDateTime()),
	}
	if sender, ok := toMailbox(msg.GetSender()); ok {
		item.Sender = &sender
	}
	for _, r := range msg.GetToRecipients() {
		if to, ok := toMailbox(r); ok {
			item.ToRecipients = append(item.ToRecipients, to)
		}
	}
	return item
}

func toMailbox(r models.Recipientable) (person.Mailbox, bool) {
	if r == nil || r.GetEmailAddress() == nil {
		return person.Mailbox{}, false
	}
	ea := r.GetEmailAddress()
	return person.Mailbox{Name: ptrVal(ea.GetName()), EmailAddress: ptrVal(ea.GetAddress()), RoutingType: "SMTP"}, true
}
