package graph

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
)

// TokenSource issues bearer tokens for Graph REST calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Session binds a Manager to one account so transport adapters can authenticate lazily.
type Session struct {
	manager *Manager
	account Account
	scopes  []string
	prompt  func(string)
}

// Session returns a Session for account; prompt receives device-code messages when login is needed.
func (m *Manager) Session(account Account, scopes []string, prompt func(string)) *Session {
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	return &Session{manager: m, account: account, scopes: scopes, prompt: prompt}
}

// Token returns an access token for the session account.
func (s *Session) Token(ctx context.Context) (string, error) {
	cred, err := s.manager.Credential(ctx, s.account.Alias, s.account.TenantID, s.scopes, s.prompt)
	if err != nil {
		return "", err
	}
	tok, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: s.scopes})
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// Client returns the Graph SDK client for the session account.
func (s *Session) Client(ctx context.Context) (*msgraphsdk.GraphServiceClient, error) {
	return s.manager.Client(ctx, s.account.Alias, s.account.TenantID, s.scopes, s.prompt)
}

// Directory returns a directory resolver authenticated as the session account.
func (s *Session) Directory(opts ...RESTOption) *Directory {
	return NewDirectory(s, opts...)
}

// Contacts returns the personal contacts of mailbox, or of the signed-in user when empty.
func (s *Session) Contacts(mailbox string, opts ...RESTOption) *Contacts {
	return NewContacts(s, mailbox, opts...)
}

// Mailbox returns a message reader for mailbox, or for the signed-in user when empty.
func (s *Session) Mailbox(mailbox string) *Mailbox {
	return NewMailbox(s.Client, mailbox)
}
