package graph

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/exchange-mcp/outlook/person"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func TestResolveFilter(t *testing.T) {
	testCases := []struct {
		description string
		query       string
		filter      string
		advanced    bool
	}{
		{description: "exact address", query: "john@acme.com", filter: "mail eq 'john@acme.com' or userPrincipalName eq 'john@acme.com'"},
		{description: "domain", query: "*@acme.com", filter: "endswith(mail,'@acme.com')", advanced: true},
		{description: "wildcard name", query: "O'Brien*", filter: "startswith(displayName,'O''Brien') or startswith(givenName,'O''Brien') or startswith(surname,'O''Brien') or startswith(mail,'O''Brien') or startswith(mailNickname,'O''Brien')"},
		{description: "wildcard address", query: "john@acme*", filter: "startswith(displayName,'john@acme') or startswith(givenName,'john@acme') or startswith(surname,'john@acme') or startswith(mail,'john@acme') or startswith(mailNickname,'john@acme')"},
		{description: "empty", query: " * "},
		{description: "empty domain", query: "*@"},
	}
	for _, tc := range testCases {
		filter, advanced := resolveFilter(tc.query)
		assert.Equal(t, tc.filter, filter, tc.description)
		assert.Equal(t, tc.advanced, advanced, tc.description)
	}
}

func TestDirectory_Resolve(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[
			{"displayName":"Jane Roe","mail":"jane@acme.com","givenName":"Jane","surname":"Roe","jobTitle":"Lead","businessPhones":["+1 555"],"mobilePhone":"+1 777"},
			{"displayName":"Room 4","mail":null,"userPrincipalName":"room4@acme.com"},
			{"displayName":"Ghost","mail":null,"userPrincipalName":"ghost_ext#EXT"}
		]}`))
	}))
	defer server.Close()

	dir := NewDirectory(staticToken("tok"), WithBaseURL(server.URL+"/"))
	res, err := dir.Resolve(context.Background(), "*@acme.com", true)
	require.NoError(t, err)

	assert.Equal(t, "/users", captured.URL.Path)
	assert.Equal(t, "Bearer tok", captured.Header.Get("Authorization"))
	assert.Equal(t, "eventual", captured.Header.Get("ConsistencyLevel"))
	assert.Equal(t, "endswith(mail,'@acme.com')", captured.URL.Query().Get("$filter"))
	assert.Equal(t, "true", captured.URL.Query().Get("$count"))
	assert.Equal(t, directoryFullSelect, captured.URL.Query().Get("$select"))

	require.Len(t, res, 3)
	assert.Equal(t, person.Mailbox{Name: "Jane Roe", EmailAddress: "jane@acme.com", RoutingType: "SMTP"}, res[0].Mailbox)
	require.NotNil(t, res[0].Contact)
	assert.Equal(t, "Lead", res[0].Contact.JobTitle)
	assert.Equal(t, "+1 555", res[0].Contact.BusinessPhone)
	assert.Equal(t, "room4@acme.com", res[1].Mailbox.EmailAddress)
	assert.Empty(t, res[2].Mailbox.EmailAddress, "malformed entries are left for the caller to skip")

	p, err := person.FromDirectory(res[0], true)
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", p.ID)
}

func TestDirectory_ResolveLean(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		_, _ = w.Write([]byte(`{"value":[{"displayName":"Ann","mail":"ann@acme.com"}]}`))
	}))
	defer server.Close()

	res, err := NewDirectory(staticToken("tok"), WithBaseURL(server.URL)).Resolve(context.Background(), "Ann*", false)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Nil(t, res[0].Contact)
	assert.Equal(t, directorySelect, captured.URL.Query().Get("$select"))
	assert.Empty(t, captured.Header.Get("ConsistencyLevel"))
	assert.Equal(t, "100", captured.URL.Query().Get("$top"))
}

func TestDirectory_ResolveError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"Authorization_RequestDenied","message":"Insufficient privileges"}}`))
	}))
	defer server.Close()

	_, err := NewDirectory(staticToken("tok"), WithBaseURL(server.URL)).Resolve(context.Background(), "ann", false)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "Authorization_RequestDenied", apiErr.Code)
	assert.Equal(t, "Insufficient privileges", apiErr.Message)

	res, err := NewDirectory(staticToken("tok"), WithBaseURL(server.URL)).Resolve(context.Background(), "*", false)
	assert.NoError(t, err)
	assert.Nil(t, res)
}
