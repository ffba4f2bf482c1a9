package graph

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"

	"github.com/viant/exchange-mcp/outlook/person"
)

const directoryTop = 100

var (
	directorySelect     = "displayName,mail,userPrincipalName"
	directoryFullSelect = directorySelect + ",givenName,surname,companyName,department,jobTitle,officeLocation,businessPhones,mobilePhone"
	// nameFields are matched by prefix, approximating ambiguous name resolution.
	nameFields = []string{"displayName", "givenName", "surname", "mail", "mailNickname"}
)

// Directory resolves names against the organization directory (/users).
type Directory struct {
	rest restClient
}

// NewDirectory creates a Directory authenticating with tokens.
func NewDirectory(tokens TokenSource, opts ...RESTOption) *Directory {
	return &Directory{rest: newRESTClient(tokens, opts)}
}

// Resolve returns directory users matching query. A trailing "*" requests prefix matching,
// "*@domain" lists users whose mail ends with @domain and a bare address matches exactly.
func (d *Directory) Resolve(ctx context.Context, query string, fullData bool) ([]person.Resolution, error) {
	filter, advanced := resolveFilter(query)
	if filter == "" {
		return nil, nil
	}
	q := neturl.Values{}
	q.Set("$filter", filter)
	q.Set("$top", strconv.Itoa(directoryTop))
	if fullData {
		q.Set("$select", directoryFullSelect)
	} else {
		q.Set("$select", directorySelect)
	}
	var header http.Header
	if advanced {
		q.Set("$count", "true")
		header = http.Header{}
		header.Set("ConsistencyLevel", "eventual")
	}
	var payload struct {
		Value []directoryUser `json:"value"`
	}
	if err := d.rest.get(ctx, d.rest.url("/users", q), header, &payload); err != nil {
		return nil, fmt.Errorf("resolve %q: %w", query, err)
	}
	out := make([]person.Resolution, 0, len(payload.Value))
	for i := range payload.Value {
		out = append(out, payload.Value[i].resolution(fullData))
	}
	return out, nil
}

// resolveFilter translates a resolve string into an OData filter; advanced reports
// whether the filter needs eventual consistency.
func resolveFilter(query string) (filter string, advanced bool) {
	q := strings.TrimSpace(query)
	if strings.HasPrefix(q, "*@") {
		domain := strings.TrimSpace(q[2:])
		if domain == "" {
			return "", false
		}
		return fmt.Sprintf("endswith(mail,'@%s')", odataQuote(domain)), true
	}
	wildcard := strings.HasSuffix(q, "*")
	q = strings.TrimSpace(strings.TrimRight(q, "*"))
	if q == "" {
		return "", false
	}
	v := odataQuote(q)
	if strings.Contains(q, "@") && !wildcard {
		return fmt.Sprintf("mail eq '%s' or userPrincipalName eq '%s'", v, v), false
	}
	clauses := make([]string, len(nameFields))
	for i, field := range nameFields {
		clauses[i] = fmt.Sprintf("startswith(%s,'%s')", field, v)
	}
	return strings.Join(clauses, " or "), false
}

func odataQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
