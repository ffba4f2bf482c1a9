package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/viant/exchange-mcp/outlook/graph"
	"github.com/viant/exchange-mcp/outlook/person"
)

//go:embed tools/outlookFindPerson.md
var outlookFindPersonDesc string

//go:embed tools/outlookGetPerson.md
var outlookGetPersonDesc string

//go:embed tools/outlookCommunicationHistory.md
var outlookCommunicationHistoryDesc string

//go:embed tools/outlookResolveNames.md
var outlookResolveNamesDesc string

// loginWait bounds how long a tool call waits for a device login started on its behalf.
var loginWait = 2 * time.Minute

func registerTools(base *protoserver.DefaultHandler, h *Handler) error {
	svc := h.service

	if err := protoserver.RegisterTool[*FindPersonInput, *FindPersonOutput](base.Registry, "outlookFindPerson", outlookFindPersonDesc, func(ctx context.Context, in *FindPersonInput) (*schema.CallToolResult, *jsonrpc.Error) {
		people, rpcErr := h.people(ctx, &in.Account)
		if rpcErr != nil {
			return nil, rpcErr
		}
		found, err := people.FindPerson(ctx, in.options())
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(svc, &FindPersonOutput{Query: in.Query, TotalResults: len(found), People: newPersonViews(found)})
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*GetPersonInput, *GetPersonOutput](base.Registry, "outlookGetPerson", outlookGetPersonDesc, func(ctx context.Context, in *GetPersonInput) (*schema.CallToolResult, *jsonrpc.Error) {
		people, rpcErr := h.people(ctx, &in.Account)
		if rpcErr != nil {
			return nil, rpcErr
		}
		includeHistory := in.IncludeHistory == nil || *in.IncludeHistory
		p, err := people.GetPerson(ctx, in.Email, includeHistory, in.DaysBack)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		out := &GetPersonOutput{Email: in.Email}
		if p != nil {
			view := newPersonView(p)
			out.Found, out.Person = true, &view
		}
		return buildSuccessResult(svc, out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*CommunicationHistoryInput, *CommunicationHistoryOutput](base.Registry, "outlookCommunicationHistory", outlookCommunicationHistoryDesc, func(ctx context.Context, in *CommunicationHistoryInput) (*schema.CallToolResult, *jsonrpc.Error) {
		people, rpcErr := h.people(ctx, &in.Account)
		if rpcErr != nil {
			return nil, rpcErr
		}
		stats, err := people.CommunicationHistory(ctx, in.Email, in.DaysBack, in.MaxEmails)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(svc, &CommunicationHistoryOutput{Email: in.Email, DaysBack: daysOrDefault(in.DaysBack), Stats: stats})
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*ResolveNamesInput, *ResolveNamesOutput](base.Registry, "outlookResolveNames", outlookResolveNamesDesc, func(ctx context.Context, in *ResolveNamesInput) (*schema.CallToolResult, *jsonrpc.Error) {
		people, rpcErr := h.people(ctx, &in.Account)
		if rpcErr != nil {
			return nil, rpcErr
		}
		resolved, err := people.ResolveNames(ctx, in.NameQuery, in.ReturnFullInfo)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		out := &ResolveNamesOutput{Query: in.NameQuery, Results: make([]ResolvedName, 0, len(resolved))}
		for _, r := range resolved {
			out.Results = append(out.Results, newResolvedName(r))
		}
		out.Count = len(out.Results)
		return buildSuccessResult(svc, out)
	}); err != nil {
		return err
	}
	return nil
}

// people validates the account, completes sign-in when needed and returns a resolution service for it.
func (h *Handler) people(ctx context.Context, account *graph.Account) (*person.Service, *jsonrpc.Error) {
	if account.Alias == "" {
		_, rpcErr := buildErrorResult("account.alias is required")
		return nil, rpcErr
	}
	if account.TenantID == "" {
		account.TenantID = h.service.TenantID()
	}
	if err := h.ensureSignedIn(ctx, *account); err != nil {
		_, rpcErr := buildErrorResult(err.Error())
		return nil, rpcErr
	}
	return h.service.People(*account), nil
}

// ensureSignedIn starts a device login when account has no usable token. With elicitation support
// the client is sent to the login page and the call waits for completion; otherwise the page URL is
// returned in the error.
func (h *Handler) ensureSignedIn(ctx context.Context, account graph.Account) error {
	svc := h.service
	mgr := svc.GraphManager()
	scopes := graph.DefaultScopes()
	if !mgr.NeedsInteractive(ctx, account.Alias, account.TenantID, scopes) {
		return nil
	}
	ns, _ := svc.Auth().Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	pend, ok := svc.Pending().Find(ns, account.Alias)
	if !ok {
		pend = &PendingAuth{UUID: newUUID(), Alias: account.Alias, TenantID: account.TenantID, Namespace: ns}
		svc.Pending().Put(pend)
		id := pend.UUID
		if !mgr.StartDeviceLogin(ctx, account.Alias, account.TenantID, scopes, func(error) { svc.Pending().Complete(id) }) {
			svc.Pending().Complete(id)
			return fmt.Errorf("sign-in for account %q is already in progress, complete it and retry", account.Alias)
		}
	}
	URL := svc.DeviceURL(pend.UUID)
	if h.ops == nil || !h.ops.Implements(schema.MethodElicitationCreate) {
		return fmt.Errorf("sign-in required for account %q: open %s and retry", account.Alias, URL)
	}
	go func() {
		ctx2, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, _ = h.ops.Elicit(ctx2, &jsonrpc.TypedRequest[*schema.ElicitRequest]{Request: &schema.ElicitRequest{
			Params: schema.ElicitRequestParams{ElicitationId: newUUID(), Message: "Sign in to Outlook", Mode: string(schema.ElicitRequestParamsModeUrl), Url: URL},
		}})
	}()
	select {
	case <-pend.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(loginWait):
		return fmt.Errorf("sign-in required for account %q: open %s and retry", account.Alias, URL)
	}
	if mgr.NeedsInteractive(ctx, account.Alias, account.TenantID, scopes) {
		return fmt.Errorf("sign-in for account %q did not complete", account.Alias)
	}
	return nil
}

func buildErrorResult(message string) (*schema.CallToolResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewError(jsonrpc.InvalidParams, strings.TrimSpace(message), nil)
}

func buildSuccessResult(service *Service, payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	if service.UseTextField() {
		b, _ := json.Marshal(payload)
		return &schema.CallToolResult{Content: []schema.CallToolResultContentElem{{Type: "text", Text: string(b)}}}, nil
	}
	return &schema.CallToolResult{StructuredContent: map[string]any{"result": payload}}, nil
}

func newUUID() string { return uuid.New().String() }
