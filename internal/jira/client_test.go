package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logx "jirabell/pkg/logx"
)

func TestSearchRequestShape(t *testing.T) {
	var gotPath, gotMethod, gotAccept string
	var gotUser, gotPass string
	var gotBody searchRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotAccept = r.Header.Get("Accept")
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(searchResponse{Issues: []Issue{
			{Key: "PROJ-1", Fields: IssueFields{Summary: "First"}},
			{Key: "PROJ-2", Fields: IssueFields{Summary: "Second"}},
		}})
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:  srv.URL + "/", // trailing slash must be tolerated
		Email:    "bot@example.com",
		APIToken: "secret",
		JQL:      "project = PROJ AND status = Open",
	}, logx.Nop())

	issues, err := c.Search(context.Background())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/rest/api/3/search/jql" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept = %q", gotAccept)
	}
	if gotUser != "bot@example.com" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotBody.JQL != "project = PROJ AND status = Open" {
		t.Errorf("request jql = %q", gotBody.JQL)
	}
	if gotBody.MaxResults != defaultMaxResults {
		t.Errorf("request maxResults = %d, want default %d", gotBody.MaxResults, defaultMaxResults)
	}
	if len(gotBody.Fields) != 1 || gotBody.Fields[0] != "summary" {
		t.Errorf("request fields = %v", gotBody.Fields)
	}

	if len(issues) != 2 || issues[0].Key != "PROJ-1" || issues[1].Key != "PROJ-2" {
		t.Fatalf("issues = %+v", issues)
	}
	if issues[0].Summary() != "First" {
		t.Errorf("summary = %q", issues[0].Summary())
	}
}

func TestSearchErrorStatusIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorMessages":["Basic auth failed"]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Email: "e", APIToken: "k", JQL: "q"}, logx.Nop())
	_, err := c.Search(context.Background())
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "Basic auth failed") {
		t.Fatalf("error = %v, want status and body snippet", err)
	}
}

func TestSearchRespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Email: "e", APIToken: "k", JQL: "q", Timeout: 50 * time.Millisecond}, logx.Nop())
	start := time.Now()
	_, err := c.Search(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout took too long: %v", time.Since(start))
	}
}

func TestSearchMissingConfig(t *testing.T) {
	c := New(Config{}, logx.Nop())
	if _, err := c.Search(context.Background()); err == nil {
		t.Fatal("expected error with empty base_url")
	}
	c.Apply(Config{BaseURL: "https://x.atlassian.net"})
	if _, err := c.Search(context.Background()); err == nil {
		t.Fatal("expected error with empty jql")
	}
}

func TestSummaryFallback(t *testing.T) {
	i := Issue{Key: "PROJ-3", Fields: IssueFields{Summary: "  "}}
	if got := i.Summary(); got != "No summary" {
		t.Fatalf("Summary = %q, want fallback", got)
	}
}

func TestBrowseURL(t *testing.T) {
	c := New(Config{BaseURL: "https://x.atlassian.net/"}, logx.Nop())
	if got := c.BrowseURL("PROJ-7"); got != "https://x.atlassian.net/browse/PROJ-7" {
		t.Fatalf("BrowseURL = %q", got)
	}
}
