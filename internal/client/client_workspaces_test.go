package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListWorkspacesFollowsPagination(t *testing.T) {
	var pages []string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/organizations/acme/workspaces" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		page := r.URL.Query().Get("page[number]")
		pages = append(pages, page)
		if r.URL.Query().Get("search[name]") != "net" {
			t.Errorf("expected search filter, got %q", r.URL.RawQuery)
		}
		switch page {
		case "1":
			_, _ = w.Write([]byte(`{"data": [{"id": "ws-1", "type": "workspaces", "attributes": {"name": "network"}}],
				"meta": {"pagination": {"current-page": 1, "next-page": 2, "total-pages": 2}}}`))
		default:
			_, _ = w.Write([]byte(`{"data": [{"id": "ws-2", "type": "workspaces", "attributes": {"name": "network-dr", "locked": true},
				"relationships": {"organization": {"data": {"id": "acme", "type": "organizations"}}}}],
				"meta": {"pagination": {"current-page": 2, "next-page": null, "total-pages": 2}}}`))
		}
	})

	workspaces, err := NewWithBaseURL(server.URL, "token").ListWorkspaces(context.Background(), "acme", " net ")
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if strings.Join(pages, ",") != "1,2" {
		t.Fatalf("unexpected pages requested: %v", pages)
	}
	if len(workspaces) != 2 {
		t.Fatalf("expected two workspaces, got %d", len(workspaces))
	}
	last := workspaces[1]
	if last.Name != "network-dr" || !last.Locked || last.OrganizationName != "acme" || last.CurrentRunID != "" {
		t.Fatalf("unexpected workspace: %+v", last)
	}
}

func TestGetWorkspaceFillsLatestRun(t *testing.T) {
	log := &requestLog{}
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		switch r.URL.Path {
		case "/api/v2/workspaces/ws-1":
			_, _ = w.Write([]byte(`{"data": {"id": "ws-1", "type": "workspaces",
				"attributes": {"name": "network", "description": "Core network", "terraform-version": "1.7.5",
					"permissions": {"can-queue-run": true, "can-lock": true}},
				"relationships": {
					"organization": {"data": {"id": "acme", "type": "organizations"}},
					"current-run": {"data": {"id": "run-2", "type": "runs"}}
				}}}`))
		case "/api/v2/workspaces/ws-1/runs":
			if r.URL.Query().Get("page[size]") != "1" {
				t.Errorf("expected a single run page, got %q", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"data": [{"id": "run-3", "type": "runs", "attributes": {"status": "pending"}}],
				"meta": {"pagination": {"current-page": 1, "total-pages": 4}}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ws, err := NewWithBaseURL(server.URL, "token").GetWorkspace(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if ws.Name != "network" || ws.Description != "Core network" || ws.OrganizationName != "acme" {
		t.Fatalf("unexpected workspace: %+v", ws)
	}
	if ws.CurrentRunID != "run-2" || ws.LatestRunID != "run-3" {
		t.Fatalf("unexpected runs current=%q latest=%q", ws.CurrentRunID, ws.LatestRunID)
	}
	if !ws.Permissions.CanQueueRun || !ws.Permissions.CanLock || ws.Permissions.CanUnlock {
		t.Fatalf("unexpected permissions: %+v", ws.Permissions)
	}
	if got := log.String(); got != "GET /api/v2/workspaces/ws-1,GET /api/v2/workspaces/ws-1/runs" {
		t.Fatalf("unexpected requests: %s", got)
	}
}

func TestWorkspaceLockSendsReason(t *testing.T) {
	var seenPath, seenBody string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		seenBody = buf.String()
		_, _ = w.Write([]byte(`{"data": {"id": "ws-1", "type": "workspaces", "attributes": {"name": "app", "locked": true}}}`))
	})

	ws, err := NewWithBaseURL(server.URL, "token").LockWorkspace(context.Background(), "ws-1", "maintenance")
	if err != nil {
		t.Fatalf("LockWorkspace: %v", err)
	}
	if seenPath != "/api/v2/workspaces/ws-1/actions/lock" || !strings.Contains(seenBody, `"reason":"maintenance"`) {
		t.Fatalf("unexpected request path=%q body=%q", seenPath, seenBody)
	}
	if ws == nil || !ws.Locked {
		t.Fatalf("expected locked workspace, got %+v", ws)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		body      string
		notFound  bool
		unauth    bool
		transient bool
	}{
		{http.StatusNotFound, `{"errors":[{"status":"404","title":"not found"}]}`, true, false, false},
		{http.StatusUnauthorized, `{"errors":[{"status":"401","title":"unauthorized"}]}`, false, true, false},
		{http.StatusServiceUnavailable, `{"errors":[{"status":"503","title":"unavailable"}]}`, false, false, true},
		{http.StatusConflict, `{"errors":[{"status":"409","title":"conflict","detail":"already overridden"}]}`, false, false, false},
	}
	for _, tc := range cases {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		_, err := NewWithBaseURL(server.URL, "token").GetWorkspace(context.Background(), "ws-1")
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if StatusCode(err) != tc.status {
			t.Fatalf("status %d: unexpected status code in %v", tc.status, err)
		}
		if IsNotFound(err) != tc.notFound || IsUnauthorized(err) != tc.unauth || IsTransient(err) != tc.transient {
			t.Fatalf("status %d: unexpected classification for %v", tc.status, err)
		}
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewWithBaseURL(url, "token").GetRun(context.Background(), "run-1")
	if err == nil || !IsTransient(err) {
		t.Fatalf("expected transient network error, got %v", err)
	}
}

func TestMissingTokenFailsBeforeRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "")
	if _, err := c.CurrentUser(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if called {
		t.Fatalf("expected no request without a token")
	}
}

func TestSaveTokenWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	c := NewWithBaseURL("http://127.0.0.1:0", "")
	c.tokenPath = path
	if err := c.SaveToken("  secret \n"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if strings.TrimSpace(string(data)) != "secret" {
		t.Fatalf("unexpected token file contents %q", string(data))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected token permissions %v", info.Mode().Perm())
	}
	if !c.HasToken() {
		t.Fatalf("expected client to hold the token")
	}
}
