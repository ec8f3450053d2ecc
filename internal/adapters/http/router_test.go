package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	router "github.com/avolkov/peergate/internal/adapters/http"
	"github.com/avolkov/peergate/internal/app"
	"github.com/avolkov/peergate/internal/config"
	"github.com/avolkov/peergate/internal/core"
	"github.com/avolkov/peergate/internal/domain"
)

type stubConn struct {
	closed bool
}

func (c *stubConn) TrySend(core.Frame) error { return nil }
func (c *stubConn) Close()                   { c.closed = true }

func newAPIServer(t *testing.T) (*httptest.Server, *app.Coordinator) {
	t.Helper()
	cfg := &config.Config{
		Mode:              "release",
		Secret:            "test",
		ReadLimit:         32768,
		PingPeriod:        50 * time.Second,
		IdleTimeout:       60 * time.Second,
		SendBuffer:        32,
		MaxSessionIDBytes: 128,
		Backpressure:      "drop",
	}
	coord := app.NewCoordinator(
		app.NewRegistry(),
		app.NewTable(),
		app.Policies(0),
		app.BackpressurePolicyByName(cfg.Backpressure),
	)
	ts := httptest.NewServer(router.SetupRouter(context.Background(), cfg, coord))
	t.Cleanup(ts.Close)
	return ts, coord
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, _ := newAPIServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSessionListAndDetail(t *testing.T) {
	ts, coord := newAPIServer(t)

	a := coord.Connect(&stubConn{})
	b := coord.Connect(&stubConn{})
	if _, err := coord.Join(a, domain.OneToMany, "studio"); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if _, err := coord.Join(b, domain.OneToMany, "studio"); err != nil {
		t.Fatalf("join b: %v", err)
	}

	var list struct {
		Sessions []core.SessionInfo `json:"sessions"`
	}
	if code := getJSON(t, ts.URL+"/api/sessions", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].PeerCount != 2 {
		t.Fatalf("list = %+v, want one session of two peers", list.Sessions)
	}

	var detail core.SessionDetail
	if code := getJSON(t, ts.URL+"/api/sessions/one-to-many/studio", &detail); code != http.StatusOK {
		t.Fatalf("detail status = %d", code)
	}
	if detail.Host == nil || *detail.Host != a {
		t.Fatalf("detail host = %v, want %d", detail.Host, a)
	}
	if len(detail.Peers) != 2 {
		t.Fatalf("detail peers = %v, want both", detail.Peers)
	}

	if code := getJSON(t, ts.URL+"/api/sessions/one-to-one/studio", nil); code != http.StatusNotFound {
		t.Fatalf("wrong-topology lookup status = %d, want 404", code)
	}
	if code := getJSON(t, ts.URL+"/api/sessions/ring/studio", nil); code != http.StatusBadRequest {
		t.Fatalf("bad-topology status = %d, want 400", code)
	}
}

func TestSessionDelete(t *testing.T) {
	ts, coord := newAPIServer(t)

	member := &stubConn{}
	peer := coord.Connect(member)
	if _, err := coord.Join(peer, domain.ManyToMany, "mesh"); err != nil {
		t.Fatalf("join: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/many-to-many/mesh", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if !member.closed {
		t.Fatal("member connection not closed on teardown")
	}
	if coord.Sessions.SessionCount() != 0 {
		t.Fatal("session survived delete")
	}

	resp2, err := http.DefaultClient.Do(req.Clone(context.Background()))
	if err != nil {
		t.Fatalf("second DELETE: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp2.StatusCode)
	}
}
