package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	campaignledger "truevote/contexts/election-ledger/campaign-ledger"
	"truevote/contexts/election-ledger/campaign-ledger/adapters/memory"
	ledgerhttp "truevote/contexts/election-ledger/campaign-ledger/transport/http"
	"truevote/internal/platform/messaging"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	module := campaignledger.NewInMemoryModule(nil, testLogger())
	module.Store.SetNow(testNow)
	return New(module, testLogger(), ":0"), module.Store
}

func newStreamingTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	bus, err := messaging.NewBus(nil, 16, testLogger())
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	store := memory.NewStore()
	store.SetNow(testNow)
	module := campaignledger.NewModule(campaignledger.Dependencies{
		Journal:              store,
		Publisher:            bus,
		Subscriber:           bus,
		Stream:               bus,
		Dedup:                store,
		Clock:                store,
		IDGen:                store,
		Logger:               testLogger(),
		EnableTallyProjector: true,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := module.Start(ctx); err != nil {
		t.Fatalf("start module: %v", err)
	}
	return New(module, testLogger(), ":0"), store
}

func doRequest(t *testing.T, server *Server, method string, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func createTestCampaign(t *testing.T, server *Server, owner string, start time.Time, extra string) ledgerhttp.CampaignResponse {
	t.Helper()
	body := `{"name":"Student council","candidate_names":["Alice","Bob","Charlie"],"duration_minutes":10,"start_time":"` +
		start.Format(time.RFC3339) + `","is_public":true` + extra + `}`
	rr := doRequest(t, server, http.MethodPost, "/v1/campaigns", body, map[string]string{"X-User-Id": owner})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 create, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp ledgerhttp.CampaignResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode campaign: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ledgerhttp.ErrorResponse {
	t.Helper()
	var resp ledgerhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestCreateCampaignRequiresUser(t *testing.T) {
	server, _ := newTestServer(t)
	rr := doRequest(t, server, http.MethodPost, "/v1/campaigns", `{"candidate_names":["A","B"]}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateCampaignRejectsInvalidInput(t *testing.T) {
	server, _ := newTestServer(t)
	body := `{"candidate_names":["Only"],"duration_minutes":10,"start_time":"` + testNow.Add(time.Minute).Format(time.RFC3339) + `"}`
	rr := doRequest(t, server, http.MethodPost, "/v1/campaigns", body, map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := decodeError(t, rr).Code; code != "invalid_input" {
		t.Fatalf("expected invalid_input, got %s", code)
	}

	rr = doRequest(t, server, http.MethodPost, "/v1/campaigns", `{not json`, map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rr.Code)
	}
}

func TestVotingLifecycleOverHTTP(t *testing.T) {
	server, store := newTestServer(t)
	campaign := createTestCampaign(t, server, "owner-1", testNow.Add(time.Minute), "")
	if campaign.CampaignID != 0 || campaign.Status != "scheduled" || len(campaign.Candidates) != 3 {
		t.Fatalf("unexpected campaign %+v", campaign)
	}

	voteHeaders := map[string]string{"X-Voter-Id": "voter-1"}
	rr := doRequest(t, server, http.MethodPost, "/v1/campaigns/0/votes", `{"candidate_index":1}`, voteHeaders)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 before start, got %d body=%s", rr.Code, rr.Body.String())
	}
	if msg := decodeError(t, rr).Message; msg != "voting has not started yet" {
		t.Fatalf("unexpected upcoming message %q", msg)
	}

	store.SetNow(testNow.Add(2 * time.Minute))
	rr = doRequest(t, server, http.MethodPost, "/v1/campaigns/0/votes", `{"candidate_index":1}`, voteHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 vote, got %d body=%s", rr.Code, rr.Body.String())
	}
	var vote ledgerhttp.VoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &vote); err != nil {
		t.Fatalf("decode vote: %v", err)
	}
	if vote.NewVoteCount != 1 || vote.TotalVotes != 1 {
		t.Fatalf("unexpected vote response %+v", vote)
	}

	rr = doRequest(t, server, http.MethodPost, "/v1/campaigns/0/votes", `{"candidate_index":0}`, voteHeaders)
	if rr.Code != http.StatusConflict || decodeError(t, rr).Code != "already_voted" {
		t.Fatalf("expected already_voted, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/campaigns/0/votes", `{"candidate_index":7}`, map[string]string{"X-Voter-Id": "voter-2"})
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != "invalid_candidate" {
		t.Fatalf("expected invalid_candidate, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodGet, "/v1/campaigns/0/candidates/1", "", nil)
	var candidate ledgerhttp.CandidateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &candidate); err != nil {
		t.Fatalf("decode candidate: %v", err)
	}
	if candidate.Name != "Bob" || candidate.VoteCount != 1 {
		t.Fatalf("unexpected candidate %+v", candidate)
	}

	rr = doRequest(t, server, http.MethodGet, "/v1/campaigns/0/voters/voter-1", "", nil)
	var standing ledgerhttp.VoterStandingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &standing); err != nil {
		t.Fatalf("decode standing: %v", err)
	}
	if !standing.IsEligible || !standing.HasVoted || standing.IsOwner {
		t.Fatalf("unexpected standing %+v", standing)
	}

	rr = doRequest(t, server, http.MethodGet, "/v1/campaigns/0/results", "", nil)
	var results ledgerhttp.ResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.TotalVotes != 1 || results.Source != "ledger" || results.Candidates[1].VoteCount != 1 {
		t.Fatalf("unexpected results %+v", results)
	}

	store.SetNow(testNow.Add(20 * time.Minute))
	rr = doRequest(t, server, http.MethodPost, "/v1/campaigns/0/votes", `{"candidate_index":0}`, map[string]string{"X-Voter-Id": "voter-3"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 after end, got %d body=%s", rr.Code, rr.Body.String())
	}
	if msg := decodeError(t, rr).Message; msg != "voting has ended" {
		t.Fatalf("unexpected completed message %q", msg)
	}

	rr = doRequest(t, server, http.MethodGet, "/v1/campaigns/0/status", "", nil)
	var status ledgerhttp.StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "closed" || status.RemainingSeconds != 0 || status.TotalVotes != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestAddCandidateOwnerOnlyOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	createTestCampaign(t, server, "owner-1", testNow.Add(time.Minute), "")

	rr := doRequest(t, server, http.MethodPost, "/v1/campaigns/0/candidates", `{"name":"Dana"}`, map[string]string{"X-User-Id": "someone-else"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, server, http.MethodPost, "/v1/campaigns/0/candidates", `{"name":"Dana"}`, map[string]string{"X-User-Id": "owner-1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var candidate ledgerhttp.CandidateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &candidate); err != nil {
		t.Fatalf("decode candidate: %v", err)
	}
	if candidate.Index != 3 || candidate.Name != "Dana" {
		t.Fatalf("unexpected candidate %+v", candidate)
	}
}

func TestLookupErrors(t *testing.T) {
	server, _ := newTestServer(t)
	createTestCampaign(t, server, "owner-1", testNow.Add(time.Minute), "")

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{path: "/v1/campaigns/5", status: http.StatusNotFound, code: "campaign_not_found"},
		{path: "/v1/campaigns/abc", status: http.StatusBadRequest, code: "invalid_campaign_id"},
		{path: "/v1/campaigns/-1", status: http.StatusBadRequest, code: "invalid_campaign_id"},
		{path: "/v1/campaigns/0/candidates/3", status: http.StatusNotFound, code: "candidate_not_found"},
		{path: "/v1/campaigns/0/candidates/x", status: http.StatusBadRequest, code: "invalid_candidate_index"},
		{path: "/v1/campaigns/0/events", status: http.StatusServiceUnavailable, code: "stream_unavailable"},
	}
	for _, tc := range cases {
		rr := doRequest(t, server, http.MethodGet, tc.path, "", nil)
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d body=%s", tc.path, tc.status, rr.Code, rr.Body.String())
		}
		if code := decodeError(t, rr).Code; code != tc.code {
			t.Fatalf("%s: expected %s, got %s", tc.path, tc.code, code)
		}
	}
}

func TestCampaignListings(t *testing.T) {
	server, _ := newTestServer(t)
	createTestCampaign(t, server, "owner-1", testNow.Add(time.Minute), "")
	createTestCampaign(t, server, "owner-2", testNow.Add(time.Minute), `,"is_public":false,"allow_list":["carol"]`)
	createTestCampaign(t, server, "owner-1", testNow.Add(time.Minute), `,"is_public":false,"allow_list":["dave"]`)

	rr := doRequest(t, server, http.MethodGet, "/v1/campaigns/count", "", nil)
	var count ledgerhttp.CampaignCountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.Count != 3 {
		t.Fatalf("expected 3 campaigns, got %d", count.Count)
	}

	var list ledgerhttp.CampaignListResponse
	rr = doRequest(t, server, http.MethodGet, "/v1/voters/carol/campaigns", "", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode eligible: %v", err)
	}
	if len(list.CampaignIDs) != 2 || list.CampaignIDs[0] != 0 || list.CampaignIDs[1] != 1 {
		t.Fatalf("unexpected eligible campaigns %v", list.CampaignIDs)
	}

	rr = doRequest(t, server, http.MethodGet, "/v1/owners/owner-1/campaigns", "", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode owned: %v", err)
	}
	if len(list.CampaignIDs) != 2 || list.CampaignIDs[0] != 0 || list.CampaignIDs[1] != 2 {
		t.Fatalf("unexpected owned campaigns %v", list.CampaignIDs)
	}
}

func TestWatchVotesStreamsServerSentEvents(t *testing.T) {
	server, _ := newStreamingTestServer(t)
	createTestCampaign(t, server, "owner-1", testNow, "")

	ts := httptest.NewServer(server.mux)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/campaigns/0/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	rr := doRequest(t, server, http.MethodPost, "/v1/campaigns/0/votes", `{"candidate_index":2}`, map[string]string{"X-Voter-Id": "voter-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 vote, got %d body=%s", rr.Code, rr.Body.String())
	}

	reader := bufio.NewReader(resp.Body)
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	var event ledgerhttp.VoteCastEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		t.Fatalf("decode event %q: %v", data, err)
	}
	if event.CampaignID != 0 || event.CandidateIndex != 2 || event.NewVoteCount != 1 || event.TotalVotes != 1 {
		t.Fatalf("unexpected event %+v", event)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rr = doRequest(t, server, http.MethodGet, "/v1/campaigns/0/results", "", nil)
		var results ledgerhttp.ResultsResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
			t.Fatalf("decode results: %v", err)
		}
		if results.Source == "projection" && results.TotalVotes == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("projection never caught up: %+v", results)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
