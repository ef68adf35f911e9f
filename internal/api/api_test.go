package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/health"
	"github.com/heritage-dao/heritage/internal/infra/audit"
	"github.com/heritage-dao/heritage/internal/infra/directory"
	"github.com/heritage-dao/heritage/internal/infra/governance"
	"github.com/heritage-dao/heritage/internal/infra/memstore"
	"github.com/heritage-dao/heritage/internal/infra/sqlite"
)

func fixedTime() time.Time {
	return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T) (*Server, *governance.Engine) {
	t.Helper()
	dir := directory.New(nil)
	dir.PutArtifact(domain.Artifact{ID: 1, Title: "Roman amphora"})
	for _, u := range []struct {
		p    domain.Principal
		role domain.UserRole
	}{
		{"alice", domain.RoleCurator},
		{"bob", domain.RoleCommunity},
		{"carol", domain.RoleCommunity},
	} {
		dir.PutUser(domain.User{
			Principal:         u.p,
			Role:              u.role,
			VerificationLevel: domain.UserPeerVerified,
			Permissions:       domain.UserPermissions{CanVote: true, CanCreateProposals: true, VotingWeight: 1},
		})
	}

	store := memstore.New()
	gov := governance.NewEngine(governance.DefaultConfig(), governance.Deps{
		Store:     store,
		Users:     dir,
		Artifacts: dir,
	})
	gov.SetClock(fixedTime)

	srv := NewServer(gov, nil)
	checker := health.NewChecker(store, "", nil)
	checker.RunOnce(context.Background())
	srv.SetHealthChecker(checker)
	return srv, gov
}

func do(t *testing.T, srv *Server, method, path, who, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if who != "" {
		req.Header.Set(PrincipalHeader, who)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

const createBody = `{
	"proposal_type": "VerifyArtifact",
	"artifact_id": 1,
	"title": "Verify the Roman amphora",
	"description": "Provenance documents, thermoluminescence dating and lab results are attached.",
	"evidence": ["ipfs://provenance"],
	"voting_duration_hours": 48
}`

func createProposal(t *testing.T, srv *Server) uint64 {
	t.Helper()
	w := do(t, srv, "POST", "/api/proposals", "alice", createBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}
	var body map[string]uint64
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body["id"]
}

// ─── Health ─────────────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Status string          `json:"status"`
		Checks []health.Status `json:"checks"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Status != "ok" || len(body.Checks) != 1 || body.Checks[0].Name != "store" {
		t.Errorf("body = %+v", body)
	}
}

func TestAPI_Version(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetVersion("1.2.3")
	w := do(t, srv, "GET", "/api/version", "", "")
	if !strings.Contains(w.Body.String(), "1.2.3") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAPI_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "OPTIONS", "/api/proposals", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), PrincipalHeader) {
		t.Errorf("principal header not allowed: %q", w.Header().Get("Access-Control-Allow-Headers"))
	}
}

// ─── Proposals ──────────────────────────────────────────────────────────────

func TestAPI_CreateAndGetProposal(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createProposal(t, srv)

	w := do(t, srv, "GET", fmt.Sprintf("/api/proposals/%d", id), "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var p map[string]any
	json.NewDecoder(w.Body).Decode(&p)
	if p["proposal_type"] != "VerifyArtifact" || p["status"] != "Active" || p["urgency_level"] != "Normal" {
		t.Errorf("proposal = %v", p)
	}
}

func TestAPI_CreateProposal_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		who  string
		body string
		want int
	}{
		{"no principal", "", createBody, http.StatusUnauthorized},
		{"bad json", "alice", "{", http.StatusBadRequest},
		{"unknown type", "alice", `{"proposal_type":"Nope"}`, http.StatusBadRequest},
		{"missing type", "alice", strings.Replace(createBody, `"proposal_type": "VerifyArtifact",`, "", 1), http.StatusBadRequest},
		{"unknown field", "alice", strings.Replace(createBody, `"title"`, `"headline"`, 1), http.StatusBadRequest},
		{"short description", "alice", `{"proposal_type":"VerifyArtifact","title":"t","description":"short","voting_duration_hours":1}`, http.StatusBadRequest},
		{"missing artifact", "alice", strings.Replace(createBody, `"artifact_id": 1`, `"artifact_id": 9`, 1), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/proposals", tt.who, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
			var body map[string]map[string]string
			json.NewDecoder(w.Body).Decode(&body)
			if body["error"]["type"] != "error" || body["error"]["message"] == "" {
				t.Errorf("error body = %v", body)
			}
		})
	}
}

func TestAPI_GetProposal_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "GET", "/api/proposals/42", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
	if w := do(t, srv, "GET", "/api/proposals/abc", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("malformed status = %d, want 400", w.Code)
	}
}

func TestAPI_ListProposals(t *testing.T) {
	srv, _ := newTestServer(t)
	createProposal(t, srv)
	createProposal(t, srv)

	w := do(t, srv, "GET", "/api/proposals", "", "")
	var body struct {
		Proposals []domain.Proposal `json:"proposals"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Proposals) != 2 || body.Proposals[0].ID != 2 {
		t.Errorf("proposals = %+v", body.Proposals)
	}

	w = do(t, srv, "GET", "/api/proposals?status=passed", "", "")
	body.Proposals = nil
	json.NewDecoder(w.Body).Decode(&body)
	if w.Code != http.StatusOK || len(body.Proposals) != 0 {
		t.Errorf("passed filter: status %d, %d proposals", w.Code, len(body.Proposals))
	}

	w = do(t, srv, "GET", "/api/proposals/active", "", "")
	body.Proposals = nil
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Proposals) != 2 {
		t.Errorf("active = %d, want 2", len(body.Proposals))
	}

	if w := do(t, srv, "GET", "/api/proposals?status=Bogus", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d, want 400", w.Code)
	}
}

// ─── Votes ──────────────────────────────────────────────────────────────────

func TestAPI_VoteFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createProposal(t, srv)
	path := fmt.Sprintf("/api/proposals/%d/votes", id)

	w := do(t, srv, "POST", path, "bob", `{"vote_type":"For","rationale":"Strong provenance."}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("cast status = %d, body: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Vote recorded: 1 votes total (1 for, 0 against)") {
		t.Errorf("body = %s", w.Body.String())
	}

	if w := do(t, srv, "POST", path, "bob", `{"vote_type":"Against"}`); w.Code != http.StatusConflict {
		t.Errorf("duplicate vote status = %d, want 409", w.Code)
	}
	if w := do(t, srv, "PUT", path, "carol", `{"vote_type":"Against"}`); w.Code != http.StatusConflict {
		t.Errorf("change without vote status = %d, want 409", w.Code)
	}
	if w := do(t, srv, "PUT", path, "bob", `{"vote_type":"Against"}`); w.Code != http.StatusOK {
		t.Errorf("change status = %d, body: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", path, "bob", "")
	var body struct {
		Votes []domain.Vote `json:"votes"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Votes) != 1 || body.Votes[0].Type != domain.VoteAgainst {
		t.Errorf("votes = %+v", body.Votes)
	}

	if w := do(t, srv, "GET", path, "stranger", ""); w.Code != http.StatusForbidden {
		t.Errorf("stranger vote details = %d, want 403", w.Code)
	}
}

func TestAPI_VoteRequiresVoteType(t *testing.T) {
	srv, gov := newTestServer(t)
	id := createProposal(t, srv)
	path := fmt.Sprintf("/api/proposals/%d/votes", id)

	for _, body := range []string{`{}`, `{"type":"Against"}`, `{"rationale":"Looks authentic to me."}`} {
		if w := do(t, srv, "POST", path, "bob", body); w.Code != http.StatusBadRequest {
			t.Errorf("cast %s status = %d, want 400", body, w.Code)
		}
	}
	p, err := gov.GetProposal(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProposal() error: %v", err)
	}
	if p.Results.TotalVotes != 0 || p.Results.VotesFor != 0 {
		t.Fatalf("rejected ballots changed the tally: %+v", p.Results)
	}

	// The corrected ballot is still accepted.
	w := do(t, srv, "POST", path, "bob", `{"vote_type":"Against"}`)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "(0 for, 1 against)") {
		t.Errorf("cast status = %d, body: %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, "PUT", path, "bob", `{"rationale":"Changed my mind entirely."}`); w.Code != http.StatusBadRequest {
		t.Errorf("change without vote_type status = %d, want 400", w.Code)
	}
}

func TestAPI_VoteAfterDeadline(t *testing.T) {
	srv, gov := newTestServer(t)
	id := createProposal(t, srv)
	gov.SetClock(func() time.Time { return fixedTime().Add(49 * time.Hour) })

	w := do(t, srv, "POST", fmt.Sprintf("/api/proposals/%d/votes", id), "bob", `{"vote_type":"For"}`)
	if w.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", w.Code)
	}
}

// ─── Comments & Execution ───────────────────────────────────────────────────

func TestAPI_AddComment(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createProposal(t, srv)
	path := fmt.Sprintf("/api/proposals/%d/comments", id)

	w := do(t, srv, "POST", path, "bob", `{"content":"Looks right to me."}`)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"id":1`) {
		t.Errorf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, "POST", path, "bob", `{"content":""}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty comment status = %d, want 400", w.Code)
	}
}

func TestAPI_Execute(t *testing.T) {
	srv, gov := newTestServer(t)
	id := createProposal(t, srv)
	path := fmt.Sprintf("/api/proposals/%d/execute", id)

	if w := do(t, srv, "POST", path, "alice", ""); w.Code != http.StatusConflict {
		t.Fatalf("execute active status = %d, want 409", w.Code)
	}

	do(t, srv, "POST", fmt.Sprintf("/api/proposals/%d/votes", id), "bob", `{"vote_type":"For"}`)
	gov.SetClock(func() time.Time { return fixedTime().Add(49 * time.Hour) })
	if _, err := gov.ResolveExpired(context.Background()); err != nil {
		t.Fatalf("ResolveExpired() error: %v", err)
	}

	if w := do(t, srv, "POST", path, "bob", ""); w.Code != http.StatusForbidden {
		t.Errorf("non-proposer status = %d, want 403", w.Code)
	}
	w := do(t, srv, "POST", path, "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("execute status = %d, body: %s", w.Code, w.Body.String())
	}
	var res governance.ExecutionResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.Status != domain.StatusExecuted || !strings.HasPrefix(res.Message, "Proposal executed successfully") {
		t.Errorf("result = %+v", res)
	}

	w = do(t, srv, "GET", "/api/stats", "", "")
	var stats governance.GovernanceStats
	json.NewDecoder(w.Body).Decode(&stats)
	if stats.ExecutedProposals != 1 || stats.TotalVotesCast != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

// ─── Audit ──────────────────────────────────────────────────────────────────

func TestAPI_AuditLog(t *testing.T) {
	db, err := sqlite.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	defer db.Close()

	dir := directory.New(nil)
	dir.PutArtifact(domain.Artifact{ID: 1, Title: "Roman amphora"})
	gov := governance.NewEngine(governance.DefaultConfig(), governance.Deps{
		Store:     db,
		Users:     dir,
		Artifacts: dir,
		Audit:     db,
	})
	gov.SetClock(fixedTime)
	srv := NewServer(gov, nil)

	if w := do(t, srv, "GET", "/api/audit", "", ""); w.Code != http.StatusNotImplemented {
		t.Errorf("audit without log status = %d, want 501", w.Code)
	}
	srv.SetAuditLog(db)

	first := createProposal(t, srv)
	second := createProposal(t, srv)
	do(t, srv, "POST", fmt.Sprintf("/api/proposals/%d/votes", second), "bob", `{"vote_type":"For"}`)

	w := do(t, srv, "GET", "/api/audit", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var body struct {
		Events []audit.Checked `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(body.Events))
	}
	for _, ev := range body.Events {
		if !ev.Verified {
			t.Errorf("event %s failed verification", ev.ID)
		}
	}

	w = do(t, srv, "GET", fmt.Sprintf("/api/audit?target=%d&limit=5", first), "", "")
	body.Events = nil
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Events) != 1 || body.Events[0].TargetID != first || body.Events[0].Type != domain.AuditProposalCreation {
		t.Errorf("target filter = %+v", body.Events)
	}

	w = do(t, srv, "GET", "/api/audit?limit=1", "", "")
	body.Events = nil
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Events) != 1 || body.Events[0].Type != domain.AuditVoteCast {
		t.Errorf("limit 1 = %+v, want newest vote event", body.Events)
	}

	for _, q := range []string{"target=x", "limit=-1"} {
		if w := do(t, srv, "GET", "/api/audit?"+q, "", ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestAPI_Registry(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "GET", "/api/users", "", ""); w.Code != http.StatusNotImplemented {
		t.Errorf("users without registry status = %d, want 501", w.Code)
	}

	dir := directory.New(nil)
	dir.PutArtifact(domain.Artifact{ID: 7, Title: "Ming vase", Status: domain.ArtifactVerified})
	dir.PutUser(domain.User{Principal: "zoe", Role: domain.RoleExpert})
	dir.PutUser(domain.User{Principal: "amir", Role: domain.RoleCurator})
	srv.SetRegistry(dir)

	w := do(t, srv, "GET", "/api/users", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("users status = %d, body: %s", w.Code, w.Body.String())
	}
	var users struct {
		Users []domain.User `json:"users"`
		Count int           `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&users); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if users.Count != 2 || users.Users[0].Principal != "amir" || users.Users[1].Role != domain.RoleExpert {
		t.Errorf("users = %+v", users)
	}

	w = do(t, srv, "GET", "/api/artifacts/7", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("artifact status = %d, body: %s", w.Code, w.Body.String())
	}
	var a domain.Artifact
	if err := json.NewDecoder(w.Body).Decode(&a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Title != "Ming vase" || a.Status != domain.ArtifactVerified {
		t.Errorf("artifact = %+v", a)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/artifacts/8", http.StatusNotFound},
		{"/api/artifacts/vase", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := do(t, srv, "GET", tt.path, "", ""); w.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

// ─── Error Mapping ──────────────────────────────────────────────────────────

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrValidation, http.StatusBadRequest},
		{domain.ErrPermissionDenied, http.StatusForbidden},
		{domain.ErrInsufficientExpertise, http.StatusForbidden},
		{domain.ErrProposalNotFound, http.StatusNotFound},
		{domain.ErrNoVotes, http.StatusNotFound},
		{domain.ErrAlreadyVoted, http.StatusConflict},
		{domain.ErrNotYetVoted, http.StatusConflict},
		{domain.ErrNotPassed, http.StatusConflict},
		{domain.ErrProposalClosed, http.StatusConflict},
		{domain.ErrDeadlinePassed, http.StatusGone},
		{domain.ErrDeadlineExceeded, http.StatusGone},
		{fmt.Errorf("%w: boom", domain.ErrExecutionFailed), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", domain.ErrExecutionFailed, domain.ErrArtifactNotFound), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAPI_MetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "GET", "/metrics", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("metrics disabled status = %d, want 404", w.Code)
	}
	srv.EnableMetrics()
	w := do(t, srv, "GET", "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", w.Code)
	}
}
