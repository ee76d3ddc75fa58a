package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/tonimelisma/forgepush/pkg/gitblob"
)

// FakeRepo is the in-memory state of one repository on a FakeForge.
type FakeRepo struct {
	Owner       string
	Name        string
	Description string
	Private     bool
	HasIssues   bool
	HasProjects bool
	HasWiki     bool

	// Permission is what the collaborator permission endpoint reports for
	// the authenticated user: "admin", "write", "read" or "none".
	Permission string

	// Files maps repository paths to their stored bytes.
	Files map[string][]byte

	// Commits records the commit message of every write, in order.
	Commits []string
}

// RecordedRequest is one request the fake served.
type RecordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// FakeForge is an in-process stand-in for the subset of the GitHub REST
// API that forgepush uses. Create it with NewFakeForge; the server is shut
// down by t.Cleanup.
type FakeForge struct {
	Server *httptest.Server

	mu         sync.Mutex
	login      string
	token      string
	repos      map[string]*FakeRepo
	failPuts   map[string]int
	wrongBlob  map[string]bool
	requests   []RecordedRequest
	createFail int
	createMsg  string
}

// NewFakeForge starts a fake forge whose authenticated user is login. When
// token is non-empty every request must carry it as a bearer token.
func NewFakeForge(t *testing.T, login, token string) *FakeForge {
	t.Helper()

	f := &FakeForge{
		login:     login,
		token:     token,
		repos:     make(map[string]*FakeRepo),
		failPuts:  make(map[string]int),
		wrongBlob: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", f.handleUser)
	mux.HandleFunc("POST /user/repos", f.handleCreate)
	mux.HandleFunc("POST /orgs/{org}/repos", f.handleCreate)
	mux.HandleFunc("GET /repos/{owner}/{repo}", f.handleGetRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/collaborators/{user}/permission", f.handlePermission)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", f.handleGetContents)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", f.handlePutContents)

	f.Server = httptest.NewServer(f.record(f.authorize(mux)))
	t.Cleanup(f.Server.Close)

	return f
}

// URL returns the API base URL with a trailing slash.
func (f *FakeForge) URL() string {
	return f.Server.URL + "/"
}

// AddRepo seeds an existing repository. An empty Permission means "admin".
func (f *FakeForge) AddRepo(repo *FakeRepo) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if repo.Permission == "" {
		repo.Permission = "admin"
	}

	if repo.Files == nil {
		repo.Files = make(map[string][]byte)
	}

	f.repos[repoKey(repo.Owner, repo.Name)] = repo
}

// Repo returns the repository owner/name, or nil.
func (f *FakeForge) Repo(owner, name string) *FakeRepo {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.repos[repoKey(owner, name)]
}

// File returns the stored bytes of path in owner/name.
func (f *FakeForge) File(owner, name, path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo := f.repos[repoKey(owner, name)]
	if repo == nil {
		return nil, false
	}

	data, ok := repo.Files[path]

	return data, ok
}

// FilePaths returns the sorted paths stored in owner/name.
func (f *FakeForge) FilePaths(owner, name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo := f.repos[repoKey(owner, name)]
	if repo == nil {
		return nil
	}

	paths := make([]string, 0, len(repo.Files))
	for p := range repo.Files {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// FailPut makes every write of path answer with status.
func (f *FakeForge) FailPut(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failPuts[path] = status
}

// ReportWrongBlob makes writes of path succeed but report a bogus blob SHA.
func (f *FakeForge) ReportWrongBlob(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.wrongBlob[path] = true
}

// FailCreate makes repository creation answer with status and a single
// field error carrying message.
func (f *FakeForge) FailCreate(status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createFail = status
	f.createMsg = message
}

// Alias makes owner/name resolve to an existing repository, the way the
// API follows renames and transfers.
func (f *FakeForge) Alias(owner, name string, target *FakeRepo) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.repos[repoKey(owner, name)] = target
}

// Requests returns a copy of every request served so far.
func (f *FakeForge) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]RecordedRequest(nil), f.requests...)
}

// CountRequests counts served requests with the given method and path.
func (f *FakeForge) CountRequests(method, path string) int {
	n := 0

	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}

	return n
}

// CountRequestsPrefix counts served requests with the given method whose
// path starts with prefix.
func (f *FakeForge) CountRequestsPrefix(method, prefix string) int {
	n := 0

	for _, r := range f.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}

	return n
}

func (f *FakeForge) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		f.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (f *FakeForge) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (f *FakeForge) handleUser(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"login": f.login, "id": 1})
}

type createRepoBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	HasIssues   bool   `json:"has_issues"`
	HasProjects bool   `json:"has_projects"`
	HasWiki     bool   `json:"has_wiki"`
}

func (f *FakeForge) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createRepoBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Problems parsing JSON"})
		return
	}

	owner := r.PathValue("org")
	if owner == "" {
		owner = f.login
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createFail != 0 {
		writeJSON(w, f.createFail, map[string]any{
			"message": "Repository creation failed.",
			"errors":  []map[string]string{{"resource": "Repository", "field": "name", "message": f.createMsg}},
		})

		return
	}

	if _, exists := f.repos[repoKey(owner, body.Name)]; exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Repository creation failed.",
			"errors": []map[string]string{{
				"resource": "Repository",
				"code":     "custom",
				"field":    "name",
				"message":  "name already exists on this account",
			}},
		})

		return
	}

	repo := &FakeRepo{
		Owner:       owner,
		Name:        body.Name,
		Description: body.Description,
		Private:     body.Private,
		HasIssues:   body.HasIssues,
		HasProjects: body.HasProjects,
		HasWiki:     body.HasWiki,
		Permission:  "admin",
		Files:       make(map[string][]byte),
	}
	f.repos[repoKey(owner, body.Name)] = repo

	writeJSON(w, http.StatusCreated, f.repoJSON(repo))
}

func (f *FakeForge) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo := f.repos[repoKey(r.PathValue("owner"), r.PathValue("repo"))]
	if repo == nil {
		writeNotFound(w)
		return
	}

	writeJSON(w, http.StatusOK, f.repoJSON(repo))
}

func (f *FakeForge) handlePermission(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo := f.repos[repoKey(r.PathValue("owner"), r.PathValue("repo"))]
	if repo == nil {
		writeNotFound(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"permission": repo.Permission,
		"user":       map[string]any{"login": r.PathValue("user")},
	})
}

func (f *FakeForge) handleGetContents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo := f.repos[repoKey(r.PathValue("owner"), r.PathValue("repo"))]
	if repo == nil {
		writeNotFound(w)
		return
	}

	p := r.PathValue("path")

	data, ok := repo.Files[p]
	if !ok {
		writeNotFound(w)
		return
	}

	writeJSON(w, http.StatusOK, contentJSON(p, data))
}

type putContentsBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

func (f *FakeForge) handlePutContents(w http.ResponseWriter, r *http.Request) {
	var body putContentsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Problems parsing JSON"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "content is not valid Base64"})
		return
	}

	p := r.PathValue("path")

	f.mu.Lock()
	defer f.mu.Unlock()

	repo := f.repos[repoKey(r.PathValue("owner"), r.PathValue("repo"))]
	if repo == nil {
		writeNotFound(w)
		return
	}

	if status, fail := f.failPuts[p]; fail {
		writeJSON(w, status, map[string]any{"message": fmt.Sprintf("injected failure for %s", p)})
		return
	}

	status := http.StatusCreated

	if existing, exists := repo.Files[p]; exists {
		switch body.SHA {
		case "":
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"message": "Invalid request.\n\n\"sha\" wasn't supplied.",
			})

			return
		case gitblob.Sum(existing):
			status = http.StatusOK
		default:
			writeJSON(w, http.StatusConflict, map[string]any{
				"message": fmt.Sprintf("%s does not match %s", p, body.SHA),
			})

			return
		}
	}

	repo.Files[p] = data
	repo.Commits = append(repo.Commits, body.Message)

	resp := map[string]any{
		"content": contentJSON(p, data),
		"commit":  map[string]any{"sha": fmt.Sprintf("%040d", len(repo.Commits)), "message": body.Message},
	}

	if f.wrongBlob[p] {
		resp["content"].(map[string]any)["sha"] = strings.Repeat("0", gitblob.Size*2)
	}

	writeJSON(w, status, resp)
}

func (f *FakeForge) repoJSON(repo *FakeRepo) map[string]any {
	return map[string]any{
		"name":           repo.Name,
		"full_name":      repo.Owner + "/" + repo.Name,
		"owner":          map[string]any{"login": repo.Owner},
		"private":        repo.Private,
		"description":    repo.Description,
		"html_url":       f.Server.URL + "/" + repo.Owner + "/" + repo.Name,
		"default_branch": "main",
		"has_issues":     repo.HasIssues,
		"has_projects":   repo.HasProjects,
		"has_wiki":       repo.HasWiki,
	}
}

func contentJSON(path string, data []byte) map[string]any {
	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}

	return map[string]any{
		"type":     "file",
		"name":     name,
		"path":     path,
		"sha":      gitblob.Sum(data),
		"size":     len(data),
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString(data),
	}
}

func repoKey(owner, name string) string {
	return strings.ToLower(owner) + "/" + strings.ToLower(name)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-GitHub-Request-Id", "FAKE:0001")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
