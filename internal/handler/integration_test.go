package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plinth-dev/plinth/internal/handler"
	"github.com/plinth-dev/plinth/internal/service"
)

// newTestServer starts the routed mux behind the full middleware chain.
func newTestServer(t *testing.T) (handler.Deps, *httptest.Server) {
	t.Helper()
	deps := newTestDeps(t)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, deps)
	srv := httptest.NewServer(handler.Wrap(mux, deps))
	t.Cleanup(srv.Close)
	return deps, srv
}

func doRequest(t *testing.T, method, url string, headers map[string]string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func dataField(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %v", body)
	}
	return data
}

func TestIntegration_ExampleCRUD(t *testing.T) {
	_, srv := newTestServer(t)

	// 1. The list starts empty.
	resp := doRequest(t, http.MethodGet, srv.URL+"/examples", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	pagination, ok := body["pagination"].(map[string]any)
	if !ok {
		t.Fatalf("expected pagination object, got %v", body)
	}
	if pagination["total"] != float64(0) {
		t.Fatalf("expected empty list, got total %v", pagination["total"])
	}

	// 2. Create an example.
	resp = doRequest(t, http.MethodPost, srv.URL+"/examples", nil,
		strings.NewReader(`{"name":"First","description":"one"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["status"] != "success" || body["message"] != "Example created" {
		t.Fatalf("unexpected create envelope: %v", body)
	}
	id, _ := dataField(t, body)["id"].(string)
	if id == "" {
		t.Fatal("expected a generated example ID")
	}

	// 3. A missing name is rejected.
	resp = doRequest(t, http.MethodPost, srv.URL+"/examples", nil,
		strings.NewReader(`{"description":"no name"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("create without name: expected 400, got %d", resp.StatusCode)
	}

	// 4. Fetch it back.
	resp = doRequest(t, http.MethodGet, srv.URL+"/examples/"+id, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	data := dataField(t, decodeBody(t, resp))
	if data["name"] != "First" || data["description"] != "one" {
		t.Fatalf("unexpected example payload: %v", data)
	}

	// 5. A partial update keeps the untouched field.
	resp = doRequest(t, http.MethodPut, srv.URL+"/examples/"+id, nil,
		strings.NewReader(`{"description":"updated"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	data = dataField(t, decodeBody(t, resp))
	if data["name"] != "First" || data["description"] != "updated" {
		t.Fatalf("unexpected updated payload: %v", data)
	}

	// 6. Delete it, then the ID is gone.
	resp = doRequest(t, http.MethodDelete, srv.URL+"/examples/"+id, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, srv.URL+"/examples/"+id, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodDelete, srv.URL+"/examples/"+id, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_UserEndpoints(t *testing.T) {
	_, srv := newTestServer(t)

	token := signTestToken(t, "user-12345", "pat@example.com")
	auth := map[string]string{"Authorization": "Bearer " + token}

	// 1. No token, no access.
	resp := doRequest(t, http.MethodPost, srv.URL+"/users", nil, strings.NewReader(`{}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create: expected 401, got %d", resp.StatusCode)
	}

	// 2. Create the caller's record; the ID comes from the token.
	resp = doRequest(t, http.MethodPost, srv.URL+"/users", auth,
		strings.NewReader(`{"username":"pat"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	data := dataField(t, decodeBody(t, resp))
	if data["id"] != "user-12345" || data["email"] != "pat@example.com" || data["username"] != "pat" {
		t.Fatalf("unexpected user payload: %v", data)
	}

	// 3. Claiming a different ID in the body is forbidden.
	resp = doRequest(t, http.MethodPost, srv.URL+"/users", auth,
		strings.NewReader(`{"id":"someone-else"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("mismatched ID: expected 403, got %d", resp.StatusCode)
	}

	// 4. The caller reads their own record but nobody else's.
	resp = doRequest(t, http.MethodGet, srv.URL+"/users/user-12345", auth, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get own: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doRequest(t, http.MethodGet, srv.URL+"/users/other-999", auth, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("get other: expected 403, got %d", resp.StatusCode)
	}

	// 5. Partial profile update.
	resp = doRequest(t, http.MethodPatch, srv.URL+"/users/user-12345", auth,
		strings.NewReader(`{"first_name":"Pat","last_name":"Lee"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	data = dataField(t, decodeBody(t, resp))
	if data["first_name"] != "Pat" || data["last_name"] != "Lee" {
		t.Fatalf("unexpected updated user: %v", data)
	}

	// 6. Username change through the dedicated route.
	resp = doRequest(t, http.MethodPatch, srv.URL+"/users/user-12345/username", auth,
		strings.NewReader(`{"username":"pat-lee"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("username change: expected 200, got %d", resp.StatusCode)
	}
	data = dataField(t, decodeBody(t, resp))
	if data["username"] != "pat-lee" {
		t.Fatalf("expected username pat-lee, got %v", data["username"])
	}
}

func TestIntegration_BackupLifecycle(t *testing.T) {
	_, srv := newTestServer(t)
	admin := map[string]string{"X-API-Key": "admin-key"}

	// 1. Seed a row so the snapshot has content.
	resp := doRequest(t, http.MethodPost, srv.URL+"/examples", nil,
		strings.NewReader(`{"name":"keep"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed: expected 201, got %d", resp.StatusCode)
	}

	// 2. The create route wants the admin key.
	resp = doRequest(t, http.MethodPost, srv.URL+"/backup/create", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("create without key: expected 401, got %d", resp.StatusCode)
	}

	// 3. Create an uncompressed backup.
	resp = doRequest(t, http.MethodPost, srv.URL+"/backup/create?compress=false", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create backup: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("expected success=true, got %v", body)
	}
	filename, _ := body["filename"].(string)
	if !strings.HasPrefix(filename, "backup_sqlite_") || strings.HasSuffix(filename, ".gz") {
		t.Fatalf("unexpected artifact name %q", filename)
	}

	// 4. The listing includes the new artifact.
	resp = doRequest(t, http.MethodGet, srv.URL+"/backup/list", admin, nil)
	body = decodeBody(t, resp)
	names := listedBackupNames(t, body)
	if !names[filename] {
		t.Fatalf("artifact %q missing from listing %v", filename, names)
	}

	// 5. Download it.
	resp = doRequest(t, http.MethodGet, srv.URL+"/backup/download/"+filename, admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, filename) {
		t.Fatalf("Content-Disposition should name the artifact, got %q", cd)
	}
	resp.Body.Close()

	// 6. Mutate state after the snapshot.
	resp = doRequest(t, http.MethodPost, srv.URL+"/examples", nil,
		strings.NewReader(`{"name":"drop-me"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post-snapshot create: expected 201, got %d", resp.StatusCode)
	}

	// 7. Restore; a safety backup is taken first.
	resp = doRequest(t, http.MethodPost, srv.URL+"/backup/restore/"+filename,
		map[string]string{"X-API-Key": "restore-key"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore: expected 200, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["success"] != true || body["safety_backup_created"] != true {
		t.Fatalf("unexpected restore response: %v", body)
	}
	safety, _ := body["safety_backup_filename"].(string)
	if !strings.HasPrefix(safety, "safety_backup_") {
		t.Fatalf("unexpected safety backup name %q", safety)
	}

	// 8. The post-snapshot row is gone.
	resp = doRequest(t, http.MethodGet, srv.URL+"/examples", nil, nil)
	body = decodeBody(t, resp)
	pagination := body["pagination"].(map[string]any)
	if pagination["total"] != float64(1) {
		t.Fatalf("expected 1 example after restore, got %v", pagination["total"])
	}

	// 9. Delete the artifact with the delete key.
	resp = doRequest(t, http.MethodDelete, srv.URL+"/backup/delete/"+filename,
		map[string]string{"X-API-Key": "delete-key"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("expected delete success, got %v", body)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/backup/list", admin, nil)
	names = listedBackupNames(t, decodeBody(t, resp))
	if names[filename] {
		t.Fatalf("deleted artifact %q still listed", filename)
	}

	// 10. Unknown artifacts are 404, dotfile names are rejected.
	resp = doRequest(t, http.MethodPost, srv.URL+"/backup/restore/missing.db",
		map[string]string{"X-API-Key": "restore-key"}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("restore missing: expected 404, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, srv.URL+"/backup/download/.hidden", admin, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("dotfile download: expected 400, got %d", resp.StatusCode)
	}
}

func listedBackupNames(t *testing.T, body map[string]any) map[string]bool {
	t.Helper()
	raw, ok := body["backups"].([]any)
	if !ok {
		t.Fatalf("expected backups array, got %v", body)
	}
	names := make(map[string]bool, len(raw))
	for _, entry := range raw {
		b, ok := entry.(map[string]any)
		if !ok {
			t.Fatalf("unexpected listing entry %v", entry)
		}
		name, _ := b["filename"].(string)
		names[name] = true
	}
	return names
}

func TestIntegration_RestoreUpload(t *testing.T) {
	_, srv := newTestServer(t)
	admin := map[string]string{"X-API-Key": "admin-key"}

	// 1. Seed and snapshot, then capture the artifact bytes.
	resp := doRequest(t, http.MethodPost, srv.URL+"/examples", nil,
		strings.NewReader(`{"name":"seeded"}`))
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, srv.URL+"/backup/create?compress=false", admin, nil)
	filename, _ := decodeBody(t, resp)["filename"].(string)
	if filename == "" {
		t.Fatal("expected artifact filename")
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/backup/download/"+filename, admin, nil)
	artifact, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}

	// 2. Mutate state after the snapshot.
	resp = doRequest(t, http.MethodPost, srv.URL+"/examples", nil,
		strings.NewReader(`{"name":"extra"}`))
	resp.Body.Close()

	// 3. Upload the captured artifact back.
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(artifact); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost,
		srv.URL+"/backup/restore-upload?create_safety_backup=false", &form)
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", "restore-key")

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /backup/restore-upload: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore upload: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != true || body["safety_backup_created"] != false {
		t.Fatalf("unexpected upload restore response: %v", body)
	}

	// 4. State is rewound to the snapshot.
	resp = doRequest(t, http.MethodGet, srv.URL+"/examples", nil, nil)
	pagination := decodeBody(t, resp)["pagination"].(map[string]any)
	if pagination["total"] != float64(1) {
		t.Fatalf("expected 1 example after upload restore, got %v", pagination["total"])
	}
}

func TestIntegration_LockFlow(t *testing.T) {
	_, srv := newTestServer(t)
	admin := map[string]string{"X-API-Key": "admin-key"}

	// 1. Status wants the admin key, and reports unlocked at rest.
	resp := doRequest(t, http.MethodGet, srv.URL+"/database/lock-status", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without key: expected 401, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, srv.URL+"/database/lock-status", admin, nil)
	body := decodeBody(t, resp)
	if body["is_locked"] != false || body["message"] != "Database is not locked" {
		t.Fatalf("expected unlocked state, got %v", body)
	}

	// 2. Take the lock for a named operation.
	resp = doRequest(t, http.MethodPost, srv.URL+"/database/lock", admin,
		strings.NewReader(`{"operation":"maintenance"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lock: expected 200, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["success"] != true || body["is_locked"] != true || body["lock_operation"] != "maintenance" {
		t.Fatalf("unexpected lock response: %v", body)
	}

	// 3. Status reflects the hold.
	resp = doRequest(t, http.MethodGet, srv.URL+"/database/lock-status", admin, nil)
	body = decodeBody(t, resp)
	if body["is_locked"] != true || body["lock_operation"] != "maintenance" {
		t.Fatalf("unexpected lock status: %v", body)
	}

	// 4. Mutations are refused while held.
	resp = doRequest(t, http.MethodPost, srv.URL+"/examples", nil,
		strings.NewReader(`{"name":"blocked"}`))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("mutation under lock: expected 503, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["operation_in_progress"] != "maintenance" {
		t.Fatalf("expected operation maintenance in 503 payload, got %v", body)
	}

	// 5. Maintenance routes are guarded too.
	resp = doRequest(t, http.MethodPost, srv.URL+"/backup/create", admin, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("backup under lock: expected 503, got %d", resp.StatusCode)
	}

	// 6. A second lock attempt conflicts.
	resp = doRequest(t, http.MethodPost, srv.URL+"/database/lock", admin,
		strings.NewReader(`{"operation":"backup"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second lock: expected 409, got %d", resp.StatusCode)
	}

	// 7. Reads keep working throughout.
	resp = doRequest(t, http.MethodGet, srv.URL+"/examples", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read under lock: expected 200, got %d", resp.StatusCode)
	}

	// 8. Unlock, then mutations resume.
	resp = doRequest(t, http.MethodPost, srv.URL+"/database/unlock", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unlock: expected 200, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["is_locked"] != false {
		t.Fatalf("unexpected unlock response: %v", body)
	}
	resp = doRequest(t, http.MethodPost, srv.URL+"/examples", nil,
		strings.NewReader(`{"name":"unblocked"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("mutation after release: expected 201, got %d", resp.StatusCode)
	}

	// 9. An empty lock body defaults the operation to restore.
	resp = doRequest(t, http.MethodPost, srv.URL+"/database/lock", admin, nil)
	body = decodeBody(t, resp)
	if body["lock_operation"] != "restore" {
		t.Fatalf("expected default operation restore, got %v", body)
	}
	resp = doRequest(t, http.MethodPost, srv.URL+"/database/unlock", admin, nil)
	resp.Body.Close()
}

func TestIntegration_DBTestEndpoints(t *testing.T) {
	_, srv := newTestServer(t)

	// 1. Connection probe.
	resp := doRequest(t, http.MethodGet, srv.URL+"/test/db-test", nil, nil)
	body := decodeBody(t, resp)
	if body["status"] != "success" || body["database_type"] != "sqlite" {
		t.Fatalf("unexpected db-test response: %v", body)
	}

	// 2. Backend description.
	resp = doRequest(t, http.MethodGet, srv.URL+"/test/db-info", nil, nil)
	body = decodeBody(t, resp)
	if body["database_type"] != "sqlite" {
		t.Fatalf("unexpected db-info response: %v", body)
	}
	if desc, _ := body["description"].(string); desc == "" {
		t.Fatal("expected a backend description")
	}

	// 3. Sample query round-trip.
	resp = doRequest(t, http.MethodGet, srv.URL+"/test/db-sample-query", nil, nil)
	body = decodeBody(t, resp)
	results, ok := body["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("expected one result row, got %v", body)
	}
	row, _ := results[0].(map[string]any)
	if row["message"] != "Hello from SQL" {
		t.Fatalf("unexpected sample row: %v", row)
	}
}

func TestIntegration_RootAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)

	// 1. The root greeting works without a cache.
	resp := doRequest(t, http.MethodGet, srv.URL+"/", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("root: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["message"] != "Hello from Plinth!" || body["database_type"] != "sqlite" {
		t.Fatalf("unexpected root payload: %v", body)
	}

	// 2. The observed traffic shows up in the exposition.
	resp = doRequest(t, http.MethodGet, srv.URL+"/metrics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
	exposition, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(exposition), "plinth_http_requests_total") {
		t.Fatal("expected plinth_http_requests_total in the exposition")
	}
}

func TestIntegration_PackagesList(t *testing.T) {
	_, srv := newTestServer(t)
	admin := map[string]string{"X-API-Key": "admin-key"}

	resp := doRequest(t, http.MethodGet, srv.URL+"/packages/list", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("list without key: expected 401, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/packages/list", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if v, _ := body["go_version"].(string); v == "" {
		t.Fatal("expected a go_version")
	}
	if _, ok := body["packages"].([]any); !ok {
		t.Fatalf("expected packages array, got %v", body["packages"])
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/packages/info/nosuch.example/mod", admin, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown package: expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_FilesEndpoints(t *testing.T) {
	deps := newTestDeps(t)

	filesDir := t.TempDir()
	seed := map[string]string{
		"alpha.txt": "alpha body",
		"beta.txt":  "beta body",
		"data.csv":  "a,b,c",
	}
	for name, content := range seed {
		if err := os.WriteFile(filepath.Join(filesDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	deps.Files = service.NewFileService(filesDir)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, deps)
	srv := httptest.NewServer(handler.Wrap(mux, deps))
	defer srv.Close()

	// 1. Text file listing.
	resp := doRequest(t, http.MethodGet, srv.URL+"/files/list", nil, nil)
	body := decodeBody(t, resp)
	txt, ok := body["txt_files"].([]any)
	if !ok || len(txt) != 2 {
		t.Fatalf("expected 2 txt files, got %v", body)
	}

	// 2. Extension inventory and counts.
	resp = doRequest(t, http.MethodGet, srv.URL+"/files/count", nil, nil)
	body = decodeBody(t, resp)
	if body["file_count"] != float64(3) {
		t.Fatalf("expected 3 files, got %v", body["file_count"])
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/files/list/csv", nil, nil)
	body = decodeBody(t, resp)
	if body["extension"] != "csv" || body["count"] != float64(1) {
		t.Fatalf("unexpected csv listing: %v", body)
	}

	// 3. Reading contents.
	resp = doRequest(t, http.MethodGet, srv.URL+"/files/read", nil, nil)
	body = decodeBody(t, resp)
	files, ok := body["files"].(map[string]any)
	if !ok || files["alpha.txt"] != "alpha body" {
		t.Fatalf("unexpected read payload: %v", body)
	}
}
