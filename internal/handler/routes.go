package handler

import (
	"net/http"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/backup"
	"github.com/plinth-dev/plinth/internal/cache"
	"github.com/plinth-dev/plinth/internal/config"
	"github.com/plinth-dev/plinth/internal/lock"
	"github.com/plinth-dev/plinth/internal/metrics"
	"github.com/plinth-dev/plinth/internal/service"
)

// Deps carries everything the route table needs. Nil service fields
// switch their routes off: Examples is nil on graph deployments, Nodes
// on relational ones, Users without a JWT secret, Files without a
// mounted directory, Cache without Redis.
type Deps struct {
	Cfg      *config.Config
	Backend  backend.Handler
	Backups  *backup.Service
	Coord    *lock.Coordinator
	Metrics  *metrics.Metrics
	Limiter  *service.TokenBucket
	Examples *service.ExampleService
	Nodes    *service.NodeService
	Users    *service.UserService
	Verifier *service.TokenVerifier
	Files    *service.FileService
	Cache    *cache.Cache
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /health", HandleHealth)
	mux.Handle("GET /version", HandleVersion(deps.Cfg.ImageTag))
	mux.Handle("GET /metrics", deps.Metrics.Handler())
	mux.Handle("GET /packages/list",
		RequireAdminKey(deps.Cfg, http.HandlerFunc(HandlePackages)))
	mux.Handle("GET /packages/info/{name...}",
		RequireAdminKey(deps.Cfg, http.HandlerFunc(HandlePackageInfo)))

	ch := NewCacheHandler(deps.Cache, deps.Cfg.DBType)
	mux.HandleFunc("GET /{$}", ch.HandleRoot)
	if deps.Cache != nil {
		mux.HandleFunc("GET /cache/{key}", ch.HandleGet)
		mux.HandleFunc("POST /cache/{key}", ch.HandleSet)
	}

	dt := NewDBTestHandler(deps.Backend, deps.Cfg)
	mux.HandleFunc("GET /test/db-test", dt.HandleDBTest)
	mux.HandleFunc("GET /test/db-info", dt.HandleDBInfo)
	mux.HandleFunc("GET /test/db-sample-query", dt.HandleSampleQuery)

	db := NewDatabaseHandler(deps.Coord)
	mux.Handle("GET /database/lock-status",
		RequireAdminKey(deps.Cfg, http.HandlerFunc(db.HandleLockStatus)))
	mux.Handle("POST /database/lock",
		RequireAdminKey(deps.Cfg, http.HandlerFunc(db.HandleLock)))
	mux.Handle("POST /database/unlock",
		RequireAdminKey(deps.Cfg, http.HandlerFunc(db.HandleUnlock)))

	bh := NewBackupHandler(deps.Backups, deps.Coord, deps.Metrics)
	mux.Handle("POST /backup/create",
		RequireAdminKey(deps.Cfg, RateLimit(deps.Limiter, http.HandlerFunc(bh.HandleCreate))))
	mux.Handle("GET /backup/list",
		RequireAdminKey(deps.Cfg, http.HandlerFunc(bh.HandleList)))
	mux.Handle("GET /backup/download/{filename}",
		RequireAdminKey(deps.Cfg, http.HandlerFunc(bh.HandleDownload)))
	mux.Handle("POST /backup/restore/{filename}",
		RequireRestoreKey(deps.Cfg, RateLimit(deps.Limiter, http.HandlerFunc(bh.HandleRestore))))
	mux.Handle("POST /backup/restore-upload",
		RequireRestoreKey(deps.Cfg, RateLimit(deps.Limiter, http.HandlerFunc(bh.HandleRestoreUpload))))
	mux.Handle("DELETE /backup/delete/{filename}",
		RequireDeleteKey(deps.Cfg, http.HandlerFunc(bh.HandleDelete)))
	if deps.Cfg.DBType.IsGraph() {
		mux.Handle("GET /backup/stats",
			RequireAdminKey(deps.Cfg, http.HandlerFunc(bh.HandleStats)))
	}

	if deps.Examples != nil {
		eh := NewExampleHandler(deps.Examples)
		mux.HandleFunc("GET /examples", eh.HandleList)
		mux.HandleFunc("POST /examples", eh.HandleCreate)
		mux.HandleFunc("GET /examples/{id}", eh.HandleGet)
		mux.HandleFunc("PUT /examples/{id}", eh.HandleUpdate)
		mux.HandleFunc("DELETE /examples/{id}", eh.HandleDelete)
	}

	if deps.Nodes != nil {
		nh := NewNodeHandler(deps.Nodes)
		mux.HandleFunc("GET /example-nodes", nh.HandleList)
		mux.HandleFunc("POST /example-nodes", nh.HandleCreate)
		mux.HandleFunc("DELETE /example-nodes", nh.HandleDeleteAll)
		mux.HandleFunc("GET /example-nodes/{id}", nh.HandleGet)
		mux.HandleFunc("PUT /example-nodes/{id}", nh.HandleUpdate)
		mux.HandleFunc("DELETE /example-nodes/{id}", nh.HandleDelete)
	}

	if deps.Users != nil && deps.Verifier != nil {
		uh := NewUsersHandler(deps.Users)
		mux.Handle("POST /users",
			RequireBearer(deps.Verifier, http.HandlerFunc(uh.HandleCreate)))
		mux.Handle("GET /users/{id}",
			RequireBearer(deps.Verifier, http.HandlerFunc(uh.HandleGet)))
		mux.Handle("PATCH /users/{id}",
			RequireBearer(deps.Verifier, http.HandlerFunc(uh.HandleUpdate)))
		mux.Handle("PATCH /users/{id}/username",
			RequireBearer(deps.Verifier, http.HandlerFunc(uh.HandleUpdateUsername)))
	}

	if deps.Files != nil {
		fh := NewFilesHandler(deps.Files)
		mux.HandleFunc("GET /files/list", fh.HandleList)
		mux.HandleFunc("GET /files/extensions", fh.HandleExtensions)
		mux.HandleFunc("GET /files/count", fh.HandleCount)
		mux.HandleFunc("GET /files/read", fh.HandleRead)
		mux.HandleFunc("GET /files/list/{extension}", fh.HandleListByExtension)
		mux.HandleFunc("GET /files/read/{extension}", fh.HandleReadByExtension)
	}
}

// Wrap applies the global middleware stack around the routed mux:
// security headers outermost, then request observation, then the
// database lock guard.
func Wrap(mux *http.ServeMux, deps Deps) http.Handler {
	h := LockGuard(deps.Coord, deps.Cfg.DBType, mux)
	h = Observe(deps.Metrics, mux, h)
	return SecurityHeaders(h)
}
