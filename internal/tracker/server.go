package tracker

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/appperms/pkg/cerr"
	"github.com/kazz187/appperms/pkg/clog"
)

// Server exposes the tracker over JSON HTTP.
type Server struct {
	tracker *Tracker
}

func NewServer(tracker *Tracker) *Server {
	return &Server{tracker: tracker}
}

// Routes registers the package routes on r. Handlers report their result
// through the cerr JSON reply helpers.
func (s *Server) Routes(r chi.Router) {
	r.Get("/packages", s.ListPackages)
	r.Route("/packages/{name}", func(r chi.Router) {
		r.Get("/groups", s.GetGroups)
		r.Get("/groups/{group}", s.GetGroup)
		r.Post("/refresh", s.RefreshPackage)
	})
}

type listPackagesResponse struct {
	Packages []PackageSummary `json:"packages"`
}

func (s *Server) ListPackages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pkgs, err := s.tracker.Packages(ctx)
	cerr.SetJSONResult(ctx, &listPackagesResponse{Packages: pkgs}, err)
}

func (s *Server) GetGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := queryFromRequest(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	snap, err := s.tracker.Get(ctx, q)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddAttribute(ctx, clog.GroupsKey, len(snap.Groups))
	cerr.SetJSONResponse(ctx, snap)
}

func (s *Server) GetGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := queryFromRequest(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	g, err := s.tracker.Group(ctx, q, chi.URLParam(r, "group"))
	cerr.SetJSONResult(ctx, g, err)
}

func (s *Server) RefreshPackage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := queryFromRequest(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	// Refresh every tracked view of the package, then serve the requested
	// one. An untracked view is built from the current manifest by Get.
	if _, err := s.tracker.RefreshPackage(ctx, q.PackageName); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	snap, err := s.tracker.Get(ctx, q)
	cerr.SetJSONResult(ctx, snap, err)
}

// queryFromRequest reads the package name from the path and the optional
// repeated "filter" and boolean "sort" parameters.
func queryFromRequest(r *http.Request) (Query, error) {
	name := chi.URLParam(r, "name")
	clog.AddAttribute(r.Context(), clog.PackageKey, name)
	q := Query{
		PackageName: name,
		Filter:      r.URL.Query()["filter"],
	}
	if v := r.URL.Query().Get("sort"); v != "" {
		sorted, err := strconv.ParseBool(v)
		if err != nil {
			return Query{}, cerr.NewError(cerr.InvalidArgument, "invalid sort parameter", err).
				AddDetailMessageWithField("must be a boolean", "sort")
		}
		q.Sorted = sorted
	}
	return q, nil
}
