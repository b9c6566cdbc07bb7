package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/audiovook/audiovook-server/database"
	"github.com/audiovook/audiovook-server/imageresize"
	"github.com/audiovook/audiovook-server/lending"
	"github.com/audiovook/audiovook-server/signurl"
)

type Options struct {
	Repo    *database.Repository
	Lending *lending.Service
	Signer  *signurl.Signer
	// TokenSecret signs login bearer tokens.
	TokenSecret string
	// CoversDir holds title cover art served via the resizer.
	CoversDir    string
	Imageresizer *imageresize.Resizer
}

// API is the end-user HTTP surface under /api/v1.
type API struct {
	repo         *database.Repository
	lending      *lending.Service
	signer       *signurl.Signer
	tokenSecret  string
	coversDir    string
	imageresizer *imageresize.Resizer
}

func New(o *Options) *API {
	return &API{
		repo:         o.Repo,
		lending:      o.Lending,
		signer:       o.Signer,
		tokenSecret:  o.TokenSecret,
		coversDir:    o.CoversDir,
		imageresizer: o.Imageresizer,
	}
}

func (a *API) RegisterHandlers(s *mux.Router) {
	r := s.PathPrefix("/api/v1").Subrouter()

	// middleware for endpoints that require a valid bearer token
	middleware := func(handler http.HandlerFunc) http.Handler {
		return handlers.CompressHandler(a.authmiddleware(http.HandlerFunc(handler)))
	}

	r.Handle("/ping", http.HandlerFunc(a.pingHandler)).Methods("GET")
	r.Handle("/register", http.HandlerFunc(a.registerHandler)).Methods("POST")
	r.Handle("/login", http.HandlerFunc(a.loginHandler)).Methods("POST")

	r.Handle("/claim/{qr}", middleware(a.claimHandler)).Methods("POST")
	r.Handle("/lend/{qr}", middleware(a.lendHandler)).Methods("POST")
	r.Handle("/abook/{qr}/stop-lend", middleware(a.stopLendHandler)).Methods("POST")
	r.Handle("/abook/{qr}/status", middleware(a.statusHandler)).Methods("GET")
	r.Handle("/abook/{qr}/play-auth", middleware(a.playAuthHandler)).Methods("GET")
	// legacy alias, some clients use the shorter path
	r.Handle("/play-auth/{qr}", middleware(a.playAuthHandler)).Methods("GET")
	r.Handle("/abook/{qr}/progress", middleware(a.progressHandler)).Methods("POST")

	// callback for streaming hosts that do not verify signatures themselves
	r.Handle("/verify/{qr}", http.HandlerFunc(a.verifyHandler)).Methods("GET")

	r.Handle("/titles/{title}/cover", http.HandlerFunc(a.titleCoverHandler)).Methods("GET")
}
