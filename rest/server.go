// Copyright 2026 The Warden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/gdamore/warden"
)

// Handler wraps a Supervisor, adding http.Handler functionality.
type Handler struct {
	s     *warden.Supervisor
	r     *mux.Router
	users map[string][]byte
	realm string
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, tag string, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		if tag != "" {
			w.Header().Set("Etag", tag)
		}
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

// pollParams returns the Etag the client wants us to wait on, and how
// long it is willing to wait.  A zero wait means do not wait.
func pollParams(r *http.Request) (int64, time.Duration) {
	old, ok := parseEtag(r.Header.Get(PollEtagHeader))
	if !ok {
		return 0, 0
	}
	secs, e := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if e != nil || secs <= 0 {
		return old, 0
	}
	if secs > MaxPollTime {
		secs = MaxPollTime
	}
	return old, time.Duration(secs) * time.Second
}

func notModified(w http.ResponseWriter, r *http.Request, tag string) bool {
	if r.Header.Get("If-None-Match") != tag {
		return false
	}
	w.Header().Set("Etag", tag)
	w.WriteHeader(http.StatusNotModified)
	return true
}

func (h *Handler) waitSerial(r *http.Request) int64 {
	if old, wait := pollParams(r); wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		return h.s.WatchSerial(ctx, old)
	}
	return h.s.Serial()
}

func (h *Handler) getInfo(w http.ResponseWriter, r *http.Request) {
	h.waitSerial(r)
	info := h.s.Info()
	tag := formatEtag(info.Serial)
	if !notModified(w, r, tag) {
		h.writeJson(w, tag, info)
	}
}

func (h *Handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	tag := formatEtag(h.waitSerial(r))
	if !notModified(w, r, tag) {
		h.writeJson(w, tag, h.s.Workers())
	}
}

func (h *Handler) getWorker(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["worker"]
	tag := formatEtag(h.waitSerial(r))
	info, e := h.s.Worker(name)
	if e != nil {
		h.writeError(w, &Error{http.StatusNotFound, "Worker not found"})
		return
	}
	if !notModified(w, r, tag) {
		h.writeJson(w, tag, info)
	}
}

func (h *Handler) serveLog(w http.ResponseWriter, r *http.Request, name string) {
	if old, wait := pollParams(r); wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		h.s.WatchLog(ctx, old)
		cancel()
	}
	recs, id := h.s.GetLog(0, name)
	if recs == nil {
		recs = []warden.LogRecord{}
	}
	tag := formatEtag(id)
	if !notModified(w, r, tag) {
		h.writeJson(w, tag, recs)
	}
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	h.serveLog(w, r, r.URL.Query().Get("worker"))
}

func (h *Handler) getWorkerLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["worker"]
	if _, e := h.s.Worker(name); e != nil {
		h.writeError(w, &Error{http.StatusNotFound, "Worker not found"})
		return
	}
	h.serveLog(w, r, name)
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if h.s.State().Dying() {
		h.writeError(w, &Error{http.StatusConflict,
			"Supervisor is shutting down"})
		return
	}
	h.s.State().RequestReload()
	h.writeJson(w, "", ok)
}

func (h *Handler) shutdown(w http.ResponseWriter, r *http.Request) {
	h.s.State().RequestShutdown()
	h.writeJson(w, "", ok)
}

// authenticate checks HTTP basic credentials against the configured
// users.  With no users configured, everyone is let in.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.users) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if user, pass, found := r.BasicAuth(); found {
			hash, known := h.users[user]
			if known && bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="`+h.realm+`"`)
		h.writeError(w, &Error{http.StatusUnauthorized,
			"Authentication required"})
	})
}

// AddUser permits the user to authenticate with the password whose
// bcrypt hash is given.  Once any user is added, every request must
// authenticate.  Users must be added before the handler starts serving.
func (h *Handler) AddUser(user string, hash string) error {
	if user == "" {
		return errors.New("empty user name")
	}
	if _, e := bcrypt.Cost([]byte(hash)); e != nil {
		return e
	}
	h.users[user] = []byte(hash)
	return nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

func NewHandler(s *warden.Supervisor) *Handler {
	r := mux.NewRouter()
	h := &Handler{
		s:     s,
		r:     r,
		users: make(map[string][]byte),
		realm: s.Name(),
	}
	r.Use(h.authenticate)
	r.HandleFunc("/", h.getInfo).Methods("GET")
	r.HandleFunc("/workers", h.listWorkers).Methods("GET")
	r.HandleFunc("/workers/{worker}", h.getWorker).Methods("GET")
	r.HandleFunc("/workers/{worker}/log", h.getWorkerLog).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/reload", h.reload).Methods("POST")
	r.HandleFunc("/shutdown", h.shutdown).Methods("POST")
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer(),
		promhttp.HandlerOpts{})).Methods("GET")
	return h
}
