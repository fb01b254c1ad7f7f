package status

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
)

// This package serves the status page on /status/ and the
// log file at /status/log.gz with the detailed log

type status struct {
	tracker                             *Tracker
	version                             string
	shortMemoryWriter, longMemoryWriter *logs.MemoryWriter
	logger                              *logs.Logger
}

const csrfkey = "q7fz0c3kd81mv5xw2hn9rj4tl6yb0sep"

func ServeStatusRedirect(r *mux.Router, addr string) {
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://"+addr+"/status/", http.StatusMovedPermanently)
	})
	r.Use(OriginCheck(map[string]string{
		"": "",
	}))
}

// ServeStatus registers the status routes. addr is the address the
// server is reachable at, the log download is only accepted from
// pages served there.
func ServeStatus(r *mux.Router, t *Tracker, v, addr string, mw, dmw *logs.MemoryWriter) {
	status := &status{
		tracker:           t,
		version:           v,
		shortMemoryWriter: mw,
		longMemoryWriter:  dmw,
		logger:            &logs.Logger{Writer: dmw},
	}
	r.Methods("GET").Path("/").HandlerFunc(status.statusPage)
	r.Methods("POST").Path("/log.gz").HandlerFunc(status.statusGzip)

	r.Use(csrf.Protect([]byte(csrfkey), csrf.Secure(false)))
	r.Use(OriginCheck(map[string]string{
		"/status/":       "",
		"/status/log.gz": "http://" + addr,
	}))
}

func (s *status) statusGzip(w http.ResponseWriter, r *http.Request) {
	s.logger.Log("building gzip")

	start := s.version + "\n" + s.summary() + "\nCurrent log:\n"

	gzip, err := s.longMemoryWriter.Gzip(start)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")

	_, err = w.Write(gzip)
	if err != nil {
		respondError(w, err)
		return
	}
}

// summary is the session state as plain text, prepended to logs.
func (s *status) summary() string {
	snap := s.tracker.Snapshot()
	res := "mode: " + snap.Mode + "\n"
	if snap.Active != nil {
		res += fmt.Sprintf("active session %d: %s %s since %s\n",
			snap.Active.ID, snap.Active.Mode, snap.Active.Peer, snap.Active.Started.Format(time.RFC3339))
	}
	for _, r := range snap.Recent {
		res += fmt.Sprintf("session %d: %s %s, %s %s, %d frames\n",
			r.ID, r.Mode, r.Peer, r.Outcome, r.Reason, r.Frames)
	}
	return res
}

func (s *status) statusPage(w http.ResponseWriter, r *http.Request) {
	s.logger.Log("building status page")

	log, err := s.shortMemoryWriter.String(s.version + "\n")
	if err != nil {
		respondError(w, err)
		return
	}

	s.logger.Log("actually building status data")

	snap := s.tracker.Snapshot()
	data := &statusTemplateData{
		Version:   s.version,
		Mode:      snap.Mode,
		Active:    snap.Active,
		Recent:    snap.Recent,
		Handshake: snap.Handshake,
		Log:       log,
		CSRFField: csrf.TemplateField(r),
	}
	if h := snap.Handshake; h != nil && h.Error != "" {
		data.IsError = true
		data.Error = h.Device + ": " + h.Error
	}

	err = statusTemplate.Execute(w, data)
	if err != nil {
		respondError(w, err)
		return
	}
}

func respondError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}
