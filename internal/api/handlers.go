package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"piapi/internal/command"
)

// messageResponse is the body of every message operation.
type messageResponse struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Args      map[string]string `json:"args"`
	Header    map[string]string `json:"header"`
	Message   string            `json:"message"`
	X         *int              `json:"x"`
	Letter    *string           `json:"letter,omitempty"`
	Version   uint64            `json:"version"`
	RequestID string            `json:"request_id"`
}

type errorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// ── message operations ───────────────────────────────────────────────

func (s *Server) handleGetAll(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, command.GetAll)
}

func (s *Server) handleGetChar(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, command.GetChar)
}

func (s *Server) handleReplaceAll(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, command.ReplaceAll)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, command.Insert)
}

func (s *Server) handleReplaceChar(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, command.ReplaceChar)
}

func (s *Server) handleDeleteChar(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, command.DeleteChar)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, command.DeleteAll)
}

// execute decodes, runs and encodes one command.  Decode failures are
// answered with 400 without reaching the router.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, verb command.Verb) {
	id := RequestID(r.Context())

	cmd, err := decodeCommand(r, verb)
	if err != nil {
		s.metrics.BadRequest()
		s.logger.Verbose("%s: %v id=%s", verb, err, id)
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error(), RequestID: id})
		return
	}

	res := s.router.Execute(cmd)
	switch res.Status {
	case command.NoContent:
		w.WriteHeader(http.StatusNoContent)
		return
	case command.BadRequest:
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: res.Err.Error(), RequestID: id})
		return
	}

	resp := messageResponse{
		Method:    r.Method,
		URL:       requestURL(r),
		Args:      firstValues(r.URL.Query()),
		Header:    flattenHeader(r),
		Message:   res.Value,
		Version:   res.Version,
		RequestID: id,
	}
	if cmd.HasIndex {
		x := cmd.Index
		resp.X = &x
	}
	switch {
	case res.HasChar:
		l := string(res.Char)
		resp.Letter = &l
	case verb == command.ReplaceChar:
		l := cmd.Payload
		resp.Letter = &l
	}
	writeJSON(w, res.Status.HTTPCode(), resp)
}

// handleWelcomeText answers with the bare message.
func (s *Server) handleWelcomeText(w http.ResponseWriter, r *http.Request) {
	res := s.router.Execute(command.Command{Verb: command.GetAll})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(res.Value)) //nolint:errcheck
}

// ── diagnostics ──────────────────────────────────────────────────────

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Hello, World!\n")) //nolint:errcheck
}

type echoResponse struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Path    *string           `json:"path"`
	Args    map[string]string `json:"args"`
	Headers map[string]string `json:"headers"`
	Post    *echoPost         `json:"POST,omitempty"`
}

type echoPost struct {
	Data interface{} `json:"data"`
}

// handleEcho reflects the request back.  It never touches the message.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	resp := echoResponse{
		Method:  r.Method,
		URL:     requestURL(r),
		Args:    firstValues(r.URL.Query()),
		Headers: flattenHeader(r),
	}
	if p, ok := mux.Vars(r)["path"]; ok {
		resp.Path = &p
	}
	if r.Method == http.MethodPost {
		resp.Post = &echoPost{Data: decodeAny(r)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

const notFoundPage = `<!DOCTYPE html>
<html>
<head><title>404 Not Found</title></head>
<body>
<h1>Not Found</h1>
<p>The requested URL was not found on the server.</p>
</body>
</html>
`

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(notFoundPage)) //nolint:errcheck
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Message:   r.Method + " is not allowed on " + r.URL.Path,
		RequestID: RequestID(r.Context()),
	})
}

// ── helpers ──────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func firstValues(q map[string][]string) map[string]string {
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// flattenHeader joins repeated headers.  net/http moves Host out of
// the header map; it is put back.
func flattenHeader(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		out[k] = strings.Join(v, ", ")
	}
	if r.Host != "" {
		out["Host"] = r.Host
	}
	return out
}
