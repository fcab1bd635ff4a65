package doerfake

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/jrsteele09/micromanager/gateway"
)

var _ gateway.Doer = (*FakeDoer)(nil)

// RecordedCall is a request seen by FakeDoer, with its body already read.
type RecordedCall struct {
	Method        string
	Path          string
	Authorization string
	Header        http.Header
	Body          []byte
}

// FakeDoer answers requests from per-path handlers without a network.
type FakeDoer struct {
	handlers map[string]http.HandlerFunc
	errs     map[string]error
	calls    []RecordedCall
	lock     sync.Mutex
}

func NewFakeDoer() *FakeDoer {
	return &FakeDoer{
		handlers: make(map[string]http.HandlerFunc),
		errs:     make(map[string]error),
	}
}

// Handle registers the handler for a URL path.
func (d *FakeDoer) Handle(path string, h http.HandlerFunc) *FakeDoer {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.handlers[path] = h
	return d
}

// Fail makes requests for path return err instead of a response.
func (d *FakeDoer) Fail(path string, err error) *FakeDoer {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.errs[path] = err
	return d
}

func (d *FakeDoer) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
	}

	d.lock.Lock()
	d.calls = append(d.calls, RecordedCall{
		Method:        req.Method,
		Path:          req.URL.Path,
		Authorization: req.Header.Get("Authorization"),
		Header:        req.Header.Clone(),
		Body:          body,
	})
	h, ok := d.handlers[req.URL.Path]
	failErr := d.errs[req.URL.Path]
	d.lock.Unlock()

	if failErr != nil {
		return nil, failErr
	}
	if !ok {
		return nil, errors.New("doerfake: no handler for " + req.URL.Path)
	}

	replay := req.Clone(req.Context())
	replay.Body = io.NopCloser(bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, replay)
	return rec.Result(), nil
}

// Calls returns every recorded request in order.
func (d *FakeDoer) Calls() []RecordedCall {
	d.lock.Lock()
	defer d.lock.Unlock()
	out := make([]RecordedCall, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallsTo returns the recorded requests for one path.
func (d *FakeDoer) CallsTo(path string) []RecordedCall {
	var out []RecordedCall
	for _, c := range d.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// JSON returns a handler that writes status and body as application/json.
func JSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// ByToken dispatches on the Authorization header; unknown tokens get 401.
func ByToken(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Header.Get("Authorization")]; ok {
			h(w, r)
			return
		}
		JSON(http.StatusUnauthorized, `{"error":"unauthorized"}`)(w, r)
	}
}
