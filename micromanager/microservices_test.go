package micromanager_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/micromanager/gateway"
	"github.com/jrsteele09/micromanager/gateway/doerfake"
	"github.com/jrsteele09/micromanager/micromanager"
	"github.com/jrsteele09/micromanager/session"
	"github.com/jrsteele09/micromanager/session/storefake"
	"github.com/stretchr/testify/require"
)

const (
	apiURL    = "http://mm.test/api"
	loginPath = "/api/auth/login"
)

type testFixture struct {
	doer   *doerfake.FakeDoer
	store  *storefake.FakeStore
	client *micromanager.Client
	events []gateway.Event
	lock   sync.Mutex
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		doer: doerfake.NewFakeDoer(),
		store: storefake.NewFakeStoreWith(map[string]string{
			session.KeyAccessToken:  "A1",
			session.KeyRefreshToken: "R1",
		}),
	}
	client, err := micromanager.New(micromanager.Config{
		APIURL: apiURL,
		Doer:   f.doer,
		Store:  f.store,
		Gateway: []gateway.Option{gateway.WithListener(gateway.ListenerFunc(func(e gateway.Event) {
			f.lock.Lock()
			defer f.lock.Unlock()
			f.events = append(f.events, e)
		}))},
	})
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *testFixture) sessionEvents() []gateway.Event {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]gateway.Event(nil), f.events...)
}

func imageOf(t *testing.T, body []byte) string {
	t.Helper()
	var req struct {
		Image string `json:"image"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	return req.Image
}

// parseUpload decodes a recorded multipart body into its fields and the app file.
func parseUpload(t *testing.T, call doerfake.RecordedCall) (map[string]string, string, string) {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(call.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	fields := map[string]string{}
	var code, fileName string
	r := multipart.NewReader(bytes.NewReader(call.Body), params["boundary"])
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		if part.FormName() == "app" {
			code, fileName = string(data), part.FileName()
			require.Equal(t, "text/x-python", part.Header.Get("Content-Type"))
			continue
		}
		fields[part.FormName()] = string(data)
	}
	return fields, code, fileName
}

func TestNew_Validation(t *testing.T) {
	_, err := micromanager.New(micromanager.Config{APIURL: apiURL})
	require.ErrorContains(t, err, "session store is required")

	_, err = micromanager.New(micromanager.Config{APIURL: "nope", Store: storefake.NewFakeStore()})
	require.Error(t, err)
}

func TestList(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle("/api/containers/list", doerfake.JSON(http.StatusOK, `{"containers":[
		{"containerName":"billing","type":"api","status":true,"description":"Invoices","updatedAt":"2025-03-01T09:00:00Z"},
		{"containerName":"worker","type":"","status":false,"description":"","updatedAt":"garbage"}
	]}`))

	services, err := f.client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)

	require.Equal(t, micromanager.Microservice{
		ID:          "1",
		Name:        "billing",
		Type:        "api",
		Status:      micromanager.StatusRunning,
		Description: "Invoices",
		UpdatedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		EndpointURL: "http://mm.test/billing",
	}, services[0])

	require.Equal(t, "2", services[1].ID)
	require.Equal(t, micromanager.UnknownType, services[1].Type)
	require.Equal(t, micromanager.NoDescription, services[1].Description)
	require.Equal(t, micromanager.StatusStopped, services[1].Status)
	require.True(t, services[1].UpdatedAt.IsZero())

	require.Equal(t, "Bearer A1", f.doer.Calls()[0].Authorization)
}

func TestList_EmptyAndMissingArray(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle("/api/containers/list", doerfake.JSON(http.StatusOK, `{}`))

	services, err := f.client.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, services)
}

func TestAPIError(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle("/api/containers/list", doerfake.JSON(http.StatusInternalServerError, `{"error":"docker unavailable"}`))

	_, err := f.client.List(context.Background())
	var apiErr micromanager.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "docker unavailable", apiErr.Message)
	require.Empty(t, f.sessionEvents())
}

func TestCreate(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle("/api/new/image", doerfake.JSON(http.StatusCreated, `{}`))
	f.doer.Handle("/api/new/container", doerfake.JSON(http.StatusCreated, `{}`))

	err := f.client.Create(context.Background(), micromanager.NewMicroservice{
		Name: "billing", Type: "api", Description: "Invoices", Code: []byte("print('hi')"),
	})
	require.NoError(t, err)

	calls := f.doer.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "/api/new/image", calls[0].Path)
	fields, code, fileName := parseUpload(t, calls[0])
	require.Equal(t, map[string]string{"name": "billing"}, fields)
	require.Equal(t, "print('hi')", code)
	require.Equal(t, "app.py", fileName)

	require.Equal(t, "/api/new/container", calls[1].Path)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(calls[1].Body, &payload))
	require.Equal(t, map[string]string{"image": "billing", "type": "api", "description": "Invoices"}, payload)
}

func TestCreate_StopsWhenUploadFails(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle("/api/new/image", doerfake.JSON(http.StatusBadRequest, `{"error":"bad code"}`))

	err := f.client.Create(context.Background(), micromanager.NewMicroservice{Name: "billing", Code: []byte("x")})
	require.ErrorContains(t, err, "bad code")
	require.Len(t, f.doer.Calls(), 1)
}

func TestCreate_Validation(t *testing.T) {
	f := setupTestFixture(t)
	require.ErrorContains(t, f.client.Create(context.Background(), micromanager.NewMicroservice{Code: []byte("x")}), "name is required")
	require.ErrorContains(t, f.client.Create(context.Background(), micromanager.NewMicroservice{Name: "x"}), "code is required")
	require.Empty(t, f.doer.Calls())
}

func TestEdit(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle("/api/edit/container", doerfake.JSON(http.StatusOK, `{}`))

	err := f.client.Edit(context.Background(), micromanager.NewMicroservice{
		Name: "billing", Type: "worker", Description: "Nightly", Code: []byte("v2"),
	})
	require.NoError(t, err)

	fields, code, _ := parseUpload(t, f.doer.Calls()[0])
	require.Equal(t, map[string]string{"name": "billing", "type": "worker", "description": "Nightly"}, fields)
	require.Equal(t, "v2", code)
}

func TestToggle(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle("/api/start/container", doerfake.JSON(http.StatusOK, `{}`))
	f.doer.Handle("/api/stop/container", doerfake.JSON(http.StatusOK, `{}`))

	require.NoError(t, f.client.Toggle(context.Background(), micromanager.Microservice{Name: "a", Status: micromanager.StatusRunning}))
	require.NoError(t, f.client.Toggle(context.Background(), micromanager.Microservice{Name: "b", Status: micromanager.StatusStopped}))

	calls := f.doer.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "/api/stop/container", calls[0].Path)
	require.Equal(t, "a", imageOf(t, calls[0].Body))
	require.Equal(t, "/api/start/container", calls[1].Path)
	require.Equal(t, "b", imageOf(t, calls[1].Body))
}

func TestDelete(t *testing.T) {
	t.Run("stops then removes", func(t *testing.T) {
		f := setupTestFixture(t)
		f.doer.Handle("/api/stop/container", doerfake.JSON(http.StatusOK, `{}`))
		f.doer.Handle("/api/remove/container", doerfake.JSON(http.StatusNoContent, ``))

		require.NoError(t, f.client.Delete(context.Background(), "billing"))
		calls := f.doer.Calls()
		require.Len(t, calls, 2)
		require.Equal(t, "/api/stop/container", calls[0].Path)
		require.Equal(t, "/api/remove/container", calls[1].Path)
		require.Equal(t, "billing", imageOf(t, calls[1].Body))
	})

	t.Run("stop failure is ignored", func(t *testing.T) {
		f := setupTestFixture(t)
		f.doer.Handle("/api/stop/container", doerfake.JSON(http.StatusNotFound, `{"error":"gone"}`))
		f.doer.Handle("/api/remove/container", doerfake.JSON(http.StatusNoContent, ``))

		require.NoError(t, f.client.Delete(context.Background(), "billing"))
		require.Len(t, f.doer.Calls(), 2)
	})

	t.Run("ended session aborts", func(t *testing.T) {
		f := setupTestFixture(t)
		f.doer.Handle("/api/stop/container", doerfake.JSON(http.StatusUnauthorized, `{}`))

		err := f.client.Delete(context.Background(), "billing")
		require.ErrorIs(t, err, gateway.ErrReloginUnavailable)
		require.Len(t, f.doer.Calls(), 1)
		require.Len(t, f.sessionEvents(), 1)
		require.Empty(t, f.store.Snapshot())
	})
}

func TestSummary(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle("/api/containers/list", doerfake.JSON(http.StatusOK, `{"containers":[
		{"containerName":"a","type":"api","status":true},
		{"containerName":"b","type":"api","status":false},
		{"containerName":"c","type":"worker","status":true},
		{"containerName":"d","status":false}
	]}`))

	s, err := f.client.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, s.Total)
	require.Equal(t, 2, s.Running)
	require.Equal(t, 2, s.Stopped)
	require.Equal(t, map[string]int{"api": 2, "worker": 1, micromanager.UnknownType: 1}, s.ByType)
	require.Equal(t, []string{"Unknown", "api", "worker"}, s.Types())
}

func TestLoginAndLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle(loginPath, doerfake.JSON(http.StatusOK, `{"accessToken":"A9","refreshToken":"R9","user":{"name":"Jane","email":"jane@example.com"}}`))

	user, err := f.client.Login(context.Background(), " jane@example.com ", "password1")
	require.NoError(t, err)
	require.Equal(t, "Jane", user.Name)

	snap := f.store.Snapshot()
	require.Equal(t, "A9", snap[session.KeyAccessToken])
	require.Equal(t, "R9", snap[session.KeyRefreshToken])
	require.JSONEq(t, `{"name":"Jane","email":"jane@example.com"}`, snap[session.KeyUser])

	got, _, ok, err := f.client.Whoami()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "jane@example.com", got.Email)

	f.client.Logout()
	require.Empty(t, f.store.Snapshot())
	events := f.sessionEvents()
	require.Len(t, events, 1)
	require.Equal(t, gateway.EventSignedOut, events[0].Kind)

	_, _, ok, err = f.client.Whoami()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLogin_Failure(t *testing.T) {
	f := setupTestFixture(t)
	f.doer.Handle(loginPath, doerfake.JSON(http.StatusUnauthorized, `{"error":"invalid credentials"}`))

	_, err := f.client.Login(context.Background(), "jane@example.com", "nope")
	require.ErrorContains(t, err, "invalid credentials")
	require.Equal(t, "A1", f.store.Snapshot()[session.KeyAccessToken], "a failed login leaves the session alone")
}
