package micromanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/micromanager/gateway"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	RouteList     = "/containers/list"
	RouteNewImage = "/new/image"
	RouteNewApp   = "/new/container"
	RouteEdit     = "/edit/container"
	RouteStart    = "/start/container"
	RouteStop     = "/stop/container"
	RouteRemove   = "/remove/container"

	AppFileName    = "app.py"
	appContentType = "text/x-python"

	UnknownType   = "Unknown"
	NoDescription = "No description"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Microservice is a deployed container as shown on the dashboard.
type Microservice struct {
	ID          string
	Name        string
	Type        string
	Status      Status
	Description string
	UpdatedAt   time.Time
	EndpointURL string
}

func (m Microservice) Running() bool { return m.Status == StatusRunning }

// NewMicroservice is the create/edit form. Code is the content of app.py.
type NewMicroservice struct {
	Name        string
	Type        string
	Description string
	Code        []byte
}

func (n NewMicroservice) validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return errors.New("name is required")
	}
	if len(bytes.TrimSpace(n.Code)) == 0 {
		return errors.New("code is required")
	}
	return nil
}

// Summary holds the dashboard stat cards.
type Summary struct {
	Total   int
	Running int
	Stopped int
	ByType  map[string]int
}

// Types returns the keys of ByType in alphabetical order.
func (s Summary) Types() []string {
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// APIError is a non-2xx response from a protected endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("micromanager: http %d", e.Status)
	}
	return fmt.Sprintf("micromanager: http %d: %s", e.Status, e.Message)
}

func (e APIError) StatusCode() int { return e.Status }

type containerPayload struct {
	ContainerName string `json:"containerName"`
	Type          string `json:"type"`
	Status        bool   `json:"status"`
	Description   string `json:"description"`
	UpdatedAt     string `json:"updatedAt"`
}

type listResponse struct {
	Containers []containerPayload `json:"containers"`
}

type imageRequest struct {
	Image       string `json:"image"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// List returns every microservice in server order. IDs are 1-based positions.
func (c *Client) List(ctx context.Context) ([]Microservice, error) {
	resp, err := c.call(ctx, gateway.Request{Method: http.MethodGet, Resource: RouteList})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.List]")
	}
	var payload listResponse
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, errors.Wrap(err, "[Client.List] decode")
	}

	base := strings.TrimSuffix(c.apiURL, "/api")
	services := make([]Microservice, 0, len(payload.Containers))
	for i, item := range payload.Containers {
		services = append(services, c.toMicroservice(i, item, base))
	}
	return services, nil
}

func (c *Client) toMicroservice(i int, item containerPayload, base string) Microservice {
	m := Microservice{
		ID:          strconv.Itoa(i + 1),
		Name:        item.ContainerName,
		Type:        item.Type,
		Status:      StatusStopped,
		Description: item.Description,
		EndpointURL: base + "/" + item.ContainerName,
	}
	if m.Type == "" {
		m.Type = UnknownType
	}
	if m.Description == "" {
		m.Description = NoDescription
	}
	if item.Status {
		m.Status = StatusRunning
	}
	if item.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, item.UpdatedAt); err == nil {
			m.UpdatedAt = t
		} else {
			log.Debug().Str("container", item.ContainerName).Str("updatedAt", item.UpdatedAt).Msg("unparsable updatedAt")
		}
	}
	return m
}

// Create uploads the code as a new image, then creates its container.
func (c *Client) Create(ctx context.Context, svc NewMicroservice) error {
	if err := svc.validate(); err != nil {
		return errors.Wrap(err, "[Client.Create]")
	}

	body, contentType, err := multipartForm(svc.Code, map[string]string{"name": svc.Name})
	if err != nil {
		return errors.Wrap(err, "[Client.Create] build upload")
	}
	if _, err := c.call(ctx, gateway.Request{
		Method:   http.MethodPost,
		Resource: RouteNewImage,
		Header:   http.Header{"Content-Type": {contentType}},
		Body:     body,
	}); err != nil {
		return errors.Wrap(err, "[Client.Create] upload image")
	}

	if _, err := c.postJSON(ctx, RouteNewApp, imageRequest{Image: svc.Name, Type: svc.Type, Description: svc.Description}); err != nil {
		return errors.Wrap(err, "[Client.Create] create container")
	}
	log.Info().Str("container", svc.Name).Msg("microservice created")
	return nil
}

// Edit replaces the code and metadata of an existing microservice.
func (c *Client) Edit(ctx context.Context, svc NewMicroservice) error {
	if err := svc.validate(); err != nil {
		return errors.Wrap(err, "[Client.Edit]")
	}
	body, contentType, err := multipartForm(svc.Code, map[string]string{
		"name":        svc.Name,
		"type":        svc.Type,
		"description": svc.Description,
	})
	if err != nil {
		return errors.Wrap(err, "[Client.Edit] build upload")
	}
	if _, err := c.call(ctx, gateway.Request{
		Method:   http.MethodPost,
		Resource: RouteEdit,
		Header:   http.Header{"Content-Type": {contentType}},
		Body:     body,
	}); err != nil {
		return errors.Wrap(err, "[Client.Edit]")
	}
	return nil
}

func (c *Client) Start(ctx context.Context, name string) error {
	if _, err := c.postJSON(ctx, RouteStart, imageRequest{Image: name}); err != nil {
		return errors.Wrapf(err, "[Client.Start] %s", name)
	}
	return nil
}

func (c *Client) Stop(ctx context.Context, name string) error {
	if _, err := c.postJSON(ctx, RouteStop, imageRequest{Image: name}); err != nil {
		return errors.Wrapf(err, "[Client.Stop] %s", name)
	}
	return nil
}

// Toggle stops a running microservice and starts a stopped one.
func (c *Client) Toggle(ctx context.Context, svc Microservice) error {
	if svc.Running() {
		return c.Stop(ctx, svc.Name)
	}
	return c.Start(ctx, svc.Name)
}

// Delete stops the microservice, ignoring the outcome, then removes it. A stop that ended
// the session aborts the delete.
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.Stop(ctx, name); err != nil {
		if gateway.SessionEnded(err) {
			return errors.Wrap(err, "[Client.Delete]")
		}
		log.Debug().Err(err).Str("container", name).Msg("stop before remove failed")
	}
	if _, err := c.postJSON(ctx, RouteRemove, imageRequest{Image: name}); err != nil {
		return errors.Wrapf(err, "[Client.Delete] %s", name)
	}
	log.Info().Str("container", name).Msg("microservice removed")
	return nil
}

func (c *Client) Summary(ctx context.Context) (Summary, error) {
	services, err := c.List(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "[Client.Summary]")
	}
	return Summarize(services), nil
}

func Summarize(services []Microservice) Summary {
	s := Summary{Total: len(services), ByType: make(map[string]int)}
	for _, svc := range services {
		if svc.Running() {
			s.Running++
		} else {
			s.Stopped++
		}
		s.ByType[svc.Type]++
	}
	return s
}

func (c *Client) postJSON(ctx context.Context, route string, payload any) (*gateway.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, gateway.Request{
		Method:   http.MethodPost,
		Resource: route,
		Header:   http.Header{"Content-Type": {"application/json"}},
		Body:     body,
	})
}

// call sends req through the gateway and turns non-2xx responses into APIError.
func (c *Client) call(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	resp, err := c.gw.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, APIError{Status: resp.StatusCode, Message: strings.TrimSpace(errorText(resp.Body))}
	}
	return resp, nil
}

func errorText(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return string(body)
}

// multipartForm encodes code as the app.py file part followed by the given fields.
func multipartForm(code []byte, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="app"; filename="%s"`, AppFileName))
	h.Set("Content-Type", appContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(code); err != nil {
		return nil, "", err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
