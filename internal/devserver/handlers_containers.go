package devserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/micromanager/internal/errors"
	"github.com/jrsteele09/micromanager/internal/devserver/registry"
	"github.com/jrsteele09/micromanager/internal/utils"
	"github.com/rs/zerolog/log"
)

const (
	maxUploadBytes = 10 << 20
	appFormField   = "app"
)

type containerJSON struct {
	ContainerName string `json:"containerName"`
	Type          string `json:"type"`
	Status        bool   `json:"status"`
	Description   string `json:"description"`
	UpdatedAt     string `json:"updatedAt"`
}

type listContainersResponse struct {
	Containers []containerJSON `json:"containers"`
}

type imageRequest struct {
	Image       string `json:"image"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func toContainerJSON(c registry.Container) containerJSON {
	return containerJSON{
		ContainerName: c.Name,
		Type:          c.Type,
		Status:        c.Running,
		Description:   c.Description,
		UpdatedAt:     c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) ListContainersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := s.registry.List()
		resp := listContainersResponse{Containers: make([]containerJSON, 0, len(list))}
		for _, c := range list {
			resp.Containers = append(resp.Containers, toContainerJSON(c))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// readApp parses a multipart upload and returns the app.py part and the form.
func readApp(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "multipart form")
	}
	file, _, err := r.FormFile(appFormField)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "missing %q file", appFormField)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (s *Server) NewImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := readApp(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		name := strings.TrimSpace(r.FormValue("name"))
		if err := s.registry.PutImage(name, code); err != nil {
			writeDomainError(w, err)
			return
		}
		log.Info().Str("image", name).Int("bytes", len(code)).Msg("image uploaded")
		writeJSON(w, http.StatusCreated, map[string]string{"image": name})
	}
}

func (s *Server) NewContainerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeImageRequest(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		c, err := s.registry.CreateContainer(req.Image, req.Type, req.Description)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toContainerJSON(c))
	}
}

func (s *Server) EditContainerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := readApp(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		c, err := s.registry.Edit(strings.TrimSpace(r.FormValue("name")), registry.Patch{
			Type:        utils.NonEmpty(r.FormValue("type")),
			Description: utils.NonEmpty(r.FormValue("description")),
			Code:        code,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toContainerJSON(c))
	}
}

func (s *Server) SetRunningHandler(running bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeImageRequest(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		c, err := s.registry.SetRunning(req.Image, running)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toContainerJSON(c))
	}
}

func (s *Server) RemoveContainerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeImageRequest(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := s.registry.Remove(req.Image); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeImageRequest(r *http.Request) (imageRequest, error) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return imageRequest{}, apperrors.Wrapf(apperrors.ErrInvalidRequest, "decode body")
	}
	req.Image = strings.TrimSpace(req.Image)
	if req.Image == "" {
		return imageRequest{}, apperrors.Wrapf(apperrors.ErrInvalidRequest, "image is required")
	}
	return req, nil
}
