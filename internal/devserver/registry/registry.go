// Package registry is the dev server's in-memory stand-in for the container runtime.
package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/micromanager/internal/errors"
	"github.com/jrsteele09/micromanager/internal/utils"
)

// Container is a deployed microservice built from an uploaded image.
type Container struct {
	Name        string
	Type        string
	Description string
	Running     bool
	Code        []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Patch holds the fields of an edit. Nil fields are left unchanged.
type Patch struct {
	Type        *string
	Description *string
	Code        []byte
}

type Registry struct {
	images     map[string][]byte
	containers map[string]*Container
	nowFunc    func() time.Time
	lock       sync.RWMutex
}

func New(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		images:     make(map[string][]byte),
		containers: make(map[string]*Container),
		nowFunc:    now,
	}
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/ \t\n")
}

// PutImage stores (or replaces) the code for an image.
func (r *Registry) PutImage(name string, code []byte) error {
	if !validName(name) || len(code) == 0 {
		return apperrors.ErrInvalidRequest
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.images[name] = append([]byte(nil), code...)
	return nil
}

// CreateContainer starts a container from an uploaded image.
func (r *Registry) CreateContainer(image, kind, description string) (Container, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	code, ok := r.images[image]
	if !ok {
		return Container{}, apperrors.Wrapf(apperrors.ErrNotFound, "image %s", image)
	}
	if _, exists := r.containers[image]; exists {
		return Container{}, apperrors.ErrServiceExists
	}
	now := r.nowFunc()
	c := &Container{
		Name:        image,
		Type:        kind,
		Description: description,
		Running:     true,
		Code:        code,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.containers[image] = c
	return *c, nil
}

func (r *Registry) Edit(name string, patch Patch) (Container, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.containers[name]
	if !ok {
		return Container{}, apperrors.ErrServiceNotFound
	}
	if len(patch.Code) > 0 {
		c.Code = append([]byte(nil), patch.Code...)
		r.images[name] = c.Code
	}
	if patch.Type != nil {
		c.Type = utils.Value(patch.Type)
	}
	if patch.Description != nil {
		c.Description = utils.Value(patch.Description)
	}
	c.UpdatedAt = r.nowFunc()
	return *c, nil
}

// SetRunning starts or stops a container. It is idempotent.
func (r *Registry) SetRunning(name string, running bool) (Container, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.containers[name]
	if !ok {
		return Container{}, apperrors.ErrServiceNotFound
	}
	if c.Running != running {
		c.Running = running
		c.UpdatedAt = r.nowFunc()
	}
	return *c, nil
}

// Remove deletes a stopped container and its image.
func (r *Registry) Remove(name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.containers[name]
	if !ok {
		return apperrors.ErrServiceNotFound
	}
	if c.Running {
		return apperrors.ErrServiceRunning
	}
	delete(r.containers, name)
	delete(r.images, name)
	return nil
}

// List returns containers oldest first.
func (r *Registry) List() []Container {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]Container, 0, len(r.containers))
	for _, c := range r.containers {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
