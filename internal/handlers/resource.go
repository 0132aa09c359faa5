package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResourceStore is the storage a Resource exposes over HTTP.
type ResourceStore[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Resource implements list/get/create/update/delete once for any entity.
// Feature handlers add their own routes next to it instead of overriding these.
type Resource[T any] struct {
	store    ResourceStore[T]
	logger   *zap.Logger
	selfOnly bool
}

// NewResource builds a Resource over store.
func NewResource[T any](store ResourceStore[T], logger *zap.Logger) *Resource[T] {
	return &Resource[T]{store: store, logger: logger}
}

// SelfOnly restricts update and delete to the caller's own id.
func (r *Resource[T]) SelfOnly() *Resource[T] {
	r.selfOnly = true
	return r
}

func (r *Resource[T]) allowWrite(c *gin.Context) bool {
	if !r.selfOnly || c.GetString("userID") == c.Param("id") {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "cannot modify another user"})
	return false
}

// Register mounts the resource routes on rg.
func (r *Resource[T]) Register(rg *gin.RouterGroup) {
	rg.GET("", r.List)
	rg.GET("/:id", r.Get)
	rg.POST("", r.Create)
	rg.PUT("/:id", r.Update)
	rg.DELETE("/:id", r.Delete)
}

func (r *Resource[T]) List(c *gin.Context) {
	items, err := r.store.List(c.Request.Context())
	if err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (r *Resource[T]) Get(c *gin.Context) {
	item, err := r.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (r *Resource[T]) Create(c *gin.Context) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := r.store.Create(c.Request.Context(), item)
	if err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (r *Resource[T]) Update(c *gin.Context) {
	if !r.allowWrite(c) {
		return
	}
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := r.store.Update(c.Request.Context(), c.Param("id"), item)
	if err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (r *Resource[T]) Delete(c *gin.Context) {
	if !r.allowWrite(c) {
		return
	}
	if err := r.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
