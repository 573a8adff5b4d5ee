package handler

import (
	"fmt"
	"net/http"

	"github.com/fieldservice/backend/internal/application/backup"
	"github.com/gin-gonic/gin"
)

// BackupHandler handles export and import of the full state
type BackupHandler struct {
	BaseHandler
	backups *backup.Service
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(backups *backup.Service) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// Export downloads a bundle of every collection
// GET /backup/export
func (h *BackupHandler) Export(c *gin.Context) {
	bundle, err := h.backups.Export(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	filename := fmt.Sprintf("fieldservice-backup-%s.json", bundle.ExportedAt.UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, bundle)
}

// Import replaces the full state with an uploaded bundle
// POST /backup/import
func (h *BackupHandler) Import(c *gin.Context) {
	var bundle backup.Bundle
	if !bindJSON(c, &bundle) {
		return
	}
	if err := h.backups.Import(c.Request.Context(), &bundle); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"imported": len(bundle.Data), "checksum": bundle.Checksum})
}

// Archive exports the state into the archive under :key
// POST /backup/archive/:key
func (h *BackupHandler) Archive(c *gin.Context) {
	key := c.Param("key")
	bundle, err := h.backups.ExportToArchive(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, gin.H{"key": key, "checksum": bundle.Checksum, "exported_at": bundle.ExportedAt})
}

// Restore imports the bundle stored in the archive under :key
// POST /backup/archive/:key/restore
func (h *BackupHandler) Restore(c *gin.Context) {
	key := c.Param("key")
	if err := h.backups.ImportFromArchive(c.Request.Context(), key); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"key": key, "restored": true})
}
