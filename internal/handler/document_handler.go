package handler

import (
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errcode"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/response"
	"github.com/brunoamorim39/greasemonkey-ai/internal/service"
)

type DocumentHandler struct {
	documents      *service.DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(documents *service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUploadBytes: maxUploadBytes}
}

// Upload takes a multipart form with the manual under "file" and optional
// title, document_type, make, model, year and comma separated tags.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, oversizeMessage(h.maxUploadBytes))
		return
	}
	docType, err := model.ParseDocumentType(c.PostForm("document_type"))
	if err != nil {
		response.Error(c, errcode.ErrInvalid, err.Error())
		return
	}
	year := 0
	if value := strings.TrimSpace(c.PostForm("year")); value != "" {
		year, err = strconv.Atoi(value)
		if err != nil {
			response.Error(c, errcode.ErrInvalid, "year must be a number")
			return
		}
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	content, err := io.ReadAll(io.LimitReader(opened, file.Size+1))
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read file")
		return
	}

	doc, err := h.documents.Upload(c.Request.Context(), getUserID(c), service.DocumentInput{
		Title:        c.PostForm("title"),
		Filename:     file.Filename,
		DocumentType: docType,
		Vehicle: model.VehicleInfo{
			Make:  c.PostForm("make"),
			Model: c.PostForm("model"),
			Year:  year,
		},
		Tags:    splitTags(c.PostForm("tags")),
		Content: content,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// oversizeMessage names the upload cap in whole MiB, rounding a sub-MiB cap up.
func oversizeMessage(limit int64) string {
	mb := limit >> 20
	if limit > 0 && mb == 0 {
		mb = 1
	}
	return "file exceeds " + strconv.FormatInt(mb, 10) + "MB"
}
