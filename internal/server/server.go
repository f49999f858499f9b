package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"imageseo/internal/models"
	"imageseo/internal/queue"
	"imageseo/internal/storage"
)

const maxUploadSize = 20 << 20 // 20 MB

type Server struct {
	cfg      *models.Config
	router   *gin.Engine
	db       *storage.Storage
	producer *queue.Producer
	log      *zap.Logger
}

func NewServer(cfg *models.Config, db *storage.Storage, producer *queue.Producer, log *zap.Logger) *Server {
	r := gin.Default()

	s := &Server{cfg: cfg, router: r, db: db, producer: producer, log: log}

	r.POST("/upload", s.handleUpload)
	r.POST("/bulk_process", s.handleBulkProcess)
	r.GET("/images", s.handleListImages)
	r.GET("/image/:id", s.handleGetImage)
	r.GET("/image/:id/file", s.handleGetImageFile)
	r.DELETE("/image/:id", s.handleDeleteImage)

	return s
}

func (s *Server) Start() error {
	return s.router.Run(s.cfg.ServerAddr)
}

type bulkProcessRequest struct {
	ImageIDs []uuid.UUID `json:"image_ids"`
}

type imageResponse struct {
	ID                string `json:"id"`
	OutputFormat      string `json:"output_format,omitempty"`
	ResizeWidth       int    `json:"resize_width,omitempty"`
	Quality           int    `json:"quality,omitempty"`
	SeoTerms          string `json:"seo_terms,omitempty"`
	Language          string `json:"language,omitempty"`
	AltText           string `json:"alt_text"`
	OriginalFilename  string `json:"original_filename"`
	ProcessedFilename string `json:"processed_filename,omitempty"`
	Processed         bool   `json:"processed"`
}

func toResponse(img *models.Image) imageResponse {
	return imageResponse{
		ID:                img.ID.String(),
		OutputFormat:      img.OutputFormat,
		ResizeWidth:       img.ResizeWidth,
		Quality:           img.Quality,
		SeoTerms:          img.SeoTerms,
		Language:          img.Language,
		AltText:           img.AltText,
		OriginalFilename:  img.OriginalFilename,
		ProcessedFilename: img.ProcessedFilename,
		Processed:         img.ProcessedPath != "",
	}
}

// handleUpload stores the original file and record, then enqueues the single
// image pipeline. Processing is asynchronous; the response only carries the id.
func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if file.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	img := models.Image{
		ID:               uuid.New(),
		OutputFormat:     strings.TrimSpace(c.PostForm("output_format")),
		SeoTerms:         strings.TrimSpace(c.PostForm("seo_terms")),
		Language:         strings.TrimSpace(c.PostForm("language")),
		OriginalFilename: filepath.Base(file.Filename),
		OriginalMime:     file.Header.Get("Content-Type"),
	}

	if v := c.PostForm("resize_width"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil || width <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "resize_width must be a positive integer"})
			return
		}
		img.ResizeWidth = width
	}
	if v := c.PostForm("quality"); v != "" {
		quality, err := strconv.Atoi(v)
		if err != nil || quality < 1 || quality > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quality must be between 1 and 100"})
			return
		}
		img.Quality = quality
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	if err := s.db.SaveImage(c.Request.Context(), &img, data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	if err := s.producer.PublishProcessImage(c.Request.Context(), img.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	s.log.Info("image uploaded and enqueued",
		zap.String("image_id", img.ID.String()),
		zap.String("filename", img.OriginalFilename),
		zap.Int64("size", file.Size))

	c.JSON(http.StatusOK, gin.H{"id": img.ID.String()})
}

func (s *Server) handleBulkProcess(c *gin.Context) {
	const op = "server.handleBulkProcess"

	var req bulkProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.ImageIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please select at least one image"})
		return
	}

	if err := s.producer.PublishBulkDescribe(c.Request.Context(), req.ImageIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"count": len(req.ImageIDs)})
}

func (s *Server) handleListImages(c *gin.Context) {
	const op = "server.handleListImages"

	imgs, err := s.db.ListImages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	resp := make([]imageResponse, 0, len(imgs))
	for _, img := range imgs {
		resp = append(resp, toResponse(img))
	}
	c.JSON(http.StatusOK, gin.H{"images": resp})
}

func (s *Server) handleGetImage(c *gin.Context) {
	const op = "server.handleGetImage"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	img, err := s.db.GetImage(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.JSON(http.StatusOK, toResponse(img))
}

func (s *Server) handleGetImageFile(c *gin.Context) {
	const op = "server.handleGetImageFile"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	img, err := s.db.GetImage(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	if img.ProcessedPath == "" {
		c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
		return
	}
	c.FileAttachment(img.ProcessedPath, img.ProcessedFilename)
}

// handleDeleteImage removes the record and its blobs. In-flight tasks against
// the deleted record complete as no-ops.
func (s *Server) handleDeleteImage(c *gin.Context) {
	const op = "server.handleDeleteImage"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	if err := s.db.DeleteImage(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.Status(http.StatusNoContent)
}
