package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photofolio/internal/service"
	"go.uber.org/zap"
)

type uploadItemResponse struct {
	service.UploadItemResult
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Orphan    string `json:"orphan,omitempty"`
}

// AdminListPhotos 返回后台管理列表所需的全部照片
func (a *API) AdminListPhotos(c *gin.Context) {
	photos, err := a.photos.List(c.Request.Context(), 0)
	if err != nil {
		a.logger.Error("admin list photos", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to load photos.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": toPhotoResponses(photos), "total": len(photos)})
}

// UploadPhotos 处理批量上传请求（字段 "files"），所有文件共享同一组元数据。
// 每个文件单独返回结果，单个失败不影响其余文件。
func (a *API) UploadPhotos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Please select at least one image to upload.")
		return
	}

	input := service.UploadInput{
		Title:       formValue(form, "title"),
		Category:    formValue(form, "category"),
		AltText:     formValue(form, "altText"),
		Caption:     formValue(form, "caption"),
		Location:    formValue(form, "location"),
		Tags:        formValue(form, "tags"),
		Description: formValue(form, "description"),
		PostingDate: formValue(form, "postingDate"),
		PostingTime: formValue(form, "postingTime"),
	}
	for _, fh := range form.File["files"] {
		input.Files = append(input.Files, multipartUpload(fh))
	}

	progress := func(index int, fraction float64) {
		a.logger.Debug("upload progress", zap.Int("index", index), zap.Float64("fraction", fraction))
	}

	report, err := a.photos.Upload(c.Request.Context(), input, progress)
	if err != nil {
		a.respondServiceError(c, err, "Failed to upload photos.")
		return
	}

	items := make([]uploadItemResponse, 0, len(report.Items))
	for _, item := range report.Items {
		resp := uploadItemResponse{UploadItemResult: item}
		var (
			transfer *service.TransferError
			write    *service.WriteError
		)
		switch {
		case item.Err == nil:
		case errors.As(item.Err, &transfer):
			resp.Error = transfer.Message()
			resp.ErrorKind = string(transfer.Kind)
		case errors.As(item.Err, &write):
			resp.Error = write.Message()
			resp.Orphan = write.Orphan
		default:
			resp.Error = "Upload failed."
		}
		items = append(items, resp)
	}

	status := http.StatusCreated
	switch {
	case report.Succeeded() == 0:
		status = http.StatusBadGateway
	case report.Failed() > 0:
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"items":     items,
		"succeeded": report.Succeeded(),
		"failed":    report.Failed(),
	})
}

// UpdatePhoto 将编辑表单应用到已有照片
func (a *API) UpdatePhoto(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid photo ID.")
		return
	}

	var input service.EditInput
	if !bindJSON(c, &input, "Invalid request body.") {
		return
	}

	photo, err := a.photos.Update(c.Request.Context(), id, input)
	if err != nil {
		a.respondServiceError(c, err, "Failed to update photo.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo": photoResponse{Photo: *photo}})
}

// DeletePhoto 先删除记录再删除图片文件，记录已删除但文件删除失败时返回部分成功。
func (a *API) DeletePhoto(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid photo ID.")
		return
	}

	result, err := a.photos.Delete(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err, "Failed to delete photo.")
		return
	}

	body := gin.H{
		"message":     "Photo deleted.",
		"id":          result.Photo.ID,
		"blobDeleted": result.BlobDeleted,
	}
	if result.Partial() {
		a.logger.Warn("photo record deleted but blob remains", zap.String("id", result.Photo.ID), zap.Error(result.BlobErr))
		body["partial"] = true
		body["warning"] = "Photo record deleted, but the image file could not be removed from storage."
	}
	c.JSON(http.StatusOK, body)
}

// CountPhotos 供后台检测数据库连接使用
func (a *API) CountPhotos(c *gin.Context) {
	total, err := a.photos.Count(c.Request.Context())
	if err != nil {
		a.logger.Error("count photos", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "Database unavailable.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": total})
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func multipartUpload(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
