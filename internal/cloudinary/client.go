// Package cloudinary предоставляет клиент для загрузки изображений товаров
// в Cloudinary через unsigned upload.
package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL — адрес API Cloudinary.
const DefaultBaseURL = "https://api.cloudinary.com"

// MaxFileSize — максимальный размер одного изображения. Файлы больше
// отклоняются до обращения к сети.
const MaxFileSize = 5 << 20

const uploadFolder = "zona-botin/products"

// Ошибки проверки файла и конфигурации.
var (
	ErrNotConfigured = errors.New("cloudinary cloud name or upload preset not configured")
	ErrNotAnImage    = errors.New("file is not an image")
	ErrFileTooLarge  = errors.New("file exceeds 5MB limit")
)

// Client инкапсулирует HTTP-взаимодействие с Cloudinary.
type Client struct {
	baseURL      string
	cloudName    string
	uploadPreset string
	httpClient   *http.Client
}

// UploadResult — результат загрузки: публичный URL и идентификатор
// изображения в хранилище.
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// NewClient создаёт клиент Cloudinary. Пустой baseURL заменяется адресом
// боевого API; тесты подставляют адрес httptest-сервера.
func NewClient(cloudName, uploadPreset, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Upload загружает одно изображение. Тип и размер файла проверяются до
// отправки.
func (c *Client) Upload(ctx context.Context, filename, contentType string, data []byte) (*UploadResult, error) {
	if c == nil || c.cloudName == "" || c.uploadPreset == "" {
		return nil, ErrNotConfigured
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotAnImage, filename)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, filename)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	if err := mw.WriteField("upload_preset", c.uploadPreset); err != nil {
		return nil, fmt.Errorf("write upload preset: %w", err)
	}
	if err := mw.WriteField("folder", uploadFolder); err != nil {
		return nil, fmt.Errorf("write folder: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/v1_1/%s/image/upload", c.baseURL, c.cloudName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload image: unexpected status %d", resp.StatusCode)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &UploadResult{URL: result.SecureURL, PublicID: result.PublicID}, nil
}
