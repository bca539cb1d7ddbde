package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxUploadSize caps a single multipart file.
const MaxUploadSize = 50 * 1024 * 1024

var (
	ErrImageType  = errors.New("only JPG, JPEG, PNG, GIF and WEBP images are supported")
	ErrScriptType = errors.New("unsupported script file type")
	ErrTooLarge   = errors.New("file exceeds the 50 MB limit")
	ErrEmptyFile  = errors.New("file is empty")
)

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	// SVG stays out: it can carry script.
}

var allowedImageMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var allowedScriptExt = map[string]bool{
	".lua":  true,
	".luac": true,
	".js":   true,
	".ts":   true,
	".py":   true,
	".ahk":  true,
	".txt":  true,
	".json": true,
	".zip":  true,
	".rar":  true,
	".7z":   true,
}

// ValidateImage checks the extension and the sniffed head bytes, returning the detected mime.
func ValidateImage(filename string, size int64, head []byte) (string, error) {
	if err := checkSize(size); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExt[ext] {
		return "", ErrImageType
	}

	detected := http.DetectContentType(head)
	if allowedImageMime[detected] {
		return detected, nil
	}
	return "", ErrImageType
}

// ValidateScriptFile accepts script sources and archives by extension.
func ValidateScriptFile(filename string, size int64, head []byte) error {
	if err := checkSize(size); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedScriptExt[ext] {
		return ErrScriptType
	}
	// An HTML page renamed to .js or .txt would be served back as-is.
	if strings.HasPrefix(http.DetectContentType(head), "text/html") {
		return ErrScriptType
	}
	return nil
}

func checkSize(size int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > MaxUploadSize {
		return ErrTooLarge
	}
	return nil
}
