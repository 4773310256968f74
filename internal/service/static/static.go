package static

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/config"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/jgivc/spaproxy/internal/metrics"
	"github.com/jgivc/spaproxy/internal/util"
	"github.com/spf13/afero"
)

const (
	serviceName = "static"

	mimeTypeUnknown       = "application/octet-stream"
	mimeTypeCheckPartSize = 512
)

// Asset is an opened static file ready to be streamed to a client.
// The caller owns the handle and must close it.
type Asset struct {
	Name        string
	File        afero.File
	Size        int64
	ModTime     time.Time
	ContentType string
	Fallback    bool // true when served via SPA fallback
}

func (a *Asset) Close() error {
	return a.File.Close()
}

type staticService struct {
	fs  afero.Fs
	cfg *config.ScannerConfig
	log *slog.Logger
}

func NewStaticService(cfg *config.ScannerConfig, log *slog.Logger) *staticService {
	return NewStaticServiceWithFS(afero.NewOsFs(), cfg, log)
}

func NewStaticServiceWithFS(fs afero.Fs, cfg *config.ScannerConfig, log *slog.Logger) *staticService {
	return &staticService{
		fs:  fs,
		cfg: cfg,
		log: log.With(slog.String("service", serviceName)),
	}
}

// Open locates the asset for remainder under the property's root.
// An empty remainder serves the property's index page. A missing asset
// falls back to the index page when the property is single-page, otherwise
// the lookup fails. Parent-directory references in remainder are rejected
// before any filesystem access.
func (s *staticService) Open(prop *entity.Property, remainder string) (*Asset, error) {
	remainder = strings.TrimPrefix(remainder, "/")

	if util.HasTraversal(remainder) || strings.Contains(remainder, "\\") {
		metrics.TraversalsRejected.Inc()
		s.log.Warn("Traversal rejected",
			slog.String("property", prop.Path), slog.String("remainder", remainder))

		return nil, common.ErrTraversalRejectedError
	}

	indexFileName := filepath.Join(prop.RootDir, s.cfg.IndexFileName)

	if remainder == "" {
		return s.open(indexFileName, false)
	}

	assetFileName := filepath.Join(prop.RootDir, filepath.FromSlash(remainder))

	stat, err := s.fs.Stat(assetFileName)
	switch {
	case err == nil && !stat.IsDir():
		return s.open(assetFileName, false)
	case err == nil && stat.IsDir():
		// A directory request serves its own index page when present.
		nested := filepath.Join(assetFileName, s.cfg.IndexFileName)
		if ok, statErr := s.fileExists(nested); statErr != nil {
			return nil, statErr
		} else if ok {
			return s.open(nested, false)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("cannot stat asset %s: %w", assetFileName, err)
	}

	if !prop.Single {
		return nil, common.ErrAssetNotFoundError
	}

	metrics.SpaFallbacks.WithLabelValues(prop.Path).Inc()

	return s.open(indexFileName, true)
}

func (s *staticService) open(fileName string, fallback bool) (*Asset, error) {
	stat, err := s.fs.Stat(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrAssetNotFoundError
		}

		return nil, fmt.Errorf("cannot stat asset %s: %w", fileName, err)
	}

	if stat.IsDir() {
		return nil, common.ErrAssetNotFoundError
	}

	file, err := s.fs.Open(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrAssetNotFoundError
		}

		return nil, fmt.Errorf("cannot open asset %s: %w", fileName, err)
	}

	contentType, err := s.getMimeType(fileName, file)
	if err != nil {
		file.Close()

		return nil, fmt.Errorf("cannot detect asset type %s: %w", fileName, err)
	}

	return &Asset{
		Name:        fileName,
		File:        file,
		Size:        stat.Size(),
		ModTime:     stat.ModTime(),
		ContentType: contentType,
		Fallback:    fallback,
	}, nil
}

// getMimeType infers the content type by extension, sniffing the first
// bytes when the extension is unknown. The file offset is restored.
func (s *staticService) getMimeType(fileName string, file afero.File) (string, error) {
	if ext := filepath.Ext(fileName); ext != "" {
		if mimeType := mime.TypeByExtension(ext); mimeType != "" {
			return mimeType, nil
		}
	}

	buffer := make([]byte, mimeTypeCheckPartSize)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return mimeTypeUnknown, err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return mimeTypeUnknown, err
	}

	return http.DetectContentType(buffer[:n]), nil
}

func (s *staticService) fileExists(path string) (bool, error) {
	stat, err := s.fs.Stat(path)
	if err == nil {
		return !stat.IsDir(), nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, fmt.Errorf("cannot stat asset %s: %w", path, err)
}
