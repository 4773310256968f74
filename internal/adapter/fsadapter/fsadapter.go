package fsadapter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jgivc/spaproxy/internal/adapter/mdadapter"
	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/config"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/jgivc/spaproxy/internal/util"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	maxManifestSize = 64 * 1024
)

// Manifest is the on-disk representation of a property deployment:
// key: value lines in the property's directory.
type Manifest struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Ref       string `yaml:"ref"`
	Single    bool   `yaml:"single"`
	DeployKey string `yaml:"deploykey"`
}

type DescriptionRenderer interface {
	Render(src []byte) (string, *mdadapter.Frontmatter, error)
}

type fsAdapter struct {
	fs  afero.Fs
	cfg *config.ScannerConfig
	md  DescriptionRenderer
	log *slog.Logger
}

func NewFSAdapter(cfg *config.ScannerConfig, log *slog.Logger) *fsAdapter {
	return NewFSAdapterWithFS(afero.NewOsFs(), cfg, log)
}

func NewFSAdapterWithFS(fs afero.Fs, cfg *config.ScannerConfig, log *slog.Logger) *fsAdapter {
	return &fsAdapter{
		fs:  fs,
		cfg: cfg,
		md:  mdadapter.NewRenderer(),
		log: log.With(slog.String("item", "FSAdapter")),
	}
}

// ToProperty reads the manifest in folderPath and builds a Property.
// The folder itself becomes the property's asset root.
func (a *fsAdapter) ToProperty(folderPath string) (*entity.Property, error) {
	if strings.Contains(folderPath, "..") {
		return nil, fmt.Errorf("invalid folder path")
	}

	manifestFileName := filepath.Join(folderPath, a.cfg.ManifestFileName)

	data, err := afero.ReadFile(a.fs, manifestFileName)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest: %w", err)
	}

	if len(data) > maxManifestSize {
		return nil, fmt.Errorf("%w: manifest too large: %s", common.ErrManifestParseError, manifestFileName)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", common.ErrManifestParseError, manifestFileName, err)
	}

	if m.Path == "" || !strings.HasPrefix(m.Path, "/") {
		return nil, fmt.Errorf("%w: %s: path must start with /", common.ErrManifestParseError, manifestFileName)
	}

	if m.Ref == "" {
		return nil, fmt.Errorf("%w: %s: ref must be set", common.ErrManifestParseError, manifestFileName)
	}

	prop := &entity.Property{
		Name:      m.Name,
		Path:      util.NormalizePath(m.Path),
		Ref:       m.Ref,
		Single:    m.Single,
		DeployKey: m.DeployKey,
		RootDir:   folderPath,
		ScannedAt: time.Now(),
	}

	if prop.Name == "" {
		prop.Name = filepath.Base(folderPath)
	}

	a.parseDescription(folderPath, prop)

	return prop, nil
}

// parseDescription renders the optional description markdown next to the
// manifest. A broken description never fails the property.
func (a *fsAdapter) parseDescription(folderPath string, prop *entity.Property) {
	descFileName := filepath.Join(folderPath, a.cfg.DescFileName)
	if !a.fileExists(descFileName) {
		return
	}

	data, err := afero.ReadFile(a.fs, descFileName)
	if err != nil {
		a.log.Error("Cannot read description", slog.String("path", descFileName), slog.Any("error", err))

		return
	}

	content, fm, err := a.md.Render(data)
	if err != nil {
		a.log.Error("Cannot render description", slog.String("path", descFileName), slog.Any("error", err))

		return
	}

	prop.Description = content
	if fm != nil && fm.Title != "" {
		prop.Name = fm.Title
	}
}

func (a *fsAdapter) fileExists(path string) bool {
	if path == "" {
		return false
	}

	_, err := a.fs.Stat(path)
	if err == nil {
		return true
	}

	if os.IsNotExist(err) {
		return false
	}

	return false
}
