// Package artifacts persists the feature schema and model of one training
// run as a single versioned bundle directory:
//
//	<dir>/<version>/schema.json
//	<dir>/<version>/model.json
//	<dir>/<version>/manifest.json
//	<dir>/CURRENT
//
// Bundles are written to a temporary directory and renamed into place;
// CURRENT is switched only afterwards, so a failed save leaves the previous
// bundle authoritative.
package artifacts

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/pipeline/features"
	"employability-workers/internal/pipeline/model"

	"github.com/gofrs/flock"
)

const (
	schemaFile   = "schema.json"
	modelFile    = "model.json"
	manifestFile = "manifest.json"
	currentFile  = "CURRENT"
	lockFile     = ".lock"
	tmpPrefix    = ".tmp-"
)

// Manifest describes a bundle.
type Manifest struct {
	Version   string             `json:"version"`
	ModelKind string             `json:"modelKind"`
	CreatedAt time.Time          `json:"createdAt"`
	TrainSize int                `json:"trainSize"`
	TestSize  int                `json:"testSize"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Bundle is a schema and an encoded model trained together.
type Bundle struct {
	Manifest Manifest
	Schema   *features.FeatureSchema
	Model    []byte
}

// Classifier decodes the bundled model.
func (b *Bundle) Classifier() (model.Classifier, error) {
	c, _, err := model.Decode(b.Model)
	return c, err
}

type Store struct {
	dir    string
	logger logger.Logger
}

func NewStore(dir string, log logger.Logger) *Store {
	return &Store{dir: dir, logger: logger.Component(log, "artifacts")}
}

func (s *Store) Dir() string { return s.dir }

// Save writes b durably and makes it current. The schema, model and manifest
// must all carry the same version.
func (s *Store) Save(ctx context.Context, b Bundle) error {
	if err := checkVersions(b); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}

	lock := flock.New(filepath.Join(s.dir, lockFile))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		if err == nil {
			err = fmt.Errorf("artifact directory %s is locked", s.dir)
		}
		return errors.NewArtifactWriteFailedError(err)
	}
	defer lock.Unlock()

	version := b.Manifest.Version
	final := filepath.Join(s.dir, version)
	if _, err := os.Stat(final); err == nil {
		return errors.NewArtifactWriteFailedError(fmt.Errorf("bundle %s already exists", version))
	}

	tmp, err := os.MkdirTemp(s.dir, tmpPrefix+version+"-")
	if err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	schemaJSON, err := json.MarshalIndent(b.Schema, "", "  ")
	if err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}
	manifestJSON, err := json.MarshalIndent(b.Manifest, "", "  ")
	if err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}

	for name, data := range map[string][]byte{
		schemaFile:   schemaJSON,
		modelFile:    b.Model,
		manifestFile: manifestJSON,
	} {
		if err := writeFileSync(filepath.Join(tmp, name), data); err != nil {
			return errors.NewArtifactWriteFailedError(err)
		}
	}
	if err := syncDir(tmp); err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}
	committed = true
	if err := syncDir(s.dir); err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}

	if err := s.setCurrent(version); err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}

	s.logger.Info("artifact bundle saved", map[string]interface{}{
		"version": version,
		"path":    final,
	})
	return nil
}

func checkVersions(b Bundle) error {
	if b.Schema == nil || len(b.Model) == 0 {
		return errors.NewArtifactWriteFailedError(fmt.Errorf("bundle needs both a schema and a model"))
	}
	version := b.Manifest.Version
	if version == "" || strings.ContainsAny(version, `/\`) || strings.HasPrefix(version, ".") {
		return errors.NewArtifactWriteFailedError(fmt.Errorf("invalid bundle version %q", version))
	}
	modelVersion, err := model.EncodedVersion(b.Model)
	if err != nil {
		return errors.NewArtifactWriteFailedError(err)
	}
	if b.Schema.Version != version || modelVersion != version {
		return errors.NewSchemaVersionMismatchError(b.Schema.Version, modelVersion)
	}
	return nil
}

func (s *Store) setCurrent(version string) error {
	tmp := filepath.Join(s.dir, tmpPrefix+currentFile)
	if err := writeFileSync(tmp, []byte(version+"\n")); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, currentFile)); err != nil {
		return err
	}
	return syncDir(s.dir)
}

// Current returns the version CURRENT points at.
func (s *Store) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", errors.NewArtifactNotFoundError("no current bundle in " + s.dir)
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadCurrent loads the bundle CURRENT points at.
func (s *Store) LoadCurrent() (*Bundle, error) {
	version, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.Load(version)
}

// Load reads a bundle and checks that its schema and model versions agree.
func (s *Store) Load(version string) (*Bundle, error) {
	dir := filepath.Join(s.dir, version)

	schemaJSON, err := os.ReadFile(filepath.Join(dir, schemaFile))
	if err != nil {
		return nil, notFound(version, err)
	}
	modelJSON, err := os.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, notFound(version, err)
	}

	var schema features.FeatureSchema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", version, err)
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("schema %s: %w", version, err)
	}

	modelVersion, err := model.EncodedVersion(modelJSON)
	if err != nil {
		return nil, err
	}
	if schema.Version != modelVersion {
		return nil, errors.NewSchemaVersionMismatchError(schema.Version, modelVersion)
	}

	var manifest Manifest
	if data, err := os.ReadFile(filepath.Join(dir, manifestFile)); err == nil {
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("decode manifest %s: %w", version, err)
		}
	} else {
		manifest.Version = schema.Version
	}

	return &Bundle{Manifest: manifest, Schema: &schema, Model: modelJSON}, nil
}

// Versions lists committed bundles in ascending order.
func (s *Store) Versions() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

func notFound(version string, err error) error {
	if stderrors.Is(err, fs.ErrNotExist) {
		return errors.NewArtifactNotFoundError("bundle " + version + " is incomplete or missing")
	}
	return err
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
