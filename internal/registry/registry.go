// Package registry discovers application files on a storage volume and reads
// their metadata.
package registry

import (
	"bytes"
	"fmt"

	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/retroenv/hhklaunch/internal/flash"
	"github.com/retroenv/hhklaunch/internal/loader"
	"github.com/retroenv/retrogolib/log"
)

// Defaults of the scan configuration.
const (
	DefaultDirectory = flash.Root
	DefaultPattern   = "*.hhk"
	DefaultMaxApps   = 64
)

// MaxFieldLength is the maximum length of a metadata string in bytes.
const MaxFieldLength = 99

// Metadata section names.
const (
	sectionPrefix      = ".hollyhock_"
	sectionName        = sectionPrefix + "name"
	sectionDescription = sectionPrefix + "description"
	sectionAuthor      = sectionPrefix + "author"
	sectionVersion     = sectionPrefix + "version"
)

// Config controls which files a scan picks up.
type Config struct {
	Directory string
	Pattern   string
	MaxApps   int
}

// DefaultConfig returns the configuration that finds applications in the
// root of the user storage volume.
func DefaultConfig() Config {
	return Config{
		Directory: DefaultDirectory,
		Pattern:   DefaultPattern,
		MaxApps:   DefaultMaxApps,
	}
}

// Registry holds the catalog of the last scan.
type Registry struct {
	logger  *log.Logger
	volume  *flash.FS
	loader  *loader.Loader
	cfg     Config
	catalog *Catalog
}

// New returns a registry for the given volume. Empty configuration values
// are replaced by their defaults.
func New(logger *log.Logger, volume *flash.FS, cfg Config) *Registry {
	def := DefaultConfig()
	if cfg.Directory == "" {
		cfg.Directory = def.Directory
	}
	if cfg.Pattern == "" {
		cfg.Pattern = def.Pattern
	}
	if cfg.MaxApps <= 0 {
		cfg.MaxApps = def.MaxApps
	}

	return &Registry{
		logger:  logger,
		volume:  volume,
		loader:  loader.New(volume),
		cfg:     cfg,
		catalog: &Catalog{},
	}
}

// Catalog returns the catalog of the last completed scan.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Scan rebuilds the catalog from the files in directory that match the
// configured pattern. An empty directory scans the configured directory.
//
// Every matching file gets an entry, files that are not valid executables
// get one without metadata. Files beyond the configured maximum are ignored.
// The returned error only reports a failure to iterate the directory, the
// entries found until then are still returned and become the new catalog.
func (r *Registry) Scan(directory string) (*Catalog, error) {
	if directory == "" {
		directory = r.cfg.Directory
	}
	pattern := flash.Join(directory, r.cfg.Pattern)
	r.logger.Debug("Scanning for applications", log.String("pattern", pattern))

	cat := &Catalog{}
	var scanErr error

	for info, err := range r.volume.Find(pattern) {
		if err != nil {
			scanErr = fmt.Errorf("scanning %s: %w", directory, err)
			break
		}
		if info.Type != flash.EntryTypeFile {
			continue
		}
		if len(cat.entries) >= r.cfg.MaxApps {
			cat.dropped++
			continue
		}

		entry := r.readEntry(directory, info)
		cat.entries = append(cat.entries, entry)
	}

	if cat.dropped > 0 {
		r.logger.Debug("Catalog is full, ignored remaining files",
			log.Int("max", r.cfg.MaxApps), log.Int("ignored", cat.dropped))
	}

	r.catalog = cat
	return cat, scanErr
}

// readEntry builds the catalog entry of a file. The file is closed again
// before returning.
func (r *Registry) readEntry(directory string, info flash.FindInfo) Entry {
	entry := Entry{
		FileName: info.Name,
		Path:     flash.Join(directory, info.Name),
		Size:     info.Size,
	}

	h, hdr, err := r.loader.Load(entry.Path)
	if err != nil {
		r.logger.Debug("Not a valid application", log.String("path", entry.Path), log.Err(err))
		entry.Problem = err
		return entry
	}
	defer func() { _ = h.Close() }()

	for sec := range elfimage.Sections(h.Image, hdr) {
		name, err := elfimage.SectionName(h.Image, hdr, sec)
		if err != nil {
			continue
		}

		var field *string
		switch name {
		case sectionName:
			field = &entry.Name
		case sectionDescription:
			field = &entry.Description
		case sectionAuthor:
			field = &entry.Author
		case sectionVersion:
			field = &entry.Version
		default:
			continue
		}

		data, err := elfimage.SectionData(h.Image, sec)
		if err != nil {
			r.logger.Debug("Skipping unreadable metadata section",
				log.String("path", entry.Path), log.String("section", name), log.Err(err))
			continue
		}
		*field = appendField(*field, data)
	}

	return entry
}

// appendField appends the string stored in data to field. The string ends at
// the first NUL byte or the end of data, the result is capped at
// MaxFieldLength bytes.
func appendField(field string, data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	room := MaxFieldLength - len(field)
	if room <= 0 {
		return field
	}
	if len(data) > room {
		data = data[:room]
	}
	return field + string(data)
}
