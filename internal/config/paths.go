package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	ExecutableDir string
	DataDir       string
	UploadsDir    string
	ReportsDir    string
	CacheDir      string
	LogsDir       string

	// Well-known report files
	ResultXLSX string
	ResultCSV  string
}

// NewPaths builds the path tree rooted at baseDir.
//
// Directory structure:
//
//	baseDir/
//	  ├── data/
//	  │   ├── uploads/   (received input tables)
//	  │   ├── reports/   (exported results)
//	  │   └── cache/     (temporary files)
//	  └── logs/          (application logs)
func NewPaths(baseDir string) *Paths {
	dataDir := filepath.Join(baseDir, "data")
	reportsDir := filepath.Join(dataDir, "reports")

	return &Paths{
		ExecutableDir: baseDir,
		DataDir:       dataDir,
		UploadsDir:    filepath.Join(dataDir, "uploads"),
		ReportsDir:    reportsDir,
		CacheDir:      filepath.Join(dataDir, "cache"),
		LogsDir:       filepath.Join(baseDir, "logs"),

		ResultXLSX: filepath.Join(reportsDir, ResultFileName),
		ResultCSV:  filepath.Join(reportsDir, ResultCSVFileName),
	}
}

// GetPaths returns the application paths relative to the executable location.
// Paths are always relative to the executable directory, never the current
// working directory, so the binary behaves the same wherever it is launched
// from.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return NewPaths(filepath.Dir(exe)), nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.UploadsDir,
		p.ReportsDir,
		p.CacheDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}
	return nil
}

// GetRelativePath returns a path relative to the executable directory
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// GetUploadPath returns the path for a received input file
func (p *Paths) GetUploadPath(filename string) string {
	return filepath.Join(p.UploadsDir, filename)
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetCachePath returns the path for a cache file
func (p *Paths) GetCachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetRunReportPath returns the export path of one pipeline run, named by its
// run ID so concurrent runs never clobber each other.
func (p *Paths) GetRunReportPath(runID, ext string) string {
	return filepath.Join(p.ReportsDir, fmt.Sprintf("resultado_%s%s", runID, ext))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution() {
	slog.Default().Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("uploads", p.UploadsDir),
			slog.String("reports", p.ReportsDir),
			slog.String("cache", p.CacheDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("report_files",
			slog.String("result_xlsx", p.ResultXLSX),
			slog.String("result_csv", p.ResultCSV),
		))
}
