package report

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// Layout names the directories created for one analyzed version.
type Layout struct {
	VersionDir string
	PlotsDir   string
	ReportsDir string
}

// SetupVersionDir creates <root>/<version>/{plots,reports}. An existing
// version directory is replaced, matching the analyzer's one-result-per-
// version contract.
func SetupVersionDir(root, version string) (*Layout, error) {
	versionDir := filepath.Join(root, version)
	if _, err := os.Stat(versionDir); err == nil {
		log.Printf("Version directory '%s' already exists, overwriting.", versionDir)
		if err := os.RemoveAll(versionDir); err != nil {
			return nil, fmt.Errorf("failed to remove existing version directory: %w", err)
		}
	}

	l := &Layout{
		VersionDir: versionDir,
		PlotsDir:   filepath.Join(versionDir, "plots"),
		ReportsDir: filepath.Join(versionDir, "reports"),
	}
	for _, dir := range []string{l.PlotsDir, l.ReportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	log.Printf("Created version directory at '%s'.", versionDir)
	return l, nil
}

// CopyInputFiles copies the run's input files into the version directory so
// every version remains reproducible from its own folder. Missing files are
// logged, not fatal: the pipeline validates the required inputs itself.
func CopyInputFiles(inputDir, versionDir string, names ...string) {
	for _, name := range names {
		src := filepath.Join(inputDir, name)
		dst := filepath.Join(versionDir, name)
		if err := copyFile(src, dst); err != nil {
			log.Printf("Could not copy '%s' into version directory: %v", name, err)
			continue
		}
		log.Printf("Copied '%s' to version directory.", name)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
