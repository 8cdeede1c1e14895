package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// dataExts lists the entry extensions ExtractDataFile will pick.
var dataExts = map[string]bool{".csv": true, ".txt": true, ".xlsx": true}

// ExtractDataFile writes the single tabular entry of a ZIP archive into
// destDir and returns its path. Registry dumps often ship a notice or a
// schema alongside the data; entries that are not .csv, .txt or .xlsx are
// ignored, as are notices named "lisezmoi" or "readme".
func ExtractDataFile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var picked *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isDataEntry(f.Name) {
			continue
		}
		if picked != nil {
			return "", eris.Errorf("zip: several data files (%s, %s)", picked.Name, f.Name)
		}
		picked = f
	}
	if picked == nil {
		return "", eris.New("zip: no data file in archive")
	}

	dest := filepath.Join(destDir, picked.Name)
	if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q", picked.Name)
	}
	return dest, writeEntry(picked, dest)
}

func isDataEntry(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	if strings.HasPrefix(base, "lisezmoi") || strings.HasPrefix(base, "readme") {
		return false
	}
	return dataExts[filepath.Ext(base)]
}

func writeEntry(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "zip: create parent directory")
	}
	rc, err := f.Open()
	if err != nil {
		return eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "zip: create file")
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrapf(err, "zip: write %s", f.Name)
	}
	return eris.Wrap(out.Close(), "zip: close file")
}
