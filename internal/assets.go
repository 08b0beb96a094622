package internal

import (
	"embed"
	"io/fs"
	"net/http"
	"os"

	assetfs "github.com/elazarl/go-bindata-assetfs"
)

//go:embed static
var staticFiles embed.FS

func assetDir(name string) ([]string, error) {
	entries, err := staticFiles.ReadDir(name)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names, nil
}

func assetInfo(name string) (os.FileInfo, error) {
	return fs.Stat(staticFiles, name)
}

// AssetFile serves the watcher page and its scripts.
func AssetFile() http.FileSystem {
	return &assetfs.AssetFS{
		Asset:     staticFiles.ReadFile,
		AssetDir:  assetDir,
		AssetInfo: assetInfo,
		Prefix:    "static",
	}
}
