package storage

import (
	"os"
)

// SQLite in WAL mode keeps recent writes in the -wal file until a checkpoint folds them into
// the main file, so a database's footprint includes both sidecars.
var walSidecars = []string{"-wal", "-shm"}

// StoreFiles returns the files backing the store at path: the path itself followed by its WAL
// sidecars.
func StoreFiles(path string) []string {
	files := []string{path}
	for _, suffix := range walSidecars {
		files = append(files, path+suffix)
	}
	return files
}

// StoreSizeBytes returns the on-disk size of the stores at paths, WAL sidecars included.
// Empty paths and missing files contribute 0.
func StoreSizeBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		for _, file := range StoreFiles(p) {
			info, err := os.Stat(file)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return 0, err
			}
			total += info.Size()
		}
	}
	return total, nil
}
