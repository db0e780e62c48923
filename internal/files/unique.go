package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UniquePath returns dir/base+ext, or the first free base_1..base_9
// variant, or a base_<uuid v7> name.
func UniquePath(dir, base, ext string) (string, error) {
	candidates := []string{base + ext}
	for i := 1; i <= 9; i++ {
		candidates = append(candidates, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		if _, err := os.Lstat(p); errors.Is(err, os.ErrNotExist) {
			return p, nil
		} else if err != nil {
			return "", err
		}
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, id, ext)), nil
}
