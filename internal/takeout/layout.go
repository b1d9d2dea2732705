package takeout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanshika/lifetrace/internal/domain"
)

// Layout locates the individual exports inside an unpacked takeout archive.
type Layout struct {
	Root string
}

var semanticHistoryDirs = [][]string{
	{"Location History", "Semantic Location History"},
	{"Location History (Timeline)", "Semantic Location History"},
}

var paymentActivityFile = []string{"Google Pay", "My Activity", "My Activity.html"}

// SemanticLocationHistoryDir returns the directory holding the year folders.
func (l Layout) SemanticLocationHistoryDir() (string, error) {
	for _, parts := range semanticHistoryDirs {
		dir := filepath.Join(append([]string{l.Root}, parts...)...)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("semantic location history under %s: %w", l.Root, domain.ErrNotFound)
}

// PaymentActivityFile returns the payment activity HTML file.
func (l Layout) PaymentActivityFile() (string, error) {
	path := filepath.Join(append([]string{l.Root}, paymentActivityFile...)...)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", fmt.Errorf("payment activity %s: %w", path, domain.ErrNotFound)
	}
	return path, nil
}
