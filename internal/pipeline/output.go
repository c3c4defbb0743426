package pipeline

import (
	"bufio"
	"fmt"
	"os"

	"github.com/wegman-software/addrmerge/internal/changeset"
)

// WriteDocument writes doc to path in the given format ("josm" or "osc")
func WriteDocument(doc *changeset.Document, path, format string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	switch format {
	case "osc":
		err = doc.WriteOsmChange(w)
	case "josm", "":
		err = doc.WriteJOSM(w)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}
