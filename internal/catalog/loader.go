package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LoadStatus tells how the last catalog read went.
type LoadStatus string

const (
	StatusLoaded  LoadStatus = "loaded"
	StatusMissing LoadStatus = "missing"
	StatusCorrupt LoadStatus = "corrupt"
)

// Catalog is the ordered, read-only set of records read from the catalog
// document. Records is never nil; Err holds the cause when Status is not
// StatusLoaded.
type Catalog struct {
	Records []ImageRecord
	Status  LoadStatus
	Err     error
}

// Available reports whether the backing document was read and parsed.
func (c Catalog) Available() bool {
	return c.Status == StatusLoaded
}

// First returns the first record in catalog order, if any.
func (c Catalog) First() (ImageRecord, bool) {
	if len(c.Records) == 0 {
		return ImageRecord{}, false
	}
	return c.Records[0], true
}

// Load reads the catalog document at path. It never fails: an unreadable or
// unparsable document yields an empty catalog whose Status and Err say why.
func Load(path string) Catalog {
	data, err := os.ReadFile(path)
	if err != nil {
		status := StatusCorrupt
		if errors.Is(err, fs.ErrNotExist) {
			status = StatusMissing
		}
		return Catalog{
			Records: []ImageRecord{},
			Status:  status,
			Err:     fmt.Errorf("read catalog %s: %w", path, err),
		}
	}
	return Parse(data)
}

// Parse decodes a catalog document held in memory.
func Parse(data []byte) Catalog {
	var records []ImageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return Catalog{
			Records: []ImageRecord{},
			Status:  StatusCorrupt,
			Err:     fmt.Errorf("parse catalog: %w", err),
		}
	}
	if records == nil {
		records = []ImageRecord{}
	}
	return Catalog{Records: records, Status: StatusLoaded}
}
