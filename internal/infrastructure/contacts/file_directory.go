// Package contacts provides a file-backed implementation of the contact
// directory. The concrete contact-book subsystem lives outside the daemon;
// this reads the exported JSON snapshot it produces.
package contacts

import (
	"encoding/json"
	"os"

	"github.com/heirvault/heirvault-daemon/internal/core/ports"
)

type contactRecord struct {
	Name        string `json:"name"`
	IdentityKey string `json:"identity_key"`
}

type fileDirectory struct {
	path string
}

// NewFileDirectory returns a directory reading contacts from the JSON file
// at the given path. A missing file yields an empty list, not an error.
func NewFileDirectory(path string) ports.ContactDirectory {
	return &fileDirectory{path: path}
}

func (d *fileDirectory) ListContacts() ([]ports.Contact, error) {
	buf, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []ports.Contact{}, nil
		}
		return nil, err
	}

	var records []contactRecord
	if err := json.Unmarshal(buf, &records); err != nil {
		return nil, err
	}

	contacts := make([]ports.Contact, 0, len(records))
	for _, record := range records {
		contacts = append(contacts, ports.Contact{
			Name:        record.Name,
			IdentityKey: record.IdentityKey,
		})
	}
	return contacts, nil
}
