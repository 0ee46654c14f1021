package localstore

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aegis-run/aegis/internal/secure"
	"github.com/aegis-run/aegis/internal/secvalidate"
)

const maxAutoImportFileSize = 10 * 1024 * 1024
const maxSecretFileSize = 64 * 1024

type autoImportDoc struct {
	Secrets []autoImportEntry `yaml:"secrets"`
}

type autoImportEntry struct {
	Name    string `yaml:"name"`
	Value   string `yaml:"value"`
	File    string `yaml:"file"`
	StoreAs string `yaml:"store_as"`
}

// checkAutoImport looks for secrets.yaml next to the keystore; if present,
// every entry is validated and imported through SetSecret, and the file is
// then securely shredded. Failures on individual entries are logged and do
// not abort the rest of the import.
func (s *Store) checkAutoImport(rootPath string) {
	autoYAML := filepath.Join(rootPath, "secrets.yaml")

	info, err := os.Stat(autoYAML)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		s.log.Error("auto-import stat failed for %s: %v", autoYAML, err)
		return
	}
	if info.Size() > maxAutoImportFileSize {
		s.log.Error("auto-import file %s exceeds the 10MiB size limit", autoYAML)
		return
	}

	validatedPath, err := secvalidate.ValidateFilePath(autoYAML, []string{rootPath})
	if err != nil {
		id := s.audit.LogFileOperationError("auto_import_validation", autoYAML, err)
		s.log.Error("auto-import security validation failed (Error ID: %s)", id)
		return
	}

	raw, err := os.ReadFile(validatedPath)
	if err != nil {
		id := s.audit.LogFileOperationError("auto_import_read", autoYAML, err)
		s.log.Error("auto-import read failed (Error ID: %s)", id)
		return
	}

	if err := secvalidate.ValidateYAMLContent(string(raw)); err != nil {
		id := s.audit.LogFileOperationError("auto_import_validation", autoYAML, err)
		s.log.Error("auto-import security validation failed (Error ID: %s)", id)
		return
	}

	var doc autoImportDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		s.log.Error("invalid secrets.yaml format: %v", err)
		return
	}

	s.log.Info("performing auto-import of secrets from %s", autoYAML)
	for _, entry := range doc.Secrets {
		if err := s.importEntry(entry, rootPath); err != nil {
			id := s.audit.LogSecretOperationError("auto_import_entry", s.Name, entry.Name, err)
			s.log.Error("failed to import secret entry (Error ID: %s)", id)
			continue
		}
		s.log.Info("imported secret: %s", entry.Name)
	}

	if err := secure.ShredFile(autoYAML, 3); err != nil {
		s.log.Error("failed to securely delete %s: %v", autoYAML, err)
		return
	}
	s.log.Info("auto-import completed successfully")
}

func (s *Store) importEntry(entry autoImportEntry, rootPath string) error {
	if entry.Name == "" {
		return fmt.Errorf("secret entry missing 'name' field")
	}
	if err := secvalidate.ValidateSecretKey(entry.Name); err != nil {
		return err
	}

	value := entry.Value
	storeAs := entry.StoreAs
	if storeAs == "" {
		storeAs = "raw"
	}

	if entry.File != "" {
		cwd, _ := os.Getwd()
		validatedFile, err := secvalidate.ValidateFilePath(entry.File, []string{rootPath, cwd})
		if err != nil {
			return err
		}
		info, err := os.Stat(validatedFile)
		if os.IsNotExist(err) {
			return fmt.Errorf("the file %q specified for %s does not exist", entry.File, entry.Name)
		}
		if err != nil {
			return err
		}
		if info.Size() > maxSecretFileSize {
			return fmt.Errorf("file %q for %s exceeds the 64KiB size limit", entry.File, entry.Name)
		}

		content, err := os.ReadFile(validatedFile)
		if err != nil {
			return err
		}

		switch storeAs {
		case "raw":
			value = string(content)
		case "base64":
			value = base64.StdEncoding.EncodeToString(content)
		default:
			return fmt.Errorf("unsupported store_as value %q for %s", storeAs, entry.Name)
		}
	}

	if value == "" {
		return fmt.Errorf("missing 'value' for %s, not imported", entry.Name)
	}
	if err := secvalidate.ValidateSecretValue(value); err != nil {
		return err
	}

	return s.SetSecret(entry.Name, value)
}
