package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directory layout read by catalog.DirStore.
const (
	interfaceDir = "interface"
	sqlDir       = "sql"
	projectFile  = "_project.json"
)

// Project is the summary written next to the compiled interfaces.
type Project struct {
	Queries []string `json:"queries"`
	Aliases []string `json:"aliases,omitempty"`
}

// WriteCompiled writes entries to outDir as interface/<id>.json and, for
// non-alias queries, sql/<id>.sql. Files of queries no longer present are
// removed. Every file is written to a temp file and renamed into place so a
// watcher never reads a partial file.
func WriteCompiled(outDir string, entries []Entry) error {
	ifaceDir := filepath.Join(outDir, interfaceDir)
	sqlPath := filepath.Join(outDir, sqlDir)
	for _, dir := range []string{ifaceDir, sqlPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	var project Project
	keepIface := make(map[string]bool, len(entries))
	keepSQL := make(map[string]bool, len(entries))
	for _, e := range entries {
		iface := *e.Interface
		iface.ID = ""
		data, err := json.MarshalIndent(iface, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode interface of %s: %w", e.ID, err)
		}
		name := e.ID + ".json"
		if err := writeFileAtomic(filepath.Join(ifaceDir, name), append(data, '\n')); err != nil {
			return err
		}
		keepIface[name] = true

		if e.Interface.IsAlias() {
			project.Aliases = append(project.Aliases, e.ID)
			continue
		}
		project.Queries = append(project.Queries, e.ID)
		name = e.ID + ".sql"
		if err := writeFileAtomic(filepath.Join(sqlPath, name), []byte(e.SQL)); err != nil {
			return err
		}
		keepSQL[name] = true
	}

	if err := removeStale(ifaceDir, ".json", keepIface); err != nil {
		return err
	}
	if err := removeStale(sqlPath, ".sql", keepSQL); err != nil {
		return err
	}

	sort.Strings(project.Queries)
	sort.Strings(project.Aliases)
	if project.Queries == nil {
		project.Queries = []string{}
	}
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(ifaceDir, projectFile), append(data, '\n'))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

func removeStale(dir, ext string, keep map[string]bool) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || name == projectFile || !strings.HasSuffix(name, ext) || keep[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to remove stale %s: %w", name, err)
		}
	}
	return nil
}
