// Package inventory defines the inventory-snapshot contract: given a
// data directory and the current baseline, it returns the files newly
// present, the files removed since the last run, and the
// still-acknowledged baseline subset. The default implementation below
// adapts a directory-walk and path-layout helper pair written for OSM
// sequence files to group sub-directories of DataFiles instead.
package inventory

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/tsreplica/sender/errs"
)

// ResourceSuffix is the fixed suffix that turns a DataFile's path into
// its sidecar's path.
const ResourceSuffix = ".resource"

// DataFile is one immutable time-series file together with its
// sidecar, both identified by the DataFile's own path.
type DataFile struct {
	Path string
}

// Sidecar returns this DataFile's companion path.
func (f DataFile) Sidecar() string {
	return f.Path + ResourceSuffix
}

// Inventory is one data directory's grouped delta against the
// baseline.
type Inventory struct {
	AllGroups []string
	ToSend    map[string][]DataFile
	Deleted   map[string][]DataFile
	LastLocal map[string][]DataFile
}

// Builder is the Inventory Snapshot contract. baseline holds every
// absolute path the receiver has acknowledged, across all groups and
// data directories; implementations partition it by group for this
// one data directory. If groupOverride is non-empty, the whole of
// dataDir is treated as that one StorageGroup instead of scanning its
// sub-directories as separate groups (the config package's DataDir
// groups-file override).
type Builder interface {
	Build(dataDir, groupOverride string, baseline map[string]struct{}) (*Inventory, error)
}

// DefaultBuilder treats each immediate sub-directory of a data
// directory as one StorageGroup, and every regular file in it that is
// not itself a sidecar as one DataFile.
type DefaultBuilder struct{}

var _ Builder = DefaultBuilder{}

// Build implements Builder.
func (DefaultBuilder) Build(dataDir, groupOverride string, baseline map[string]struct{}) (*Inventory, error) {
	inv := &Inventory{
		ToSend:    map[string][]DataFile{},
		Deleted:   map[string][]DataFile{},
		LastLocal: map[string][]DataFile{},
	}

	if groupOverride != "" {
		if err := buildGroup(inv, groupOverride, dataDir, baseline); err != nil {
			return nil, err
		}
		sort.Strings(inv.AllGroups)
		return inv, nil
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, "listing data directory %s", dataDir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		group := e.Name()
		if err := buildGroup(inv, group, filepath.Join(dataDir, group), baseline); err != nil {
			return nil, err
		}
	}

	sort.Strings(inv.AllGroups)
	return inv, nil
}

func buildGroup(inv *Inventory, group, groupDir string, baseline map[string]struct{}) error {
	onDisk, err := filesInGroup(groupDir)
	if err != nil {
		return err
	}

	baselineInGroup := map[string]struct{}{}
	for p := range baseline {
		if filepath.Dir(p) == groupDir {
			baselineInGroup[p] = struct{}{}
		}
	}

	var toSend, deleted, lastLocal []DataFile
	for p := range onDisk {
		if _, ok := baselineInGroup[p]; !ok {
			toSend = append(toSend, DataFile{Path: p})
		}
	}
	for p := range baselineInGroup {
		if _, ok := onDisk[p]; ok {
			lastLocal = append(lastLocal, DataFile{Path: p})
		} else {
			deleted = append(deleted, DataFile{Path: p})
		}
	}

	sortDataFiles(toSend)
	sortDataFiles(deleted)
	sortDataFiles(lastLocal)

	inv.AllGroups = append(inv.AllGroups, group)
	inv.ToSend[group] = toSend
	inv.Deleted[group] = deleted
	inv.LastLocal[group] = lastLocal
	return nil
}

func filesInGroup(groupDir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(groupDir)
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, "listing storage group %s", groupDir)
	}
	files := map[string]struct{}{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ResourceSuffix {
			continue
		}
		files[filepath.Join(groupDir, name)] = struct{}{}
	}
	return files, nil
}

func sortDataFiles(files []DataFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
