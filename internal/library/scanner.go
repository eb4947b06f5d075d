// Package library discovers sheet-music folders under the data directory and
// keeps the store in sync with them. Each song lives in its own folder: one
// main document plus measure_{N}.musicxml / measures_{N}-{M}.musicxml
// fragment files.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"etude/internal/fragment"
	"etude/internal/logging"
	"etude/internal/store"
)

// SongFolder is the scan result for one song directory.
type SongFolder struct {
	Folder string
	Song   store.Song
	Groups []store.MeasureGroup
}

// Scan reads every song folder under dataDir in parallel. Folders without a
// main document are skipped. Results are sorted by folder name.
func Scan(ctx context.Context, dataDir string) ([]SongFolder, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var (
		mu      sync.Mutex
		folders []SongFolder
	)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			sf, ok, err := ScanFolder(dataDir, name)
			if err != nil {
				return err
			}
			if !ok {
				logging.LibraryDebug("skipping %s: no main document", name)
				return nil
			}
			mu.Lock()
			folders = append(folders, sf)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(folders, func(i, j int) bool { return folders[i].Folder < folders[j].Folder })
	logging.Library("scanned %d song folders under %s", len(folders), dataDir)
	return folders, nil
}

// ScanFolder reads one song folder. ok is false when the folder holds no
// main document and should not become a song.
func ScanFolder(dataDir, folder string) (SongFolder, bool, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir, folder))
	if err != nil {
		return SongFolder{}, false, fmt.Errorf("failed to read song folder %s: %w", folder, err)
	}

	var (
		mainFile string
		groups   []store.MeasureGroup
		singles  int
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".musicxml" && ext != ".mxl" {
			continue
		}
		if start, end, ok := parseMeasureFile(name); ok {
			id := fragment.ID{Folder: folder, Start: start, End: end}
			groups = append(groups, store.MeasureGroup{
				ID:           id.String(),
				StartMeasure: start,
				EndMeasure:   end,
			})
			if start == end {
				singles++
			}
			continue
		}
		if mainFile == "" && !strings.Contains(name, "measure_") && !strings.Contains(name, "measures_") {
			mainFile = name
		}
	}

	if mainFile == "" {
		return SongFolder{}, false, nil
	}

	return SongFolder{
		Folder: folder,
		Song: store.Song{
			Title:         TitleFromFolder(folder),
			SourceFile:    folder + "/" + mainFile,
			TotalMeasures: singles,
		},
		Groups: groups,
	}, true, nil
}

// Sync scans dataDir and writes the result to the store. Returns the number
// of songs written.
func Sync(ctx context.Context, st *store.Store, dataDir string) (int, error) {
	folders, err := Scan(ctx, dataDir)
	if err != nil {
		return 0, err
	}
	for _, sf := range folders {
		if err := writeFolder(st, sf); err != nil {
			return 0, err
		}
	}
	return len(folders), nil
}

// SyncFolder rescans a single song folder and writes it to the store. A
// folder that vanished or lost its main document is left alone; the next
// full Sync reconciles it.
func SyncFolder(st *store.Store, dataDir, folder string) error {
	sf, ok, err := ScanFolder(dataDir, folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.LibraryDebug("folder %s gone, skipping", folder)
			return nil
		}
		return err
	}
	if !ok {
		return nil
	}
	return writeFolder(st, sf)
}

func writeFolder(st *store.Store, sf SongFolder) error {
	songID, err := st.UpsertSong(sf.Song)
	if err != nil {
		return fmt.Errorf("failed to write song %s: %w", sf.Folder, err)
	}
	if err := st.ReplaceMeasureGroups(songID, sf.Groups); err != nil {
		return fmt.Errorf("failed to write groups for %s: %w", sf.Folder, err)
	}
	logging.LibraryDebug("synced %s: %d groups", sf.Folder, len(sf.Groups))
	return nil
}

// parseMeasureFile recognizes measure_{N}.musicxml and
// measures_{N}-{M}.musicxml fragment file names.
func parseMeasureFile(name string) (start, end int, ok bool) {
	base, found := strings.CutSuffix(name, ".musicxml")
	if !found {
		return 0, 0, false
	}
	if rest, found := strings.CutPrefix(base, "measures_"); found {
		a, b, found := strings.Cut(rest, "-")
		if !found {
			return 0, 0, false
		}
		s, err1 := strconv.Atoi(a)
		e, err2 := strconv.Atoi(b)
		if err1 != nil || err2 != nil || s < 1 || e < s {
			return 0, 0, false
		}
		return s, e, true
	}
	if rest, found := strings.CutPrefix(base, "measure_"); found {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		return n, n, true
	}
	return 0, 0, false
}

var titleCaser = cases.Title(language.English)

// TitleFromFolder derives a display title from a folder name:
// "alicia-keys-fallin" becomes "Alicia Keys Fallin".
func TitleFromFolder(folder string) string {
	return titleCaser.String(strings.ReplaceAll(folder, "-", " "))
}
