package fragment

import "fmt"

// Resolve maps a parsed identifier to the notation document paths needed to
// render it, relative to the data root. A single measure resolves to its
// measure_{N}.musicxml file; a range resolves to the one combined
// measures_{N}-{M}.musicxml document covering exactly that span, never to
// one file per measure. Resolution is pure: the same ID always yields the
// same paths, and a zero ID yields none.
func Resolve(id ID) []string {
	if id.IsZero() {
		return nil
	}
	if id.Start == id.End {
		return []string{fmt.Sprintf("%s/measure_%d.musicxml", id.Folder, id.Start)}
	}
	return []string{fmt.Sprintf("%s/measures_%d-%d.musicxml", id.Folder, id.Start, id.End)}
}
