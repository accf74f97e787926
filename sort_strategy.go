package main

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortStrategy defines the interface for different sorting strategies
type SortStrategy interface {
	// Sort returns a new sorted slice without modifying the original
	Sort(images []ImagePath) []ImagePath
	// Name returns the human-readable name of the strategy
	Name() string
	// ID returns the numeric identifier for config storage
	ID() int
}

// sortKey returns the name an entry is ordered by: the file name for
// regular files, the entry path for archive members.
func sortKey(p ImagePath, foldCase bool) string {
	key := p.EntryPath
	if p.ArchivePath == "" {
		key = filepath.Base(p.Path)
	}
	if foldCase {
		key = strings.ToLower(key)
	}
	return key
}

func sortedCopy(images []ImagePath, less func(a, b ImagePath) bool) []ImagePath {
	if len(images) == 0 {
		return []ImagePath{}
	}

	// Create a copy to avoid modifying the original
	result := make([]ImagePath, len(images))
	copy(result, images)

	if less != nil {
		sort.SliceStable(result, func(i, j int) bool {
			return less(result[i], result[j])
		})
	}
	return result
}

// NaturalSortStrategy implements natural sorting using maruel/natural
type NaturalSortStrategy struct {
	FoldCase bool
}

func (s *NaturalSortStrategy) Sort(images []ImagePath) []ImagePath {
	return sortedCopy(images, func(a, b ImagePath) bool {
		ka, kb := sortKey(a, s.FoldCase), sortKey(b, s.FoldCase)
		if ka == kb {
			return a.Path < b.Path
		}
		return natural.Less(ka, kb)
	})
}

func (s *NaturalSortStrategy) Name() string {
	return "Natural"
}

func (s *NaturalSortStrategy) ID() int {
	return SortNatural
}

// SimpleSortStrategy implements lexicographical sorting
type SimpleSortStrategy struct {
	FoldCase bool
}

func (s *SimpleSortStrategy) Sort(images []ImagePath) []ImagePath {
	return sortedCopy(images, func(a, b ImagePath) bool {
		ka, kb := sortKey(a, s.FoldCase), sortKey(b, s.FoldCase)
		if ka == kb {
			return a.Path < b.Path
		}
		return ka < kb
	})
}

func (s *SimpleSortStrategy) Name() string {
	return "Simple"
}

func (s *SimpleSortStrategy) ID() int {
	return SortSimple
}

// EntryOrderSortStrategy preserves the listing order
type EntryOrderSortStrategy struct{}

func (s *EntryOrderSortStrategy) Sort(images []ImagePath) []ImagePath {
	return sortedCopy(images, nil)
}

func (s *EntryOrderSortStrategy) Name() string {
	return "Entry Order"
}

func (s *EntryOrderSortStrategy) ID() int {
	return SortEntryOrder
}

// GetSortStrategy returns the strategy for the sort method ID. caseSensitive
// selects the case policy for the comparing strategies.
func GetSortStrategy(sortMethod int, caseSensitive bool) SortStrategy {
	switch sortMethod {
	case SortNatural:
		return &NaturalSortStrategy{FoldCase: !caseSensitive}
	case SortSimple:
		return &SimpleSortStrategy{FoldCase: !caseSensitive}
	case SortEntryOrder:
		return &EntryOrderSortStrategy{}
	default:
		return &NaturalSortStrategy{FoldCase: !caseSensitive}
	}
}
