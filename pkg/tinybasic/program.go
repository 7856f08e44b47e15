package tinybasic

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/btree"
)

// ProgramLine is one stored program line.
type ProgramLine struct {
	Number int
	Text   string
}

// Less orders lines by number for the btree.
func (l ProgramLine) Less(than btree.Item) bool {
	return l.Number < than.(ProgramLine).Number
}

// ProgramStore is a line-indexed text store. It knows nothing about
// statement semantics.
type ProgramStore interface {
	// SetLine stores text under number. Blank text deletes the line; deleting
	// an absent line is not an error.
	SetLine(number int, text string) error
	// Snapshot returns all lines in ascending order.
	Snapshot() ([]ProgramLine, error)
	// Clear removes every line.
	Clear() error
	// Len returns the number of stored lines.
	Len() int
}

// MemoryProgram keeps the program in an ordered btree.
type MemoryProgram struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// NewMemoryProgram returns an empty in-memory program.
func NewMemoryProgram() *MemoryProgram {
	return &MemoryProgram{tree: btree.New(4)}
}

// SetLine implements ProgramStore.
func (p *MemoryProgram) SetLine(number int, text string) error {
	if number <= 0 {
		return ErrInvalidLineNumber
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		p.tree.Delete(ProgramLine{Number: number})
		return nil
	}
	p.tree.ReplaceOrInsert(ProgramLine{Number: number, Text: text})
	return nil
}

// Snapshot implements ProgramStore.
func (p *MemoryProgram) Snapshot() ([]ProgramLine, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	lines := make([]ProgramLine, 0, p.tree.Len())
	p.tree.Ascend(func(item btree.Item) bool {
		lines = append(lines, item.(ProgramLine))
		return true
	})
	return lines, nil
}

// Clear implements ProgramStore.
func (p *MemoryProgram) Clear() error {
	p.mu.Lock()
	p.tree.Clear(false)
	p.mu.Unlock()
	return nil
}

// Len implements ProgramStore.
func (p *MemoryProgram) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree.Len()
}

// Get returns the text stored under number.
func (p *MemoryProgram) Get(number int) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item := p.tree.Get(ProgramLine{Number: number})
	if item == nil {
		return "", false
	}
	return item.(ProgramLine).Text, true
}

// findLineIndex resolves a line number to its index in a sorted snapshot.
func findLineIndex(lines []ProgramLine, number int) (int, bool) {
	index := sort.Search(len(lines), func(i int) bool { return lines[i].Number >= number })
	if index < len(lines) && lines[index].Number == number {
		return index, true
	}
	return 0, false
}
