// Package changeset builds the output document of a conflation run.
package changeset

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/spatial"
)

// Generator is written into the document header
const Generator = "addrmerge"

// Attribution opens the document note
const Attribution = "The data included in this document is from www.openstreetmap.org. The data is made available under ODbL."

// Action is the change marker of an emitted entity
type Action string

const (
	ActionNone   Action = ""
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// Mode selects which entities are emitted
type Mode int

const (
	// ModeIncremental emits changed and visible entities plus everything
	// they reference
	ModeIncremental Mode = iota
	// ModeFull emits every entity of the database
	ModeFull
)

// Source is the entity store a document is built from
type Source interface {
	Entries() []*spatial.Entry
	Get(key entity.Key) (*spatial.Entry, bool)
}

// DanglingReferenceError is returned when an emitted entity references an
// entity missing from the database
type DanglingReferenceError struct {
	From    entity.Key
	Missing entity.Key
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s references %s which is not in the data set", e.From, e.Missing)
}

// Item is one emitted entity with a snapshot of its tags
type Item struct {
	Entity *entity.Entity
	Tags   *entity.Tags
	Action Action
}

// Stats counts emitted changes
type Stats struct {
	Created  int
	Modified int
	Deleted  int
	Visible  int // emitted without an action
}

// Total returns the number of emitted entities carrying an action
func (s Stats) Total() int {
	return s.Created + s.Modified + s.Deleted
}

// Document is a self-contained changeset: every reference of an emitted
// entity resolves to another emitted entity
type Document struct {
	Version   string
	Generator string
	Note      string

	Nodes     []Item
	Ways      []Item
	Relations []Item
}

// Build collects the entities selected by mode from src
func Build(src Source, mode Mode) (*Document, error) {
	selected := make(map[entity.Key]*spatial.Entry)

	for _, en := range src.Entries() {
		// created and merged away in the same run
		if en.Entity().IsNew() && en.State() == spatial.Delete {
			continue
		}
		if mode == ModeFull {
			selected[en.Key()] = en
			continue
		}
		if en.State() != spatial.Unmodified || en.Entity().IsNew() {
			if err := closure(src, en, selected); err != nil {
				return nil, err
			}
		}
	}

	doc := &Document{
		Version:   "0.6",
		Generator: Generator,
		Note:      Attribution,
	}
	for _, en := range selected {
		item := Item{Entity: en.Entity(), Tags: en.Tags(), Action: actionOf(en)}
		switch en.Kind() {
		case entity.KindPoint:
			doc.Nodes = append(doc.Nodes, item)
		case entity.KindLine:
			doc.Ways = append(doc.Ways, item)
		case entity.KindArea:
			doc.Relations = append(doc.Relations, item)
		}
	}
	for _, items := range [][]Item{doc.Nodes, doc.Ways, doc.Relations} {
		sortItems(items)
	}

	s := doc.Stats()
	logger.Get().Info("Generated changes",
		zap.Int("created", s.Created),
		zap.Int("modified", s.Modified),
		zap.Int("deleted", s.Deleted),
		zap.Int("visible", s.Visible),
		zap.Int("total", len(selected)))
	return doc, nil
}

// closure adds en and everything it references, transitively
func closure(src Source, en *spatial.Entry, selected map[entity.Key]*spatial.Entry) error {
	key := en.Key()
	if _, ok := selected[key]; ok {
		return nil
	}
	selected[key] = en

	for _, ref := range en.Entity().References() {
		child, ok := src.Get(ref)
		if !ok {
			return &DanglingReferenceError{From: key, Missing: ref}
		}
		if err := closure(src, child, selected); err != nil {
			return err
		}
	}
	return nil
}

func actionOf(en *spatial.Entry) Action {
	switch {
	case en.State() == spatial.Delete:
		return ActionDelete
	case en.Entity().IsNew():
		return ActionCreate
	case en.State() == spatial.Modify:
		return ActionModify
	}
	return ActionNone
}

// sortItems orders new entities last, in creation order, after existing
// ones by ascending id
func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].Entity.ID, items[j].Entity.ID
		if (a < 0) != (b < 0) {
			return a > 0
		}
		if a < 0 {
			return a > b
		}
		return a < b
	})
}

// AppendNote adds free text to the note
func (d *Document) AppendNote(text string) {
	if text == "" {
		return
	}
	d.Note += "\n" + text
}

// Stats counts the emitted actions
func (d *Document) Stats() Stats {
	var s Stats
	for _, items := range [][]Item{d.Nodes, d.Ways, d.Relations} {
		for _, it := range items {
			switch it.Action {
			case ActionCreate:
				s.Created++
			case ActionModify:
				s.Modified++
			case ActionDelete:
				s.Deleted++
			default:
				s.Visible++
			}
		}
	}
	return s
}

// Len returns the number of emitted entities
func (d *Document) Len() int {
	return len(d.Nodes) + len(d.Ways) + len(d.Relations)
}
