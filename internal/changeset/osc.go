package changeset

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/paulmach/osm"

	"github.com/wegman-software/addrmerge/internal/entity"
)

// Change converts the actioned entities of the document into an
// osmChange. Entities emitted only for context are left out.
func (d *Document) Change() *osm.Change {
	change := &osm.Change{
		Version:   d.Version,
		Generator: d.Generator,
	}
	target := func(a Action) *osm.OSM {
		var slot **osm.OSM
		switch a {
		case ActionCreate:
			slot = &change.Create
		case ActionModify:
			slot = &change.Modify
		case ActionDelete:
			slot = &change.Delete
		default:
			return nil
		}
		if *slot == nil {
			*slot = &osm.OSM{}
		}
		return *slot
	}

	for _, it := range d.Nodes {
		if o := target(it.Action); o != nil {
			o.Nodes = append(o.Nodes, toOSMNode(it))
		}
	}
	for _, it := range d.Ways {
		if o := target(it.Action); o != nil {
			o.Ways = append(o.Ways, toOSMWay(it))
		}
	}
	for _, it := range d.Relations {
		if o := target(it.Action); o != nil {
			o.Relations = append(o.Relations, toOSMRelation(it))
		}
	}
	return change
}

// WriteOsmChange writes the actioned entities as an osmChange document
func (d *Document) WriteOsmChange(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	start := xml.StartElement{Name: xml.Name{Local: "osmChange"}}
	if err := enc.EncodeElement(d.Change(), start); err != nil {
		return fmt.Errorf("failed to encode osmChange: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func toOSMTags(t *entity.Tags) osm.Tags {
	tags := make(osm.Tags, 0, t.Len())
	t.Each(func(k, v string) {
		tags = append(tags, osm.Tag{Key: k, Value: v})
	})
	return tags
}

func toOSMNode(it Item) *osm.Node {
	e := it.Entity
	return &osm.Node{
		ID:          osm.NodeID(e.ID),
		Lat:         e.Lat,
		Lon:         e.Lon,
		User:        e.Meta.User,
		UserID:      osm.UserID(e.Meta.UID),
		Visible:     it.Action != ActionDelete,
		Version:     e.Meta.Version,
		ChangesetID: osm.ChangesetID(e.Meta.Changeset),
		Timestamp:   e.Meta.Timestamp,
		Tags:        toOSMTags(it.Tags),
	}
}

func toOSMWay(it Item) *osm.Way {
	e := it.Entity
	nodes := make(osm.WayNodes, len(e.Refs))
	for i, ref := range e.Refs {
		nodes[i] = osm.WayNode{ID: osm.NodeID(ref)}
	}
	return &osm.Way{
		ID:          osm.WayID(e.ID),
		User:        e.Meta.User,
		UserID:      osm.UserID(e.Meta.UID),
		Visible:     it.Action != ActionDelete,
		Version:     e.Meta.Version,
		ChangesetID: osm.ChangesetID(e.Meta.Changeset),
		Timestamp:   e.Meta.Timestamp,
		Nodes:       nodes,
		Tags:        toOSMTags(it.Tags),
	}
}

func toOSMRelation(it Item) *osm.Relation {
	e := it.Entity
	members := make(osm.Members, len(e.Members))
	for i, m := range e.Members {
		members[i] = osm.Member{Type: osmType(m.Kind), Ref: m.Ref, Role: m.Role}
	}
	return &osm.Relation{
		ID:          osm.RelationID(e.ID),
		User:        e.Meta.User,
		UserID:      osm.UserID(e.Meta.UID),
		Visible:     it.Action != ActionDelete,
		Version:     e.Meta.Version,
		ChangesetID: osm.ChangesetID(e.Meta.Changeset),
		Timestamp:   e.Meta.Timestamp,
		Members:     members,
		Tags:        toOSMTags(it.Tags),
	}
}

func osmType(k entity.Kind) osm.Type {
	switch k {
	case entity.KindLine:
		return osm.TypeWay
	case entity.KindArea:
		return osm.TypeRelation
	}
	return osm.TypeNode
}
