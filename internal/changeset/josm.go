package changeset

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/wegman-software/addrmerge/internal/entity"
)

// JOSM flavoured OSM XML: a plain <osm> document where changed elements
// carry an action attribute

type xmlOSM struct {
	XMLName   xml.Name      `xml:"osm"`
	Version   string        `xml:"version,attr"`
	Generator string        `xml:"generator,attr"`
	Note      string        `xml:"note,omitempty"`
	Nodes     []xmlNode     `xml:"node"`
	Ways      []xmlWay      `xml:"way"`
	Relations []xmlRelation `xml:"relation"`
}

type xmlMeta struct {
	ID        int64  `xml:"id,attr"`
	Action    string `xml:"action,attr,omitempty"`
	Visible   string `xml:"visible,attr,omitempty"`
	Version   int    `xml:"version,attr,omitempty"`
	Changeset int64  `xml:"changeset,attr,omitempty"`
	Timestamp string `xml:"timestamp,attr,omitempty"`
	User      string `xml:"user,attr,omitempty"`
	UID       int    `xml:"uid,attr,omitempty"`
}

type xmlTag struct {
	K string `xml:"k,attr"`
	V string `xml:"v,attr"`
}

type xmlNode struct {
	xmlMeta
	Lat  string   `xml:"lat,attr"`
	Lon  string   `xml:"lon,attr"`
	Tags []xmlTag `xml:"tag"`
}

type xmlNd struct {
	Ref int64 `xml:"ref,attr"`
}

type xmlWay struct {
	xmlMeta
	Nds  []xmlNd  `xml:"nd"`
	Tags []xmlTag `xml:"tag"`
}

type xmlMember struct {
	Type string `xml:"type,attr"`
	Ref  int64  `xml:"ref,attr"`
	Role string `xml:"role,attr"`
}

type xmlRelation struct {
	xmlMeta
	Members []xmlMember `xml:"member"`
	Tags    []xmlTag    `xml:"tag"`
}

// WriteJOSM writes the document as OSM XML with JOSM action markers. New
// entities are written with action="modify" and their negative id, as JOSM
// expects.
func (d *Document) WriteJOSM(w io.Writer) error {
	out := xmlOSM{
		Version:   d.Version,
		Generator: d.Generator,
		Note:      d.Note,
	}
	for _, it := range d.Nodes {
		out.Nodes = append(out.Nodes, xmlNode{
			xmlMeta: josmMeta(it),
			Lat:     formatCoord(it.Entity.Lat),
			Lon:     formatCoord(it.Entity.Lon),
			Tags:    xmlTags(it.Tags),
		})
	}
	for _, it := range d.Ways {
		nds := make([]xmlNd, len(it.Entity.Refs))
		for i, ref := range it.Entity.Refs {
			nds[i] = xmlNd{Ref: ref}
		}
		out.Ways = append(out.Ways, xmlWay{xmlMeta: josmMeta(it), Nds: nds, Tags: xmlTags(it.Tags)})
	}
	for _, it := range d.Relations {
		members := make([]xmlMember, len(it.Entity.Members))
		for i, m := range it.Entity.Members {
			members[i] = xmlMember{Type: m.Kind.String(), Ref: m.Ref, Role: m.Role}
		}
		out.Relations = append(out.Relations, xmlRelation{xmlMeta: josmMeta(it), Members: members, Tags: xmlTags(it.Tags)})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode OSM XML: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func josmMeta(it Item) xmlMeta {
	m := xmlMeta{
		ID:        it.Entity.ID,
		Visible:   "true",
		Version:   it.Entity.Meta.Version,
		Changeset: it.Entity.Meta.Changeset,
		User:      it.Entity.Meta.User,
		UID:       it.Entity.Meta.UID,
	}
	if !it.Entity.Meta.Timestamp.IsZero() {
		m.Timestamp = it.Entity.Meta.Timestamp.UTC().Format(time.RFC3339)
	}
	switch it.Action {
	case ActionCreate, ActionModify:
		m.Action = "modify"
	case ActionDelete:
		m.Action = "delete"
	}
	return m
}

func xmlTags(t *entity.Tags) []xmlTag {
	tags := make([]xmlTag, 0, t.Len())
	t.Each(func(k, v string) {
		tags = append(tags, xmlTag{K: k, V: v})
	})
	return tags
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
