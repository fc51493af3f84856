package notion

import (
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// The API returns heterogeneous objects; everything is normalized here so callers
// never inspect raw response shapes.

func blockResource(block notionapi.Block) Resource {
	switch b := block.(type) {
	case *notionapi.ChildDatabaseBlock:
		return Resource{ID: b.ID.String(), Kind: KindDatabase, Title: b.ChildDatabase.Title}
	case *notionapi.ChildPageBlock:
		return Resource{ID: b.ID.String(), Kind: KindPage, Title: b.ChildPage.Title}
	default:
		return Resource{ID: block.GetID().String(), Kind: KindBlock}
	}
}

func pageResource(page *notionapi.Page) Resource {
	return Resource{
		ID:    page.ID.String(),
		Kind:  KindPage,
		Title: pageTitle(page.Properties),
		Icon:  iconString(page.Icon),
	}
}

func databaseResource(db *notionapi.Database) Resource {
	return Resource{
		ID:    db.ID.String(),
		Kind:  KindDatabase,
		Title: plainText(db.Title),
		Icon:  iconString(db.Icon),
	}
}

func pageTitle(props notionapi.Properties) string {
	for _, prop := range props {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			return plainText(title.Title)
		}
	}
	return ""
}

func pageRecord(page *notionapi.Page) Record {
	rec := Record{
		ID:    page.ID.String(),
		Props: make(map[string]string, len(page.Properties)),
	}
	for name, prop := range page.Properties {
		value := propertyText(prop)
		rec.Props[name] = value
		if _, ok := prop.(*notionapi.TitleProperty); ok {
			rec.Title = value
		}
	}
	return rec
}

func propertyText(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case *notionapi.URLProperty:
		return p.URL
	case *notionapi.NumberProperty:
		return strconv.FormatFloat(p.Number, 'f', -1, 64)
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.DateProperty:
		if p.Date == nil || p.Date.Start == nil {
			return ""
		}
		return time.Time(*p.Date.Start).Format(time.RFC3339)
	case *notionapi.RelationProperty:
		ids := make([]string, 0, len(p.Relation))
		for _, rel := range p.Relation {
			ids = append(ids, rel.ID.String())
		}
		return strings.Join(ids, ",")
	default:
		return ""
	}
}

func iconString(icon *notionapi.Icon) string {
	if icon == nil {
		return ""
	}
	if icon.Emoji != nil {
		return string(*icon.Emoji)
	}
	if icon.External != nil {
		return icon.External.URL
	}
	if icon.File != nil {
		return icon.File.URL
	}
	return ""
}
