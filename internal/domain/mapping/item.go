package mapping

import (
	"context"
	"fmt"
	"math"
	"strings"

	"airsync/internal/domain/entity"
	"airsync/internal/infrastructure/airtable"
)

const (
	imageAttachmentName = "image-1440"
	itemTypeConsumable  = "consumable"
)

var itemFields = []string{
	"Name",
	airtable.FieldID,
	"Collection",
	"Container",
	"Type",
	"Can Contain Items",
	"Ref. No.",
	"Serial",
	"Individual Asset Ref.",
	"Manually Set Individual Asset Ref.",
	"Notes",
	"Model Name",
	"PPC",
	"Purchase Price",
	"Purchased From",
	"Purchase Date",
	"Expiry Date",
	"Stock Quantity",
	"Stock Quantity Unit",
	"Will Not Restock",
	"Icon Name",
	"Icon Color",
	"Images",
	"Use First Image as Icon",
	"RFID EPC Hex",
	"Manually Set RFID EPC Hex",
	"Updated At",
	"Created At",
	"Remove All Images",
}

// ItemOptions зависимости конвертера предметов
type ItemOptions struct {
	Repo          entity.Repository
	IntegrationID string
	Fields        airtable.TableFields
	Collections   Refs
	Containers    Refs
	// ImagesPublicEndpoint пустой, если изображения не выгружаются
	ImagesPublicEndpoint string
}

// ItemConverter конвертер предметов
type ItemConverter struct {
	base
	collections    Refs
	containers     Refs
	imagesEndpoint string

	// кэши remote id -> local id на время одного прогона
	collectionIDs map[string]string
	itemIDs       map[string]string
}

// NewItemConverter создает конвертер для таблицы Items
func NewItemConverter(opts ItemOptions) *ItemConverter {
	return &ItemConverter{
		base: base{
			repo:          opts.Repo,
			integrationID: opts.IntegrationID,
			fields:        opts.Fields,
		},
		collections:    opts.Collections,
		containers:     opts.Containers,
		imagesEndpoint: strings.TrimRight(opts.ImagesPublicEndpoint, "/"),
		collectionIDs:  map[string]string{},
		itemIDs:        map[string]string{},
	}
}

// WithRefs возвращает копию конвертера с другими резолверами ссылок
func (c *ItemConverter) WithRefs(collections, containers Refs) *ItemConverter {
	cp := *c
	cp.collections = collections
	cp.containers = containers
	return &cp
}

func (c *ItemConverter) Type() string  { return entity.TypeItem }
func (c *ItemConverter) Table() string { return airtable.TableItems }

func (c *ItemConverter) Fields() []string {
	return c.filterNames(itemFields)
}

func (c *ItemConverter) ToRecord(ctx context.Context, d *entity.Datum) (airtable.Record, error) {
	collection, err := c.resolve(ctx, c.collections, d.String("collection_id"))
	if err != nil {
		return airtable.Record{}, fmt.Errorf("failed to resolve collection of item %s: %w", d.ID, err)
	}
	container, err := c.resolve(ctx, c.containers, d.String("container_id"))
	if err != nil {
		return airtable.Record{}, fmt.Errorf("failed to resolve container of item %s: %w", d.ID, err)
	}

	itemType := d.String("item_type")
	if itemType == "" {
		itemType = "item"
	}

	fields := map[string]any{
		"Name":                d.String("name"),
		airtable.FieldID:      d.ID,
		"Collection":          collection,
		"Container":           container,
		"Type":                strings.ReplaceAll(toTitleCase(strings.ReplaceAll(itemType, "_", " ")), " With ", " with "),
		"Ref. No.":            d.String("item_reference_number"),
		"Notes":               d.String("notes"),
		"Model Name":          d.String("model_name"),
		"Purchase Price":      nil,
		"Purchased From":      d.String("purchased_from"),
		"Stock Quantity Unit": d.String("consumable_stock_quantity_unit"),
		"Will Not Restock":    false,
		"Icon Name":           d.String("icon_name"),
		"Icon Color":          d.String("icon_color"),
		"Remove All Images":   false,
	}

	setBool := func(key, attr string) {
		if v, ok := d.Bool(attr); ok {
			fields[key] = v
		}
	}
	setString := func(key, attr string) {
		if v, ok := d.Fields[attr].(string); ok {
			fields[key] = v
		}
	}

	setBool("Can Contain Items", "_can_contain_items")
	if v, ok := d.Number("serial"); ok {
		fields["Serial"] = v
	}
	setString("Individual Asset Ref.", "individual_asset_reference")
	setBool("Manually Set Individual Asset Ref.", "individual_asset_reference_manually_set")
	if v := d.String("purchase_price_currency"); v != "" {
		fields["PPC"] = v
	}
	if v, ok := d.Number("purchase_price_x1000"); ok {
		fields["Purchase Price"] = v / 1000
	}
	if v, ok := d.Number("purchase_date"); ok {
		fields["Purchase Date"] = formatMillis(v)
	}
	if v, ok := d.Number("expiry_date"); ok {
		fields["Expiry Date"] = formatMillis(v)
	}
	if v, ok := d.Number("consumable_stock_quantity"); ok {
		fields["Stock Quantity"] = v
	}
	setBool("Will Not Restock", "consumable_will_not_restock")
	setBool("Use First Image as Icon", "use_first_image_as_icon")
	setString("RFID EPC Hex", "rfid_tag_epc_memory_bank_contents")
	setBool("Manually Set RFID EPC Hex", "rfid_tag_epc_memory_bank_contents_manually_set")
	if !d.UpdatedAt.IsZero() {
		fields["Updated At"] = formatTime(d.UpdatedAt)
	}
	if !d.CreatedAt.IsZero() {
		fields["Created At"] = formatTime(d.CreatedAt)
	}

	if c.imagesEndpoint != "" && c.fields.Has("Images") {
		images, err := c.images(ctx, d)
		if err != nil {
			return airtable.Record{}, err
		}
		fields["Images"] = images
	}

	return airtable.Record{Fields: c.project(fields)}, nil
}

func (c *ItemConverter) resolve(ctx context.Context, refs Refs, localID string) ([]string, error) {
	if localID == "" || refs == nil {
		return []string{}, nil
	}
	rid, ok, err := refs.Resolve(ctx, localID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	return []string{rid}, nil
}

// images строит значение поля вложений из изображений предмета
func (c *ItemConverter) images(ctx context.Context, d *entity.Datum) ([]map[string]any, error) {
	itemImages, err := c.repo.GetData(ctx, entity.TypeItemImage, entity.Conditions{
		Equals: map[string]any{"item_id": d.ID},
	}, entity.QueryOptions{SortBy: "order"})
	if err != nil {
		return nil, fmt.Errorf("failed to get images of item %s: %w", d.ID, err)
	}

	out := []map[string]any{}
	for _, ii := range itemImages {
		if !ii.Valid {
			continue
		}
		imageID := ii.String("image_id")
		info, err := c.repo.GetAttachmentInfo(ctx, &entity.Datum{Type: entity.TypeImage, ID: imageID}, imageAttachmentName)
		if err != nil {
			return nil, fmt.Errorf("failed to get attachment of image %s: %w", imageID, err)
		}
		if info == nil {
			continue
		}
		ext := "jpg"
		if info.ContentType == "image/png" {
			ext = "png"
		}
		filename := imageID + "." + ext
		out = append(out, map[string]any{
			"url":      c.imagesEndpoint + "/" + filename,
			"filename": filename,
		})
	}
	return out, nil
}

func (c *ItemConverter) FromRecord(ctx context.Context, r airtable.Record) (*entity.Datum, error) {
	d, err := c.draft(ctx, entity.TypeItem, r)
	if err != nil {
		return nil, err
	}

	c.readString(d, r, "Name", "name")

	if c.fields.Has("Collection") {
		id, err := c.localID(ctx, entity.TypeCollection, c.collectionIDs, firstLinkedID(r.Fields["Collection"]))
		if err != nil {
			return nil, err
		}
		d.Set("collection_id", nilIfEmpty(id))
	}

	if c.fields.Has("Type") {
		value, _ := r.Fields["Type"].(string)
		if value == "" {
			value = "item"
		}
		itemType := strings.ReplaceAll(strings.ToLower(value), " ", "_")
		if itemType == "item" {
			d.Set("item_type", nil)
		} else {
			d.Set("item_type", itemType)
		}
	}

	if c.fields.Has("Container") {
		id, err := c.localID(ctx, entity.TypeItem, c.itemIDs, firstLinkedID(r.Fields["Container"]))
		if err != nil {
			return nil, err
		}
		d.Set("container_id", nilIfEmpty(id))
	}

	c.readString(d, r, "Ref. No.", "item_reference_number")
	c.readNumber(d, r, "Serial", "serial")
	c.readString(d, r, "Individual Asset Ref.", "individual_asset_reference")
	c.readBool(d, r, "Manually Set Individual Asset Ref.", "individual_asset_reference_manually_set")
	c.readString(d, r, "Notes", "notes")
	c.readString(d, r, "Model Name", "model_name")
	c.readString(d, r, "PPC", "purchase_price_currency")

	if c.fields.Has("Purchase Price") {
		if v, ok := r.Fields["Purchase Price"].(float64); ok {
			d.Set("purchase_price_x1000", math.Round(v*1000))
		} else {
			d.Set("purchase_price_x1000", nil)
		}
	}

	c.readString(d, r, "Purchased From", "purchased_from")
	c.readDate(d, r, "Purchase Date", "purchase_date")
	c.readDate(d, r, "Expiry Date", "expiry_date")

	if c.fields.Has("Stock Quantity") {
		if v, ok := r.Fields["Stock Quantity"].(float64); ok {
			d.Set("consumable_stock_quantity", v)
		} else if d.String("item_type") == itemTypeConsumable {
			d.Set("consumable_stock_quantity", float64(1))
		} else {
			d.Set("consumable_stock_quantity", nil)
		}
	}

	c.readString(d, r, "Stock Quantity Unit", "consumable_stock_quantity_unit")
	c.readBool(d, r, "Will Not Restock", "consumable_will_not_restock")
	c.readString(d, r, "Icon Name", "icon_name")
	c.readString(d, r, "Icon Color", "icon_color")
	c.readBool(d, r, "Use First Image as Icon", "use_first_image_as_icon")
	c.readString(d, r, "RFID EPC Hex", "rfid_tag_epc_memory_bank_contents")
	c.readBool(d, r, "Manually Set RFID EPC Hex", "rfid_tag_epc_memory_bank_contents_manually_set")

	// предмет без коллекции наследует коллекцию контейнера
	if d.String("collection_id") == "" {
		if containerID := d.String("container_id"); containerID != "" {
			container, err := c.repo.GetDatum(ctx, entity.TypeItem, containerID)
			if err == nil {
				d.Set("collection_id", nilIfEmpty(container.String("collection_id")))
			}
		}
	}

	c.link(d, r)
	return d, nil
}

// localID находит локальный id по id удаленной записи с кэшированием
func (c *ItemConverter) localID(ctx context.Context, typ string, cache map[string]string, recordID string) (string, error) {
	if recordID == "" {
		return "", nil
	}
	if id, ok := cache[recordID]; ok {
		return id, nil
	}
	d, err := c.findLinked(ctx, typ, recordID)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", nil
	}
	cache[recordID] = d.ID
	return d.ID, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
