// Package schema describes the five relations the sync pipeline writes to,
// checks that a store provides them, and renders reference DDL.
//
// The pipeline never creates or alters tables. The DDL rendered here is what
// operators apply once (see "bizsync check --print-ddl") and what tests use to
// build fixture databases.
package schema

// Table names.
const (
	Businesses             = "businesses"
	Categories             = "categories"
	ServiceCategories      = "service_categories"
	ServiceOptions         = "service_options"
	BusinessServiceOptions = "business_service_options"
)

// Required lists the relations that must exist before a run, in write order.
var Required = []string{
	Businesses,
	Categories,
	ServiceCategories,
	ServiceOptions,
	BusinessServiceOptions,
}

// Column sets written by the pipeline for the lookup tables.
var (
	CategoryColumns        = []string{"category_id", "name", "url", "count", "description", "created_at", "updated_at"}
	ServiceCategoryColumns = []string{"category_id", "name", "slug", "description", "created_at"}
	ServiceOptionColumns   = []string{"option_id", "category_id", "name", "slug", "business_count", "created_at"}
	LinkColumns            = []string{"business_id", "option_id", "created_at"}
)

// Column describes one column of the reference schema. SQLType uses portable
// names (TEXT, VARCHAR(n), INTEGER, TIMESTAMP) translated per dialect at
// render time.
type Column struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	Default    string
}

// ForeignKey references a parent table column; deletes cascade.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Table is one relation of the reference schema.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	// Indexes are single-column secondary indexes.
	Indexes []string
}

// PrimaryKey returns the key columns in declaration order.
func (t Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// ColumnNames returns all column names in declaration order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// BusinessTextColumns are the descriptive business columns, all TEXT, in the
// order of the reference table. data_id and url are keyed separately.
var BusinessTextColumns = []string{
	"title", "place_id", "data_cid", "gps_coordinates", "provider_id",
	"rating", "reviews", "type", "types", "address", "open_state",
	"operating_hours", "phone", "website", "description", "thumbnail",
	"street", "city", "country",
	"reviews_per_1", "reviews_per_2", "reviews_per_3", "reviews_per_4", "reviews_per_5",
	"photo_count", "logo", "owner", "category", "service_option", "place_url",
	"note_from_owner", "description_arr", "state", "zip_code", "not_claimed",
	"reviews_link", "email", "social_media_links",
	"facebook", "twitter", "instagram", "linkedin", "youtube", "pinterest",
	"tumblr", "reddit", "snapchat", "quora", "flickr", "vimeo", "medium",
	"soundcloud", "tiktok", "mix", "vk", "meetup",
	"operation_state", "full_description", "price", "query", "location",
	"start", "language", "location_name",
}

// Contract returns the reference definition of every required table.
func Contract() []Table {
	biz := Table{Name: Businesses}
	biz.Columns = append(biz.Columns, Column{Name: "data_id", SQLType: "VARCHAR(255)", PrimaryKey: true})
	for _, c := range BusinessTextColumns {
		biz.Columns = append(biz.Columns, Column{Name: c, SQLType: "TEXT", Nullable: true})
	}
	biz.Columns = append(biz.Columns, Column{Name: "url", SQLType: "TEXT", Nullable: true})

	return []Table{
		biz,
		{
			Name: Categories,
			Columns: []Column{
				{Name: "category_id", SQLType: "VARCHAR(50)", PrimaryKey: true},
				{Name: "name", SQLType: "VARCHAR(255)"},
				{Name: "url", SQLType: "VARCHAR(255)", Unique: true},
				{Name: "count", SQLType: "INTEGER", Nullable: true, Default: "0"},
				{Name: "description", SQLType: "TEXT", Nullable: true},
				{Name: "created_at", SQLType: "TIMESTAMP", Nullable: true, Default: "CURRENT_TIMESTAMP"},
				{Name: "updated_at", SQLType: "TIMESTAMP", Nullable: true, Default: "CURRENT_TIMESTAMP"},
			},
			Indexes: []string{"name", "url"},
		},
		{
			Name: ServiceCategories,
			Columns: []Column{
				{Name: "category_id", SQLType: "VARCHAR(50)", PrimaryKey: true},
				{Name: "name", SQLType: "VARCHAR(255)"},
				{Name: "slug", SQLType: "VARCHAR(255)", Unique: true},
				{Name: "description", SQLType: "TEXT", Nullable: true},
				{Name: "created_at", SQLType: "TIMESTAMP", Nullable: true, Default: "CURRENT_TIMESTAMP"},
			},
			Indexes: []string{"slug"},
		},
		{
			Name: ServiceOptions,
			Columns: []Column{
				{Name: "option_id", SQLType: "VARCHAR(50)", PrimaryKey: true},
				{Name: "category_id", SQLType: "VARCHAR(50)"},
				{Name: "name", SQLType: "VARCHAR(255)"},
				{Name: "slug", SQLType: "VARCHAR(255)"},
				{Name: "business_count", SQLType: "INTEGER", Nullable: true, Default: "0"},
				{Name: "created_at", SQLType: "TIMESTAMP", Nullable: true, Default: "CURRENT_TIMESTAMP"},
			},
			ForeignKeys: []ForeignKey{{Column: "category_id", RefTable: ServiceCategories, RefColumn: "category_id"}},
			Indexes:     []string{"category_id", "slug"},
		},
		{
			Name: BusinessServiceOptions,
			Columns: []Column{
				{Name: "business_id", SQLType: "VARCHAR(255)", PrimaryKey: true},
				{Name: "option_id", SQLType: "VARCHAR(50)", PrimaryKey: true},
				{Name: "created_at", SQLType: "TIMESTAMP", Nullable: true, Default: "CURRENT_TIMESTAMP"},
			},
			ForeignKeys: []ForeignKey{{Column: "option_id", RefTable: ServiceOptions, RefColumn: "option_id"}},
			Indexes:     []string{"business_id", "option_id"},
		},
	}
}

// Lookup returns the contract table named name.
func Lookup(name string) (Table, bool) {
	for _, t := range Contract() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
