// pkg/model/record.go
package model

// Well-known record field names. The catalog source projects these columns;
// the enricher adds the geocoding group when a store name resolves.
const (
	FieldCode            = "code"
	FieldProductName     = "product_name"
	FieldBrands          = "brands"
	FieldCategories      = "categories"
	FieldStores          = "stores"
	FieldNutriscoreGrade = "nutriscore_grade"
	FieldNovaGroup       = "nova_group"
	FieldEnergy          = "energy_100g"
	FieldSugars          = "sugars_100g"
	FieldFat             = "fat_100g"
	FieldSalt            = "salt_100g"

	FieldStoreAddress   = "store_address"
	FieldLatitude       = "latitude"
	FieldLongitude      = "longitude"
	FieldCity           = "city"
	FieldPostalCode     = "postal_code"
	FieldGeocodingScore = "geocoding_score"
)

// PreferredColumnOrder lists well-known fields in the order the final table
// should present them. Fields absent from a batch are simply skipped.
var PreferredColumnOrder = []string{
	FieldCode,
	FieldProductName,
	FieldBrands,
	FieldCategories,
	FieldStores,
	FieldNutriscoreGrade,
	FieldNovaGroup,
	FieldEnergy,
	FieldSugars,
	FieldFat,
	FieldSalt,
	FieldStoreAddress,
	FieldLatitude,
	FieldLongitude,
	FieldCity,
	FieldPostalCode,
	FieldGeocodingScore,
}

// Record is one catalog item flowing through the pipeline. Code and Stores
// are the two fields the pipeline itself branches on; every other attribute
// rides along in Extra untouched until the transformation stage.
type Record struct {
	Code   string         // unique catalog code (barcode)
	Stores string         // free-text, comma-separated store names
	Extra  map[string]any // passthrough attributes (nutrition facts, labels, ...)
}

// Clone returns a copy of the record with its own Extra map. Pipeline stages
// that mutate fields must clone first so earlier stages keep their input.
func (r Record) Clone() Record {
	out := Record{
		Code:   r.Code,
		Stores: r.Stores,
		Extra:  make(map[string]any, len(r.Extra)+6),
	}
	for k, v := range r.Extra {
		out.Extra[k] = v
	}
	return out
}

// Row flattens the record into a column->value mapping for tabular
// processing. An empty Stores field is treated as a missing cell.
func (r Record) Row() map[string]any {
	row := make(map[string]any, len(r.Extra)+2)
	row[FieldCode] = r.Code
	if r.Stores != "" {
		row[FieldStores] = r.Stores
	}
	for k, v := range r.Extra {
		row[k] = v
	}
	return row
}
