package columnar

import (
	"context"
	"strings"
)

// IndexRow mirrors the schema of the national index parquet file.
type IndexRow struct {
	Comune        string `parquet:"comune"`
	File          string `parquet:"file"`
	Codistat      string `parquet:"CODISTAT"`
	Denominazione string `parquet:"DENOMINAZIONE_IT"`
}

// ParcelRow mirrors the schema of a regional parquet file. The census
// section is not a column of its own; it is carried inside the INSPIRE
// local id.
type ParcelRow struct {
	Comune     string `parquet:"comune"`
	Foglio     string `parquet:"foglio"`
	Particella string `parquet:"particella"`
	X          int64  `parquet:"x"`
	Y          int64  `parquet:"y"`
	InspireID  string `parquet:"INSPIREID_LOCALID"`
}

// Catalog binds the client to the published dataset layout: one national
// index file plus one regional file per partition, all under a common base
// URL.
type Catalog struct {
	client   *Client
	indexURL string
	baseURL  string
}

func NewCatalog(client *Client, indexURL, baseURL string) *Catalog {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Catalog{client: client, indexURL: indexURL, baseURL: baseURL}
}

// Municipalities scans the index dataset.
func (ct *Catalog) Municipalities(ctx context.Context, keep func(IndexRow) bool) ([]IndexRow, error) {
	return Query(ctx, ct.client, ct.indexURL, keep)
}

// Parcels scans one regional dataset, identified by the file name the index
// maps the municipality to.
func (ct *Catalog) Parcels(ctx context.Context, sourceFile string, keep func(ParcelRow) bool) ([]ParcelRow, error) {
	return Query(ctx, ct.client, ct.baseURL+sourceFile, keep)
}
