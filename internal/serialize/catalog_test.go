package serialize

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/restport/catalog"
)

func testCatalog() catalog.Catalog {
	schema := arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int64}}, nil)
	scan := func(ctx context.Context, opts *catalog.ScanOptions) (array.RecordReader, error) {
		return nil, errors.New("not scanned")
	}
	cat := catalog.NewStaticCatalog()
	cat.AddSchema("weather", "", map[string]catalog.Table{
		"stations":     catalog.NewStaticTable("stations", "", schema, scan),
		"observations": catalog.NewStaticTable("observations", "", schema, scan),
	})
	cat.AddSchema("empty", "", nil)
	return cat
}

func readListing(t *testing.T, data []byte) arrow.RecordBatch {
	t.Helper()
	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer reader.Release()

	if !reader.Schema().Equal(TablesSchema) {
		t.Fatalf("schema = %v, want %v", reader.Schema(), TablesSchema)
	}
	if !reader.Next() {
		t.Fatalf("no record: %v", reader.Err())
	}
	rec := reader.RecordBatch()
	rec.Retain()
	return rec
}

func TestSerializeCatalog(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	data, err := SerializeCatalog(context.Background(), testCatalog(), mem)
	if err != nil {
		t.Fatalf("SerializeCatalog: %v", err)
	}

	rec := readListing(t, data)
	defer rec.Release()

	if rec.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", rec.NumRows())
	}
	catalogs := rec.Column(0).(*array.String)
	schemas := rec.Column(1).(*array.String)
	tables := rec.Column(2).(*array.String)
	types := rec.Column(3).(*array.String)

	want := []string{"observations", "stations"}
	for i, name := range want {
		if !catalogs.IsNull(i) {
			t.Errorf("row %d: catalog_name should be null", i)
		}
		if schemas.Value(i) != "weather" {
			t.Errorf("row %d: schema = %q", i, schemas.Value(i))
		}
		if tables.Value(i) != name {
			t.Errorf("row %d: table = %q, want %q", i, tables.Value(i), name)
		}
		if types.Value(i) != "TABLE" {
			t.Errorf("row %d: type = %q", i, types.Value(i))
		}
	}
}

func TestSerializeEmptyCatalog(t *testing.T) {
	data, err := SerializeCatalog(context.Background(), catalog.NewStaticCatalog(), memory.NewGoAllocator())
	if err != nil {
		t.Fatalf("SerializeCatalog: %v", err)
	}
	rec := readListing(t, data)
	defer rec.Release()
	if rec.NumRows() != 0 {
		t.Errorf("rows = %d, want 0", rec.NumRows())
	}
}

func TestSerializeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SerializeCatalog(ctx, testCatalog(), memory.NewGoAllocator())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("restport catalog "), 200)

	compressed, err := CompressCatalog(data)
	if err != nil {
		t.Fatalf("CompressCatalog: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed %d bytes into %d", len(data), len(compressed))
	}
	out, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("round trip mismatch")
	}
}

func TestCompressedContent(t *testing.T) {
	data := []byte("serialized flight infos")
	body, err := CompressedContent(data)
	if err != nil {
		t.Fatalf("CompressedContent: %v", err)
	}
	out, err := DecodeCompressedContent(body)
	if err != nil {
		t.Fatalf("DecodeCompressedContent: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("got %q, want %q", out, data)
	}
}

func TestCompressEmpty(t *testing.T) {
	out, err := CompressCatalog(nil)
	if err != nil || len(out) != 0 {
		t.Errorf("CompressCatalog(nil) = %v, %v", out, err)
	}
}
