package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aluiziolira/go-wishlist-tracker/models"
)

func TestRawItemsRoundTrip(t *testing.T) {
	availability := "Em estoque"
	items := []models.RawItem{
		{Name: "Livro", URL: "https://shop.test/dp/A", ReviewCount: 3, ReviewStars: "4.0", AddedDate: "Item adicionado 1 de maio de 2023", Availability: &availability, Price: float(39.9)},
		{Name: "Sem preço", URL: "https://shop.test/dp/B"},
	}

	data, err := EncodeRawItems(items)
	if err != nil {
		t.Fatalf("EncodeRawItems() error = %v", err)
	}
	if strings.Contains(string(data), "delivery_price") {
		t.Fatalf("absent prices should be omitted: %s", data)
	}

	got, err := DecodeRawItems(data)
	if err != nil {
		t.Fatalf("DecodeRawItems() error = %v", err)
	}
	if diff := cmp.Diff(items, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeRawItemsEmpty(t *testing.T) {
	data, err := EncodeRawItems(nil)
	if err != nil {
		t.Fatalf("EncodeRawItems() error = %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("EncodeRawItems(nil) = %s, want []", data)
	}
}

func TestTableRoundTrip(t *testing.T) {
	ref := time.Date(2024, 2, 29, 23, 59, 1, 250000000, time.Local)
	table := models.NewTable([]models.DerivedRow{
		{Name: "Livro; com separador", URL: "https://shop.test/dp/A", ReviewCount: 12, ReviewStars: "4.5", AddedDate: "5/3/2023", TotalPrice: 115.5, Availability: 1, ReferenceDate: ref},
		{Name: "Indisponível", URL: "https://shop.test/dp/B", AddedDate: "1/1/2022", TotalPrice: -1, Availability: 0, ReferenceDate: ref},
	})

	for _, sep := range []rune{',', ';'} {
		data, err := EncodeTable(table, sep)
		if err != nil {
			t.Fatalf("EncodeTable(%q) error = %v", sep, err)
		}
		got, err := DecodeTable(data, sep)
		if err != nil {
			t.Fatalf("DecodeTable(%q) error = %v", sep, err)
		}
		if diff := cmp.Diff(table, got); diff != "" {
			t.Fatalf("round trip with %q mismatch (-want +got):\n%s", sep, diff)
		}
	}
}

func TestEncodeTableFormat(t *testing.T) {
	ref := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	table := models.NewTable([]models.DerivedRow{
		{Name: "A", URL: "u", ReviewCount: 1, ReviewStars: "5.0", AddedDate: "2/1/2024", TotalPrice: 10, Availability: 1, ReferenceDate: ref},
	})

	data, err := EncodeTable(table, ';')
	if err != nil {
		t.Fatalf("EncodeTable() error = %v", err)
	}
	want := "name;url;review_count;review_stars;added_date;total_price;availability;reference_date\n" +
		"A;u;1;5.0;2/1/2024;10;1;2024-01-02 03:04:05\n"
	if string(data) != want {
		t.Fatalf("EncodeTable() =\n%s\nwant\n%s", data, want)
	}
}

func TestDecodeTableLegacyIndex(t *testing.T) {
	data := ";name;url;review_count;review_stars;added_date;total_price;availability;reference_date\n" +
		"0;A;u;3.0;4,5;5/3/2023;99.9;1;2023-03-06 10:00:00.5\n"

	table, err := DecodeTable([]byte(data), ';')
	if err != nil {
		t.Fatalf("DecodeTable() error = %v", err)
	}
	if diff := cmp.Diff(models.TableColumns, table.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	row := table.Rows[0]
	if row.Name != "A" || row.ReviewCount != 3 || row.ReviewStars != "4,5" || row.TotalPrice != 99.9 {
		t.Fatalf("unexpected row: %+v", row)
	}
	wantRef := time.Date(2023, 3, 6, 10, 0, 0, 500000000, time.Local)
	if !row.ReferenceDate.Equal(wantRef) {
		t.Fatalf("reference date = %v, want %v", row.ReferenceDate, wantRef)
	}
}

func TestDecodeTableErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "short record", data: "name,url\nA\n"},
		{name: "bad price", data: "name,total_price\nA,cheap\n"},
		{name: "bad reference date", data: "name,reference_date\nA,yesterday\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTable([]byte(tt.data), ','); err == nil {
				t.Fatal("DecodeTable() error = nil, want error")
			}
		})
	}
}
