package mirror

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"priceradar/business/normalize"
	"priceradar/domain"
	"priceradar/pkg/config"
)

type fakeWriter struct {
	products []domain.CatalogProduct
	variants []domain.CatalogVariant
	probed   bool
}

func (f *fakeWriter) EnsureBulkUpsert(_ context.Context) error {
	f.probed = true
	return nil
}

func (f *fakeWriter) UpsertProducts(_ context.Context, products []domain.CatalogProduct) error {
	f.products = append(f.products, products...)
	return nil
}

func (f *fakeWriter) UpsertVariants(_ context.Context, variants []domain.CatalogVariant) error {
	f.variants = append(f.variants, variants...)
	return nil
}

func TestImporterWalksPaginatedCatalog(t *testing.T) {
	page2 := `{"products":[{"id":2,"handle":"iphone-12","title":"iPhone 12","vendor":"Apple","product_type":"Phone","variants":[
		{"id":21,"sku":"IP12-64-BK","title":"64GB / Black / Good","option1":"64GB","option2":"Black","option3":"Good"}]}]}`
	page1 := `{"products":[{"id":1,"handle":"iphone-13-pro","title":"iPhone 13 Pro","vendor":"Apple","product_type":"Phone","variants":[
		{"id":11,"sku":"IP13P-256-BL","title":"256GB / Blue / Good","option1":"256GB","option2":"Blue","option3":"Good"},
		{"id":12,"sku":"","title":"128GB Silver Excellent","option1":"","option2":"","option3":""}]}]}`

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Shopify-Access-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_info") == "p2" {
			fmt.Fprint(w, page2)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2026-01/products.json?page_info=p2>; rel="next"`, server.URL))
		fmt.Fprint(w, page1)
	}))
	defer server.Close()

	writer := &fakeWriter{}
	im, err := NewImporter(config.MirrorConfig{
		ShopURL:     server.URL,
		AccessToken: "tok",
		APIVersion:  "2026-01",
		PageSize:    250,
	}, writer, normalize.DefaultVocabulary(), nil)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}

	summary, err := im.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !writer.probed {
		t.Fatal("expected the writer strategy probe to run first")
	}
	if summary.Pages != 2 || summary.Products != 2 || summary.Variants != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// handles feed the Green Gadgets crawl keys, so losing them breaks a
	// whole competitor
	handles := map[uint64]string{}
	for _, p := range writer.products {
		handles[p.ProductID] = p.Handle
	}
	if handles[1] != "iphone-13-pro" || handles[2] != "iphone-12" {
		t.Fatalf("unexpected product handles: %v", handles)
	}

	// option slots take precedence; blank slots fall back to the title
	byID := map[uint64]domain.CatalogVariant{}
	for _, v := range writer.variants {
		byID[v.VariantID] = v
	}
	if v := byID[11]; v.Storage != "256GB" || v.Color != "Blue" || v.Condition != "Good" {
		t.Fatalf("variant 11 attributes: %+v", v)
	}
	if v := byID[12]; v.Storage != "128GB" || v.Color != "Silver" || v.Condition != "Excellent" {
		t.Fatalf("variant 12 should recover attributes from its title: %+v", v)
	}
}

func TestImporterRequiresConfiguration(t *testing.T) {
	if _, err := NewImporter(config.MirrorConfig{AccessToken: "tok"}, &fakeWriter{}, normalize.DefaultVocabulary(), nil); err == nil {
		t.Fatal("expected missing shop URL to be rejected")
	}
	if _, err := NewImporter(config.MirrorConfig{ShopURL: "https://x"}, &fakeWriter{}, normalize.DefaultVocabulary(), nil); err == nil {
		t.Fatal("expected missing access token to be rejected")
	}
}

type fakeCacheDropper struct {
	calls    int
	written  *fakeWriter
	seenRows int
}

func (f *fakeCacheDropper) Invalidate(_ context.Context) error {
	f.calls++
	f.seenRows = len(f.written.products)
	return nil
}

func TestImporterDropsCatalogCacheAfterImport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"products":[{"id":1,"handle":"iphone-13-pro","title":"iPhone 13 Pro","variants":[]}]}`)
	}))
	defer server.Close()

	writer := &fakeWriter{}
	dropper := &fakeCacheDropper{written: writer}
	im, err := NewImporter(config.MirrorConfig{
		ShopURL:     server.URL,
		AccessToken: "tok",
		APIVersion:  "2026-01",
		PageSize:    250,
	}, writer, normalize.DefaultVocabulary(), dropper)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}

	if _, err := im.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if dropper.calls != 1 {
		t.Fatalf("expected one cache invalidation, got %d", dropper.calls)
	}
	if dropper.seenRows != 1 {
		t.Fatal("cache must be dropped after the mirror rows were written")
	}
}

func TestNextPageURL(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"only previous", `<https://s/x?page_info=a>; rel="previous"`, ""},
		{"next only", `<https://s/x?page_info=b>; rel="next"`, "https://s/x?page_info=b"},
		{
			"previous and next",
			`<https://s/x?page_info=a>; rel="previous", <https://s/x?page_info=b>; rel="next"`,
			"https://s/x?page_info=b",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := nextPageURL(tc.header); got != tc.want {
				t.Fatalf("nextPageURL(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}
