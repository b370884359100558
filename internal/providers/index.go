package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gopkg.in/olivere/elastic.v5"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

// indexDocument is a hotel as stored in the search index.
type indexDocument struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"location"`
	Price     float64  `json:"price"`
	Currency  string   `json:"currency"`
	Rating    *float64 `json:"rating,omitempty"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
	Amenities []string `json:"amenities,omitempty"`
	Images    []string `json:"images,omitempty"`
	URL       string   `json:"url,omitempty"`
}

// IndexProvider searches hotels in an Elasticsearch index.
type IndexProvider struct {
	name   string
	client *elastic.Client
	index  string
	size   int
}

// NewElasticClient connects to the given Elasticsearch URL without sniffing.
func NewElasticClient(url string, httpClient *http.Client) (*elastic.Client, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	}
	if httpClient != nil {
		opts = append(opts, elastic.SetHttpClient(httpClient))
	}
	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}
	return client, nil
}

// NewIndexProvider creates an IndexProvider reading at most size hits per query.
func NewIndexProvider(name string, client *elastic.Client, index string, size int) *IndexProvider {
	if size <= 0 {
		size = 500
	}
	return &IndexProvider{name: name, client: client, index: index, size: size}
}

// Name returns the provider name.
func (p *IndexProvider) Name() string {
	return p.name
}

// Search matches the query location against city, country and address.
func (p *IndexProvider) Search(ctx context.Context, query types.SearchQuery) ([]types.Hotel, error) {
	q := elastic.NewBoolQuery().
		Should(
			elastic.NewMatchQuery("city", query.Location),
			elastic.NewMatchQuery("country", query.Location),
			elastic.NewMatchQuery("address", query.Location),
		).
		MinimumNumberShouldMatch(1)

	res, err := p.client.Search().
		Index(p.index).
		Query(q).
		Size(p.size).
		Do(ctx)
	if err != nil {
		return nil, NewProviderError(p.name, fmt.Errorf("index search: %w", err))
	}
	if res.Hits == nil {
		return nil, nil
	}

	hotels := make([]types.Hotel, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		if hit.Source == nil {
			return nil, NewProviderError(p.name, fmt.Errorf("%w: hit %s has no source", ErrMalformedHotel, hit.Id))
		}
		var doc indexDocument
		if err := json.Unmarshal(*hit.Source, &doc); err != nil {
			return nil, NewProviderError(p.name, fmt.Errorf("decode hit %s: %w", hit.Id, err))
		}
		if doc.ID == "" {
			doc.ID = hit.Id
		}
		hotels = append(hotels, types.Hotel{
			ID:          doc.ID,
			Name:        doc.Name,
			Coordinates: types.Coordinates{Lat: doc.Location.Lat, Lng: doc.Location.Lon},
			Price:       types.Price{Amount: doc.Price, Currency: doc.Currency},
			Rating:      doc.Rating,
			Provider:    p.name,
			Address:     doc.Address,
			City:        doc.City,
			Country:     doc.Country,
			Amenities:   doc.Amenities,
			Images:      doc.Images,
			URL:         doc.URL,
		})
	}
	if err := ValidateHotels(hotels); err != nil {
		return nil, NewProviderError(p.name, err)
	}
	return hotels, nil
}
