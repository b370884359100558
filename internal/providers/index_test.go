package providers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alex-user-go/hotelsearch/internal/providers"
	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

func newIndexServer(t *testing.T, status int, body string, gotQuery *map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/hotels/_search") {
			http.NotFound(w, r)
			return
		}
		if gotQuery != nil {
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, gotQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIndexProvider_Search(t *testing.T) {
	body := `{
		"took": 3,
		"timed_out": false,
		"hits": {
			"total": 2,
			"max_score": 1.0,
			"hits": [
				{"_index":"hotels","_type":"hotel","_id":"es-1","_score":1.0,"_source":{
					"id":"idx-1","name":"Canal House","location":{"lat":52.3702,"lon":4.8952},
					"price":150,"currency":"EUR","rating":4.1,"address":"Keizersgracht 148",
					"city":"Amsterdam","country":"Netherlands","amenities":["wifi"]}},
				{"_index":"hotels","_type":"hotel","_id":"es-2","_score":0.8,"_source":{
					"name":"Dam Square Inn","location":{"lat":52.3731,"lon":4.8926},
					"price":99,"currency":"EUR","city":"Amsterdam","country":"Netherlands"}}
			]
		}
	}`

	var query map[string]any
	srv := newIndexServer(t, http.StatusOK, body, &query)

	client, err := providers.NewElasticClient(srv.URL, srv.Client())
	require.NoError(t, err)

	p := providers.NewIndexProvider("index", client, "hotels", 0)
	require.Equal(t, "index", p.Name())

	hotels, err := p.Search(context.Background(), types.SearchQuery{Location: "Amsterdam"})
	require.NoError(t, err)
	require.Equal(t, []types.Hotel{
		{
			ID:          "idx-1",
			Name:        "Canal House",
			Coordinates: types.Coordinates{Lat: 52.3702, Lng: 4.8952},
			Price:       types.Price{Amount: 150, Currency: "EUR"},
			Rating:      ptr(4.1),
			Provider:    "index",
			Address:     "Keizersgracht 148",
			City:        "Amsterdam",
			Country:     "Netherlands",
			Amenities:   []string{"wifi"},
		},
		{
			ID:          "es-2",
			Name:        "Dam Square Inn",
			Coordinates: types.Coordinates{Lat: 52.3731, Lng: 4.8926},
			Price:       types.Price{Amount: 99, Currency: "EUR"},
			Provider:    "index",
			City:        "Amsterdam",
			Country:     "Netherlands",
		},
	}, hotels)

	require.EqualValues(t, 500, query["size"])
	require.Contains(t, query, "query")
}

func TestIndexProvider_Search_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "index missing",
			status: http.StatusNotFound,
			body:   `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`,
		},
		{
			name:    "malformed document",
			status:  http.StatusOK,
			body:    `{"hits":{"total":1,"hits":[{"_id":"x","_source":{"name":"","location":{"lat":1,"lon":1},"price":1}}]}}`,
			wantErr: providers.ErrMalformedHotel,
		},
		{
			name:    "hit without source",
			status:  http.StatusOK,
			body:    `{"hits":{"total":2,"hits":[{"_id":"ok","_source":{"name":"Fine","location":{"lat":1,"lon":1},"price":1}},{"_id":"x"}]}}`,
			wantErr: providers.ErrMalformedHotel,
		},
		{
			name:    "location out of range",
			status:  http.StatusOK,
			body:    `{"hits":{"total":1,"hits":[{"_id":"x","_source":{"name":"Far","location":{"lat":1e305,"lon":1},"price":1}}]}}`,
			wantErr: providers.ErrMalformedHotel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newIndexServer(t, tt.status, tt.body, nil)

			client, err := providers.NewElasticClient(srv.URL, srv.Client())
			require.NoError(t, err)

			_, err = providers.NewIndexProvider("index", client, "hotels", 10).Search(context.Background(), types.SearchQuery{Location: "x"})
			require.Error(t, err)

			var pe *providers.ProviderError
			require.ErrorAs(t, err, &pe)
			require.Equal(t, "index", pe.Provider)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
