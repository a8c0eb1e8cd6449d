package marketplacesdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsIdentityAndDecodes(t *testing.T) {
	var gotAuth, gotClient, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotClient = r.Header.Get("X-Client-Id")
		gotPath = r.URL.RequestURI()
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"d1","status":"idle","amount":"1500.00","specialist_id":"s1","client_id":"c1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/v1/")
	c.ClientID = "c1"
	deal, err := c.OpenDeal(context.Background(), "s1", "", "1500")
	require.NoError(t, err)
	assert.Equal(t, "d1", deal.ID)
	assert.Equal(t, "idle", deal.Status)
	assert.Equal(t, "/v1/deals", gotPath)
	assert.Equal(t, "c1", gotClient)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "s1", gotBody["specialist_id"])
	assert.NotContains(t, gotBody, "task_id")

	c.BearerToken = "tok"
	_, err = c.Hire(context.Background(), "d 1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Empty(t, gotClient)
	assert.Equal(t, "/v1/deals/d%201/hire", gotPath)
}

func TestClientErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_transition","message":"confirm not allowed from idle","details":{"from":"idle"}}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).ConfirmCompletion(context.Background(), "d1")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid_transition", apiErr.Code)
	assert.True(t, IsCode(err, "invalid_transition"))
	assert.False(t, IsCode(err, "not_found"))
}

func TestClientPaginationAndNoContent(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":7,"type":"deal.hired"}],"next_cursor":"7"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	page, err := c.EventsPage(context.Background(), 1, "9")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(7), page.Items[0].ID)
	assert.Equal(t, "7", page.NextCursor)
	require.NoError(t, c.DiscardDeal(context.Background(), "d1"))
	assert.Equal(t, []string{"/events?cursor=9&limit=1", "/deals/d1"}, paths)
}

func TestClientOffers(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tasks/t1/offers":
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(`{"items":[{"id":"o1","task_id":"t1","status":"pending","price":"1200.00"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"o1","task_id":"t1","specialist_id":"s1","status":"pending","price":"1200.00"}`))
		case "/offers/o1/accept":
			_, _ = w.Write([]byte(`{"offer":{"id":"o1","status":"accepted","deal_id":"d1"},"deal":{"id":"d1","status":"idle","amount":"1200.00"}}`))
		default:
			_, _ = w.Write([]byte(`{"id":"o2","status":"rejected"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	o, err := c.SubmitOffer(context.Background(), "t1", "s1", "1200", "Приеду через час")
	require.NoError(t, err)
	assert.Equal(t, "pending", o.Status)

	items, err := c.Offers(context.Background(), "t1", "pending")
	require.NoError(t, err)
	require.Len(t, items, 1)

	acc, err := c.AcceptOffer(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "d1", acc.Deal.ID)
	require.NotNil(t, acc.Offer.DealID)

	rej, err := c.RejectOffer(context.Background(), "o2")
	require.NoError(t, err)
	assert.Equal(t, "rejected", rej.Status)

	assert.Equal(t, []string{
		"POST /tasks/t1/offers",
		"GET /tasks/t1/offers?status=pending",
		"POST /offers/o1/accept",
		"POST /offers/o2/reject",
	}, paths)
}
