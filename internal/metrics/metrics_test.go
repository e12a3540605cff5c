package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/v1/chats/{chatID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/chats/{chatID}", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/chats/"+id, nil))
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestRecordAuthAndChat(t *testing.T) {
	login := AuthEventsTotal.WithLabelValues("login", OutcomeFailure)
	before := testutil.ToFloat64(login)
	RecordAuth("login", OutcomeFailure)
	assert.Equal(t, before+1, testutil.ToFloat64(login))

	save := ChatOperationsTotal.WithLabelValues("save", OutcomeUnavailable)
	before = testutil.ToFloat64(save)
	RecordChat("save", OutcomeUnavailable)
	assert.Equal(t, before+1, testutil.ToFloat64(save))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordAuth("register", OutcomeSuccess)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "chatvault_auth_events_total"))
}
