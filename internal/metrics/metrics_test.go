package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatus(t *testing.T) {
	if Status(nil) != StatusOK {
		t.Errorf("Status(nil) = %s, want ok", Status(nil))
	}
	if Status(errors.New("x")) != StatusError {
		t.Errorf("Status(err) = %s, want error", Status(errors.New("x")))
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(SignalsTotal.WithLabelValues("playlist_created"))
	SignalsTotal.WithLabelValues("playlist_created").Inc()

	if got := testutil.ToFloat64(SignalsTotal.WithLabelValues("playlist_created")); got != before+1 {
		t.Errorf("expected counter %v, got %v", before+1, got)
	}

	PlaylistsLoaded.Set(3)
	if got := testutil.ToFloat64(PlaylistsLoaded); got != 3 {
		t.Errorf("expected gauge 3, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	SavesTotal.WithLabelValues(StatusOK).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "plsd_saves_total") {
		t.Error("expected plsd_saves_total in exposition output")
	}
}
