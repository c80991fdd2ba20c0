package geo

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/invisible-tech/alertmap/pkg/geoapi"
)

func TestAPIProvider_ResolverChain(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot bind for test: %v", err)
	}
	ln.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/93.95.230.253":
			io.WriteString(w, `{"lat":64.1466,"lon":-21.9426,"city":"Reykjavik","country":"Iceland","continent":"Europe"}`)
		case "/129.25.1.1":
			io.WriteString(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := geoapi.NewClient(geoapi.Config{APIEndpoint: server.URL}, quietLogger())
	r := NewResolver(NewAPIProvider(client, time.Second), DefaultRules(), quietLogger())

	loc := r.Resolve("93.95.230.253")
	if loc.City != "Reykjavik" || loc.Region != "Unknown" || loc.Lat != 64.1466 {
		t.Errorf("api result = %+v", loc)
	}
	// An empty answer counts as not found.
	if got := r.Resolve("129.25.1.1").City; got != "DeLand, FL" {
		t.Errorf("empty answer should fall back, got %q", got)
	}
	if got := r.Resolve("8.8.8.8"); got != UnknownLocation {
		t.Errorf("404 should fall through to Unknown, got %+v", got)
	}
}
